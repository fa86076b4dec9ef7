// Package cron runs the periodic maintenance jobs: closing stale day logs
// into the ledger and scanning for low stock.
package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/gmsas95/medtrack/internal/tracker"
)

const (
	JobRollover = "rollover"
	JobLowStock = "low_stock"
)

// Config holds cron runner configuration
type Config struct {
	RolloverSpec  string // standard five-field cron spec
	LowStockSpec  string
	MaxConcurrent int
	Location      *time.Location
}

// Tracker is the part of the tracker service the jobs drive.
type Tracker interface {
	Sweep(ctx context.Context) (*tracker.SweepResult, error)
	LowStock(ctx context.Context) ([]tracker.LowStockItem, error)
}

// Recorder receives one call per job run.
type Recorder interface {
	JobRun(job string, err error)
}

type nopRecorder struct{}

func (nopRecorder) JobRun(string, error) {}

// JobInfo describes a registered job.
type JobInfo struct {
	Name    string    `json:"name"`
	Spec    string    `json:"spec"`
	NextRun time.Time `json:"next_run"`
	PrevRun time.Time `json:"prev_run,omitempty"`
}

// Runner manages scheduled job execution
type Runner struct {
	config   Config
	tracker  Tracker
	recorder Recorder
	logger   *zap.Logger

	cron    *cron.Cron
	entries map[string]cron.EntryID
	sem     chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	mu      sync.RWMutex
}

// NewRunner creates a new cron runner
func NewRunner(config Config, trk Tracker, recorder Recorder, logger *zap.Logger) *Runner {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 2
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Runner{
		config:   config,
		tracker:  trk,
		recorder: recorder,
		logger:   logger,
		sem:      make(chan struct{}, config.MaxConcurrent),
	}
}

// Start registers the jobs and starts the scheduler
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("cron runner already running")
	}

	log := zapLogger{r.logger}
	c := cron.New(
		cron.WithLocation(r.config.Location),
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)

	entries := make(map[string]cron.EntryID, 2)
	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{JobRollover, r.config.RolloverSpec, r.RunRollover},
		{JobLowStock, r.config.LowStockSpec, r.RunLowStock},
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		run := j.run
		id, err := c.AddFunc(j.spec, func() { r.execute(run) })
		if err != nil {
			return fmt.Errorf("invalid %s schedule %q: %w", j.name, j.spec, err)
		}
		entries[j.name] = id
	}

	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.cron = c
	r.entries = entries
	r.running = true
	c.Start()

	r.logger.Info("Cron runner started", zap.Int("jobs", len(entries)))
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	c := r.cron
	r.mu.Unlock()

	r.cancel()
	<-c.Stop().Done()
	r.logger.Info("Cron runner stopped")
}

// IsRunning returns whether the runner is active
func (r *Runner) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// Jobs lists the registered jobs with their next run.
func (r *Runner) Jobs() []JobInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.cron == nil {
		return nil
	}
	specs := map[string]string{JobRollover: r.config.RolloverSpec, JobLowStock: r.config.LowStockSpec}
	out := make([]JobInfo, 0, len(r.entries))
	for _, name := range []string{JobRollover, JobLowStock} {
		id, ok := r.entries[name]
		if !ok {
			continue
		}
		e := r.cron.Entry(id)
		out = append(out, JobInfo{Name: name, Spec: specs[name], NextRun: e.Next, PrevRun: e.Prev})
	}
	return out
}

func (r *Runner) execute(run func(context.Context) error) {
	r.mu.RLock()
	parent := r.ctx
	r.mu.RUnlock()

	select {
	case r.sem <- struct{}{}:
	case <-parent.Done():
		return
	}
	defer func() { <-r.sem }()

	ctx, cancel := context.WithTimeout(parent, 5*time.Minute)
	defer cancel()
	_ = run(ctx)
}

// RunRollover closes every stale day log.
func (r *Runner) RunRollover(ctx context.Context) error {
	start := time.Now()
	res, err := r.tracker.Sweep(ctx)
	r.recorder.JobRun(JobRollover, err)
	if err != nil {
		r.logger.Error("Rollover sweep failed", zap.Error(err))
		return err
	}

	r.logger.Info("Rollover sweep completed",
		zap.Int("checked", res.Checked),
		zap.Int("rolled", res.Rolled),
		zap.Int64("entries", res.Entries),
		zap.Int("failed", res.Failed),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

// RunLowStock logs every medication that needs a refill.
func (r *Runner) RunLowStock(ctx context.Context) error {
	items, err := r.tracker.LowStock(ctx)
	r.recorder.JobRun(JobLowStock, err)
	if err != nil {
		r.logger.Error("Low stock scan failed", zap.Error(err))
		return err
	}

	for _, item := range items {
		r.logger.Warn("Medication running low",
			zap.String("user_id", item.UserID),
			zap.String("medication_id", item.MedicationID),
			zap.String("name", item.Name),
			zap.Int("current_stock", item.CurrentStock),
			zap.Int("days_remaining", item.DaysRemaining),
			zap.String("status", string(item.Status)),
		)
	}
	return nil
}

// zapLogger adapts zap to cron.Logger.
type zapLogger struct {
	l *zap.Logger
}

func (z zapLogger) Info(msg string, keysAndValues ...interface{}) {
	z.l.Sugar().Debugw(msg, keysAndValues...)
}

func (z zapLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	z.l.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
