package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/gmsas95/medtrack/internal/analytics"
	"github.com/gmsas95/medtrack/internal/api"
	"github.com/gmsas95/medtrack/internal/config"
	"github.com/gmsas95/medtrack/internal/cron"
	"github.com/gmsas95/medtrack/internal/insights"
	"github.com/gmsas95/medtrack/internal/ledger"
	"github.com/gmsas95/medtrack/internal/llm"
	"github.com/gmsas95/medtrack/internal/metrics"
	"github.com/gmsas95/medtrack/internal/store"
	"github.com/gmsas95/medtrack/internal/timeofday"
	"github.com/gmsas95/medtrack/internal/tracker"
)

type App struct {
	Config     *config.Config
	Store      *store.Store
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	Tracker    *tracker.Service
	Analyzer   *analytics.Analyzer
	Insights   *insights.Service
	CronRunner *cron.Runner
	Version    string

	clock  timeofday.Clock
	server *api.Server
	mu     sync.Mutex
}

// New wires the services on top of an open store.
func New(cfg *config.Config, st *store.Store, logger *zap.Logger, version string) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return NewWithClock(cfg, st, logger, version, timeofday.SystemClock(loc))
}

// NewWithClock is New with an explicit clock.
func NewWithClock(cfg *config.Config, st *store.Store, logger *zap.Logger, version string, clock timeofday.Clock) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	l := ledger.New(st, loc, logger)
	app := &App{
		Config:   cfg,
		Store:    st,
		Logger:   logger,
		Metrics:  m,
		Tracker:  tracker.New(st, l, clock, logger, tracker.WithObserver(m)),
		Analyzer: analytics.New(l, clock),
		Version:  version,
		clock:    clock,
	}
	app.Insights = app.newInsights(cfg.Insights)
	return app, nil
}

// NewLogger builds the process logger from the log section.
func NewLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zc.Level = level
	}
	return zc.Build()
}

func (app *App) newInsights(cfg config.InsightsConfig) *insights.Service {
	var summarizer insights.Summarizer
	if cfg.Enabled {
		client := llm.NewClient(cfg, app.Logger)
		summarizer = client
		app.Logger.Info("Insights summarizer configured", zap.String("model", client.GetModel()))
	}
	return insights.New(app.Analyzer, summarizer, app.Store, cfg.CacheTTL(), app.clock, app.Logger)
}

// Reload applies the runtime-safe sections of a changed config file: the
// insights summarizer and the sweep schedule.
func (app *App) Reload(cfg *config.Config) {
	app.mu.Lock()
	defer app.mu.Unlock()

	app.Config.Insights = cfg.Insights
	app.Config.Sweep = cfg.Sweep

	app.Insights = app.newInsights(cfg.Insights)
	if app.server != nil {
		app.server.SetInsights(app.Insights)
	}

	if app.CronRunner != nil {
		app.CronRunner.Stop()
		app.CronRunner = nil
	}
	app.startCron()

	app.Logger.Info("Configuration reloaded",
		zap.Bool("insights", cfg.Insights.Enabled),
		zap.Bool("sweep", cfg.Sweep.Enabled),
	)
}

// startCron must be called with app.mu held.
func (app *App) startCron() {
	if !app.Config.Sweep.Enabled {
		return
	}
	loc, err := app.Config.Location()
	if err != nil {
		app.Logger.Error("Failed to resolve timezone for cron", zap.Error(err))
		return
	}

	runner := cron.NewRunner(cron.Config{
		RolloverSpec:  app.Config.Sweep.RolloverSpec,
		LowStockSpec:  app.Config.Sweep.LowStockSpec,
		MaxConcurrent: app.Config.Sweep.MaxConcurrent,
		Location:      loc,
	}, app.Tracker, app.Metrics, app.Logger)
	if err := runner.Start(); err != nil {
		app.Logger.Error("Failed to start cron runner", zap.Error(err))
		return
	}
	app.CronRunner = runner
}

// Server builds the HTTP server once.
func (app *App) Server() *api.Server {
	app.mu.Lock()
	defer app.mu.Unlock()

	if app.server == nil {
		app.server = api.New(app.Config, api.Deps{
			Tracker:  app.Tracker,
			Analyzer: app.Analyzer,
			Insights: app.Insights,
			Metrics:  app.Metrics,
			Version:  app.Version,
		}, app.Logger)
	}
	return app.server
}

func (app *App) RunServer() {
	server := app.Server()

	app.mu.Lock()
	app.startCron()
	app.mu.Unlock()

	// Close whatever went stale while the process was down.
	if _, err := app.Sweep(context.Background()); err != nil {
		app.Logger.Warn("Startup rollover failed", zap.Error(err))
	}

	go func() {
		if err := server.Start(); err != nil {
			app.Logger.Fatal("Server error", zap.Error(err))
		}
	}()

	app.Logger.Info("Server started",
		zap.String("address", app.Config.Server.Address),
		zap.Int("port", app.Config.Server.Port),
		zap.String("url", fmt.Sprintf("http://localhost:%d", app.Config.Server.Port)),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info("Shutting down...")

	app.mu.Lock()
	if app.CronRunner != nil {
		app.CronRunner.Stop()
	}
	app.mu.Unlock()

	if err := server.Shutdown(); err != nil {
		app.Logger.Error("Server shutdown error", zap.Error(err))
	}
}

// Sweep rolls over every stale medication once.
func (app *App) Sweep(ctx context.Context) (*tracker.SweepResult, error) {
	res, err := app.Tracker.Sweep(ctx)
	app.Metrics.JobRun(cron.JobRollover, err)
	return res, err
}

// Report gathers every analytics view for one user.
type Report struct {
	UserID     string                     `json:"user_id"`
	Adherence  *analytics.AdherenceReport `json:"adherence"`
	Streak     *analytics.Streak          `json:"streak"`
	TimeOfDay  *analytics.TimeOfDayReport `json:"time_of_day"`
	Comparison *analytics.Comparison      `json:"comparison"`
}

func (app *App) Report(ctx context.Context, userID string, period analytics.Period) (*Report, error) {
	if _, err := app.Tracker.RolloverAll(ctx, userID); err != nil {
		return nil, err
	}

	r := &Report{UserID: userID}
	var err error
	if r.Adherence, err = app.Analyzer.AdherenceStats(ctx, userID, period, ""); err != nil {
		return nil, err
	}
	if r.Streak, err = app.Analyzer.Streak(ctx, userID); err != nil {
		return nil, err
	}
	if r.TimeOfDay, err = app.Analyzer.TimeOfDay(ctx, userID, period); err != nil {
		return nil, err
	}
	if r.Comparison, err = app.Analyzer.Comparison(ctx, userID); err != nil {
		return nil, err
	}
	return r, nil
}
