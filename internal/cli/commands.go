package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/gmsas95/medtrack/internal/analytics"
	"github.com/gmsas95/medtrack/internal/api"
	"github.com/gmsas95/medtrack/internal/app"
	"github.com/gmsas95/medtrack/internal/config"
	"github.com/gmsas95/medtrack/internal/store"
)

var Version = "dev"

// Options are the global flags.
type Options struct {
	ConfigPath string
	DataDir    string
}

func (o Options) configFile(cfg *config.Config) string {
	if o.ConfigPath != "" {
		return o.ConfigPath
	}
	return filepath.Join(cfg.Storage.DataDir, "medtrack.yaml")
}

// open loads the config, the logger and the store and wires the app.
// The returned func releases everything.
func open(opts Options, watch bool) (*app.App, func(), error) {
	var current atomic.Pointer[app.App]

	var (
		cfg *config.Config
		err error
	)
	if watch {
		cfg, _, err = config.Watch(opts.ConfigPath, opts.DataDir, func(next *config.Config, e fsnotify.Event) {
			if a := current.Load(); a != nil {
				a.Logger.Info("Config file changed", zap.String("file", e.Name))
				a.Reload(next)
			}
		})
	} else {
		cfg, err = config.Load(opts.ConfigPath, opts.DataDir)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := app.NewLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}

	st, err := store.New(cfg)
	if err != nil {
		logger.Sync()
		return nil, nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	application, err := app.New(cfg, st, logger, Version)
	if err != nil {
		st.Close()
		logger.Sync()
		return nil, nil, err
	}
	current.Store(application)

	cleanup := func() {
		if err := st.Close(); err != nil {
			logger.Warn("Failed to close store", zap.Error(err))
		}
		logger.Sync()
	}
	return application, cleanup, nil
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", paint(os.Stderr, red, "Error:"), err)
	os.Exit(1)
}

func HandleServeCommand(opts Options) {
	application, cleanup, err := open(opts, true)
	if err != nil {
		fail(err)
	}
	defer cleanup()

	if err := application.Config.RequireJWTSecret(); err != nil {
		cleanup()
		fail(err)
	}

	application.Logger.Info("Starting medtrack", zap.String("version", Version))
	application.RunServer()
}

func HandleSweepCommand(opts Options) {
	application, cleanup, err := open(opts, false)
	if err != nil {
		fail(err)
	}
	defer cleanup()

	res, err := application.Sweep(context.Background())
	if err != nil {
		cleanup()
		fail(err)
	}
	fmt.Printf("%s checked %d, rolled over %d, wrote %d ledger entries, %d failed\n",
		paint(os.Stdout, green, "✓"), res.Checked, res.Rolled, res.Entries, res.Failed)
}

func HandleReportCommand(args []string, opts Options) {
	if len(args) == 0 {
		fmt.Println("Usage: medtrack report <user> [week|month|all] [--json]")
		os.Exit(1)
	}

	userID := args[0]
	asJSON := false
	periodArg := ""
	for _, a := range args[1:] {
		if a == "--json" {
			asJSON = true
			continue
		}
		periodArg = a
	}
	period, err := analytics.ParsePeriod(periodArg)
	if err != nil {
		fail(err)
	}

	application, cleanup, err := open(opts, false)
	if err != nil {
		fail(err)
	}
	defer cleanup()

	report, err := application.Report(context.Background(), userID, period)
	if err != nil {
		cleanup()
		fail(err)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			cleanup()
			fail(err)
		}
		return
	}
	RenderReport(os.Stdout, report, period)
}

// RenderReport prints a report for a terminal.
func RenderReport(w io.Writer, r *app.Report, period analytics.Period) {
	fmt.Fprintf(w, "%s\n", paint(w, bold, fmt.Sprintf("Adherence report for %s (%s)", r.UserID, period)))
	fmt.Fprintln(w, strings.Repeat("=", 40))

	if a := r.Adherence; a != nil {
		s := a.Summary
		fmt.Fprintf(w, "Adherence:  %s\n", paint(w, rateColor(s.AdherencePercentage), fmt.Sprintf("%.1f%%", s.AdherencePercentage)))
		fmt.Fprintf(w, "On time:    %.1f%%\n", s.OnTimePercentage)
		fmt.Fprintf(w, "Doses:      %d total, %d taken, %d late, %d missed, %d skipped\n", s.Total, s.Taken, s.Late, s.Missed, s.Skipped)
		if len(a.ByMedication) > 0 {
			fmt.Fprintln(w)
			fmt.Fprintln(w, "By medication:")
			for _, m := range a.ByMedication {
				fmt.Fprintf(w, "  %-20s %s\n", m.MedicationName, paint(w, rateColor(m.AdherencePercentage), fmt.Sprintf("%.1f%%", m.AdherencePercentage)))
			}
		}
	}

	if s := r.Streak; s != nil {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Streak:     %d days (best %d)\n", s.Current, s.Best)
		if s.LastBrokenDate != "" {
			fmt.Fprintf(w, "Broken on:  %s\n", s.LastBrokenDate)
		}
	}

	if c := r.Comparison; c != nil {
		fmt.Fprintf(w, "This week:  %s\n", c.Message)
	}

	if t := r.TimeOfDay; t != nil && t.Insight != "" {
		fmt.Fprintf(w, "Pattern:    %s\n", t.Insight)
	}
}

// HandleTokenCommand prints a bearer token for a user, signed with the
// configured secret.
func HandleTokenCommand(args []string, opts Options) {
	if len(args) == 0 {
		fmt.Println("Usage: medtrack token <user> [hours]")
		os.Exit(1)
	}
	ttl := 24 * time.Hour
	if len(args) > 1 {
		hours, err := strconv.Atoi(args[1])
		if err != nil || hours <= 0 {
			fail(fmt.Errorf("hours must be a positive number, got %q", args[1]))
		}
		ttl = time.Duration(hours) * time.Hour
	}

	cfg, err := config.Load(opts.ConfigPath, opts.DataDir)
	if err != nil {
		fail(err)
	}
	token, err := IssueToken(cfg, args[0], ttl)
	if err != nil {
		fail(err)
	}
	fmt.Println(token)
}

func IssueToken(cfg *config.Config, userID string, ttl time.Duration) (string, error) {
	if err := cfg.RequireJWTSecret(); err != nil {
		return "", err
	}
	return api.IssueToken(cfg.Security.JWTSecret, userID, ttl)
}

func HandleConfigCommand(args []string, opts Options) {
	if len(args) == 0 {
		PrintConfigHelp()
		return
	}
	if err := RunConfigCommand(os.Stdout, args, opts); err != nil {
		fail(err)
	}
}

// RunConfigCommand implements config init, show and path.
func RunConfigCommand(w io.Writer, args []string, opts Options) error {
	switch args[0] {
	case "init":
		cfg, err := config.Default(opts.DataDir)
		if err != nil {
			return err
		}
		path := opts.configFile(cfg)
		if err := config.WriteFile(cfg, path); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s Wrote %s\n", paint(w, green, "✓"), path)
		fmt.Fprintln(w, "Set security.jwt_secret before starting the server.")
		return nil

	case "show", "view":
		cfg, err := config.Load(opts.ConfigPath, opts.DataDir)
		if err != nil {
			return err
		}
		data, err := config.Marshal(cfg, len(args) > 1 && args[1] == "--reveal")
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err

	case "path":
		cfg, err := config.Load(opts.ConfigPath, opts.DataDir)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, opts.configFile(cfg))
		return nil

	default:
		return fmt.Errorf("unknown config command %q", args[0])
	}
}

func PrintConfigHelp() {
	fmt.Println(`Usage: medtrack config <command>

Commands:
  init            Write a config file with the defaults
  show [--reveal] Print the effective config, secrets masked
  path            Print the config file location`)
}

func PrintHelp() {
	fmt.Println(`medtrack - medication adherence tracker

Usage: medtrack [flags] <command> [args]

Commands:
  serve                         Run the HTTP API and background jobs (default)
  sweep                         Roll over every stale day once
  report <user> [period] [--json]
                                Print adherence for week, month or all
  token <user> [hours]          Issue an API bearer token
  config init|show|path         Manage the config file
  version                       Print the version
  help                          Show this help

Flags:
  -config <path>                Path to config file
  -data <dir>                   Path to data directory`)
}

const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
)

// paint colours s when w is a terminal.
func paint(w io.Writer, code, s string) string {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return s
	}
	return code + s + reset
}

func rateColor(pct float64) string {
	switch {
	case pct >= 90:
		return green
	case pct >= 70:
		return yellow
	default:
		return red
	}
}
