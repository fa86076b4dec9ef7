package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmsas95/medtrack/internal/analytics"
	"github.com/gmsas95/medtrack/internal/config"
	"github.com/gmsas95/medtrack/internal/store"
	"github.com/gmsas95/medtrack/internal/timeofday"
	"github.com/gmsas95/medtrack/internal/tracker"
)

func newTestApp(t *testing.T) (*App, *timeofday.FixedClock) {
	t.Helper()
	cfg, err := config.Default(t.TempDir())
	require.NoError(t, err)
	cfg.Timezone = "UTC"
	cfg.Sweep.Enabled = false

	st, err := store.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	clock := timeofday.NewFixedClock(time.Date(2026, 4, 10, 8, 10, 0, 0, time.UTC))
	app, err := NewWithClock(cfg, st, nil, "test", clock)
	require.NoError(t, err)
	return app, clock
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		version string
	}{
		{"create app with version", "1.0.0"},
		{"create app with dev version", "dev"},
		{"create app with empty version", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Default(t.TempDir())
			require.NoError(t, err)
			st, err := store.NewInMemory()
			require.NoError(t, err)
			defer st.Close()

			app, err := New(cfg, st, nil, tt.version)
			require.NoError(t, err)
			assert.Equal(t, tt.version, app.Version)
			assert.NotNil(t, app.Tracker)
			assert.NotNil(t, app.Analyzer)
			assert.NotNil(t, app.Insights)
			assert.NotNil(t, app.Metrics)
		})
	}
}

func TestNew_BadTimezone(t *testing.T) {
	cfg, err := config.Default(t.TempDir())
	require.NoError(t, err)
	cfg.Timezone = "Mars/Olympus_Mons"

	_, err = New(cfg, nil, nil, "test")
	assert.Error(t, err)
}

func TestReload_TogglesCron(t *testing.T) {
	app, _ := newTestApp(t)
	assert.Nil(t, app.CronRunner)
	before := app.Insights

	next := *app.Config
	next.Sweep.Enabled = true
	next.Sweep.RolloverSpec = "5 0 * * *"
	next.Sweep.LowStockSpec = "0 9 * * *"
	app.Reload(&next)

	require.NotNil(t, app.CronRunner)
	assert.True(t, app.CronRunner.IsRunning())
	assert.NotSame(t, before, app.Insights)
	runner := app.CronRunner

	next.Sweep.Enabled = false
	app.Reload(&next)
	assert.Nil(t, app.CronRunner)
	assert.False(t, runner.IsRunning())
}

func TestSweepAndReport(t *testing.T) {
	app, clock := newTestApp(t)
	ctx := context.Background()

	med, err := app.Tracker.Create(ctx, "user_1", tracker.CreateInput{
		Name:        "Aspirin",
		Frequency:   2,
		CustomTimes: []string{"08:00", "20:00"},
	})
	require.NoError(t, err)
	_, err = app.Tracker.MarkDose(ctx, "user_1", med.ID, "08:00", true)
	require.NoError(t, err)

	clock.Advance(24 * time.Hour)
	res, err := app.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rolled)
	assert.Equal(t, int64(1), res.Entries, "the taken slot already has its row")

	report, err := app.Report(ctx, "user_1", analytics.PeriodWeek)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Adherence.Summary.Total)
	assert.Equal(t, 1, report.Adherence.Summary.Taken)
	assert.Equal(t, 1, report.Adherence.Summary.Missed)
	assert.Equal(t, 50.0, report.Adherence.Summary.AdherencePercentage)
	assert.Equal(t, 0, report.Streak.Current)
}

func TestServer_BuiltOnce(t *testing.T) {
	app, _ := newTestApp(t)
	assert.Same(t, app.Server(), app.Server())
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(config.LogConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = NewLogger(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}
