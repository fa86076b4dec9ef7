package course

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDays(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"10 days", 10, true},
		{"1 day", 1, true},
		{"2 weeks", 14, true},
		{"1 Week", 7, true},
		{"3 months", 90, true},
		{"14", 14, true},
		{" 5days ", 5, true},
		{"0 days", 0, false},
		{"ongoing", 0, false},
		{"", 0, false},
		{"two weeks", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDays(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEndDate(t *testing.T) {
	assert.Equal(t, "2026-03-15", EndDate("2026-03-01", "2 weeks"))
	assert.Equal(t, "2026-03-31", EndDate("2026-03-01", "1 month"))
	assert.Equal(t, "", EndDate("2026-03-01", "as long as needed"))
	assert.Equal(t, "", EndDate("03/01/2026", "10 days"))
}

func TestProgressAt(t *testing.T) {
	now := time.Date(2026, 3, 6, 15, 0, 0, 0, time.UTC)

	p := ProgressAt("2026-03-01", "2026-03-11", now)
	require.NotNil(t, p)
	assert.Equal(t, 10, p.TotalDays)
	assert.Equal(t, 5, p.DaysElapsed)
	assert.Equal(t, 5, p.DaysRemaining)
	assert.Equal(t, 50.0, p.Percent)
	assert.False(t, p.Completed)

	done := ProgressAt("2026-02-01", "2026-02-11", now)
	require.NotNil(t, done)
	assert.True(t, done.Completed)
	assert.Equal(t, 100.0, done.Percent)

	future := ProgressAt("2026-04-01", "2026-04-11", now)
	require.NotNil(t, future)
	assert.Equal(t, 0, future.DaysElapsed)

	assert.Nil(t, ProgressAt("2026-03-01", "", now))
	assert.Nil(t, ProgressAt("2026-03-01", "2026-03-01", now))
}
