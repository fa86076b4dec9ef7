package dose

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/gmsas95/medtrack/internal/errors"
	"github.com/gmsas95/medtrack/internal/timeofday"
)

func at(hhmm string) time.Time {
	return timeofday.MustParse(hhmm).On(time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC))
}

func tod(s string) *timeofday.TimeOfDay {
	v := timeofday.MustParse(s)
	return &v
}

func TestEvaluate_NotTaken(t *testing.T) {
	slot := timeofday.MustParse("12:00")

	tests := []struct {
		name    string
		now     time.Time
		status  Status
		offset  int
		canTake bool
	}{
		{"well before", at("10:00"), StatusPending, -120, false},
		{"just outside early window", at("11:29"), StatusPending, -31, false},
		{"early boundary", at("11:30"), StatusAvailable, -30, true},
		{"on the dot", at("12:00"), StatusAvailable, 0, true},
		{"late but available", at("13:30"), StatusAvailable, 90, true},
		{"missed boundary", at("14:00"), StatusAvailable, 120, true},
		{"missed", at("14:01"), StatusMissed, 121, false},
		{"seconds before early boundary", at("11:30").Add(-30 * time.Second), StatusAvailable, -30, true},
		{"seconds past missed boundary", at("14:00").Add(30 * time.Second), StatusAvailable, 120, true},
		{"last second before missed", at("14:00").Add(59 * time.Second), StatusAvailable, 120, true},
		{"full minute before early boundary", at("11:29").Add(-1 * time.Second), StatusPending, -31, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Evaluate(slot, tt.now, nil)
			assert.Equal(t, tt.status, ev.Status)
			assert.Equal(t, tt.offset, ev.OffsetMinutes)
			assert.Equal(t, tt.canTake, ev.CanTakeNow)
		})
	}
}

func TestEvaluate_PendingBeforeEarlyWindow(t *testing.T) {
	slot := timeofday.MustParse("08:00")
	for mins := 31; mins <= 8*60; mins += 37 {
		now := at("08:00").Add(-time.Duration(mins) * time.Minute)
		assert.Equal(t, StatusPending, Evaluate(slot, now, nil).Status, "%d minutes early", mins)
	}
}

func TestEvaluate_Taken(t *testing.T) {
	slot := timeofday.MustParse("08:00")
	now := at("15:00")

	tests := []struct {
		name    string
		takenAt string
		status  Status
		offset  int
	}{
		{"exact", "08:00", StatusTaken, 0},
		{"ten past", "08:10", StatusTaken, 10},
		{"on-time boundary", "08:30", StatusTaken, 30},
		{"early boundary", "07:30", StatusTaken, -30},
		{"just late", "08:31", StatusLate, 31},
		{"too early", "07:00", StatusLate, -60},
		{"very late is still late", "13:00", StatusLate, 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Evaluate(slot, now, tod(tt.takenAt))
			assert.Equal(t, tt.status, ev.Status)
			assert.Equal(t, tt.offset, ev.OffsetMinutes)
			assert.False(t, ev.CanTakeNow)
		})
	}
}

func TestEvaluate_TakenIgnoresClockSeconds(t *testing.T) {
	slot := timeofday.MustParse("08:00")
	now := at("08:31").Add(42 * time.Second)

	ev := Evaluate(slot, now, tod("08:30"))
	assert.Equal(t, StatusTaken, ev.Status)
	assert.Equal(t, 30, ev.OffsetMinutes)

	ev = Evaluate(slot, now, nil)
	assert.Equal(t, StatusAvailable, ev.Status)
	assert.Equal(t, 31, ev.OffsetMinutes)
}

func TestEvaluateSlot(t *testing.T) {
	ev, err := EvaluateSlot("08:00", at("08:10"), "08:10")
	require.NoError(t, err)
	assert.Equal(t, StatusTaken, ev.Status)
	assert.Equal(t, 10, ev.OffsetMinutes)

	_, err = EvaluateSlot("", at("08:10"), "")
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidInput(err))

	_, err = EvaluateSlot("08:00", at("08:10"), "8h10")
	assert.True(t, apperrors.IsInvalidInput(err))
}

func TestWasLate(t *testing.T) {
	sched := at("08:00")
	assert.False(t, WasLate(sched, sched.Add(30*time.Minute)))
	assert.True(t, WasLate(sched, sched.Add(31*time.Minute)))
	assert.False(t, WasLate(sched, sched.Add(30*time.Minute+45*time.Second)), "seconds inside the last minute are on time")
	assert.False(t, WasLate(sched, sched.Add(-2*time.Hour)))
}
