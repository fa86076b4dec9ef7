package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmsas95/medtrack/internal/dose"
	apperrors "github.com/gmsas95/medtrack/internal/errors"
	"github.com/gmsas95/medtrack/internal/store"
	"github.com/gmsas95/medtrack/internal/timeofday"
)

func setupLedger(t *testing.T) *Ledger {
	t.Helper()
	st, err := store.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(st, time.UTC, nil)
}

func slot(s string) timeofday.TimeOfDay { return timeofday.MustParse(s) }

func TestLedger_LogEventComputesWasLate(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		actual  time.Time
		wasLate bool
	}{
		{"on time", time.Date(2026, 4, 10, 8, 10, 0, 0, time.UTC), false},
		{"boundary", time.Date(2026, 4, 10, 8, 30, 0, 0, time.UTC), false},
		{"late", time.Date(2026, 4, 10, 8, 45, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual := tt.actual
			entry, err := l.LogEvent(ctx, Event{
				UserID:       "u",
				MedicationID: "m",
				Date:         "2026-04-10",
				Slot:         slot("08:00"),
				Status:       StatusTaken,
				ActualTime:   &actual,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wasLate, entry.WasLate)
			assert.Equal(t, time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC), entry.ScheduledAt)
		})
	}

	entries, err := l.Entries(ctx, Query{UserID: "u"})
	require.NoError(t, err)
	assert.Len(t, entries, 1, "same key must upsert")
}

func TestLedger_UpsertKeepsLatestStatus(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()

	base := Event{UserID: "u", MedicationID: "m", MedicationName: "Aspirin", Date: "2026-04-10", Slot: slot("20:00")}

	first := base
	first.Status = StatusMissed
	_, err := l.LogEvent(ctx, first)
	require.NoError(t, err)

	second := base
	second.Status = StatusSkipped
	second.Notes = "doctor said pause"
	_, err = l.LogEvent(ctx, second)
	require.NoError(t, err)

	entries, err := l.Entries(ctx, Query{UserID: "u", MedicationID: "m"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, StatusSkipped, entries[0].Status)
	assert.Equal(t, "doctor said pause", entries[0].Notes)
	assert.Equal(t, "Aspirin", entries[0].MedicationName)
}

func TestLedger_LogEventRejectsBadInput(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()

	_, err := l.LogEvent(ctx, Event{UserID: "u", MedicationID: "m", Date: "2026-04-10", Slot: slot("08:00"), Status: "late"})
	assert.True(t, apperrors.IsInvalidInput(err))

	_, err = l.LogEvent(ctx, Event{UserID: "u", MedicationID: "m", Date: "10/04/2026", Slot: slot("08:00"), Status: StatusTaken})
	assert.True(t, apperrors.IsInvalidInput(err))

	_, err = l.LogEvent(ctx, Event{UserID: "u", Date: "2026-04-10", Slot: slot("08:00"), Status: StatusTaken})
	assert.True(t, apperrors.IsInvalidInput(err))
}

func TestLedger_FlushFillsGapsOnly(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()

	_, err := l.LogEvent(ctx, Event{UserID: "u", MedicationID: "m", Date: "2026-04-09", Slot: slot("20:00"), Status: StatusSkipped})
	require.NoError(t, err)

	n, err := l.Flush(ctx, "u", "m", "Aspirin", []dose.SlotOutcome{
		{Date: "2026-04-09", Slot: slot("08:00"), Taken: true},
		{Date: "2026-04-09", Slot: slot("20:00"), Taken: false},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	entries, err := l.Entries(ctx, Query{UserID: "u"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, StatusTaken, entries[0].Status)
	assert.Nil(t, entries[0].ActualTime)
	assert.False(t, entries[0].WasLate)
	assert.Equal(t, StatusSkipped, entries[1].Status)

	n, err = l.Flush(ctx, "u", "m", "Aspirin", []dose.SlotOutcome{{Date: "2026-04-09", Slot: slot("08:00")}})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "second flush is a no-op")
}

func TestLedger_RemoveAndDay(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()

	for _, e := range []Event{
		{UserID: "u", MedicationID: "a", Date: "2026-04-10", Slot: slot("08:00"), Status: StatusTaken},
		{UserID: "u", MedicationID: "b", Date: "2026-04-10", Slot: slot("13:00"), Status: StatusSkipped},
		{UserID: "u", MedicationID: "a", Date: "2026-04-11", Slot: slot("08:00"), Status: StatusTaken},
	} {
		_, err := l.LogEvent(ctx, e)
		require.NoError(t, err)
	}

	day, err := l.Day(ctx, "u", "2026-04-10")
	require.NoError(t, err)
	assert.Len(t, day, 2)
	assert.Equal(t, StatusSkipped, day["b"][slot("13:00")].Status)

	require.NoError(t, l.Remove(ctx, "a", "2026-04-10", slot("08:00")))
	day, err = l.Day(ctx, "u", "2026-04-10")
	require.NoError(t, err)
	assert.NotContains(t, day, "a")

	has, err := l.HasHistory(ctx, "a")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = l.HasHistory(ctx, "z")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestLedger_RangeMissedHistory(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()

	for _, e := range []Event{
		{UserID: "u", MedicationID: "a", Date: "2026-04-08", Slot: slot("08:00"), Status: StatusMissed},
		{UserID: "u", MedicationID: "a", Date: "2026-04-09", Slot: slot("08:00"), Status: StatusTaken},
		{UserID: "u", MedicationID: "b", Date: "2026-04-10", Slot: slot("08:00"), Status: StatusMissed},
	} {
		_, err := l.LogEvent(ctx, e)
		require.NoError(t, err)
	}

	window, err := l.Range(ctx, "u", "2026-04-09", "2026-04-11")
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.Equal(t, "2026-04-09", window[0].Date)

	missed, err := l.Missed(ctx, "u", "", 10)
	require.NoError(t, err)
	require.Len(t, missed, 2)
	assert.Equal(t, "2026-04-10", missed[0].Date)

	missedA, err := l.Missed(ctx, "u", "a", 10)
	require.NoError(t, err)
	assert.Len(t, missedA, 1)

	history, err := l.History(ctx, "u", "", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "2026-04-10", history[0].Date)
}

func TestLedger_Lookup(t *testing.T) {
	l := setupLedger(t)
	ctx := context.Background()

	got, err := l.Lookup(ctx, "a", "2026-04-10", slot("08:00"))
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = l.LogEvent(ctx, Event{UserID: "u", MedicationID: "a", Date: "2026-04-10", Slot: slot("08:00"), Status: StatusSkipped})
	require.NoError(t, err)

	got, err = l.Lookup(ctx, "a", "2026-04-10", slot("08:00"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StatusSkipped, got.Status)
	assert.Equal(t, slot("08:00"), got.TimeSlot)
}
