// Package ledger is the permanent record of dose outcomes. Every analytic
// is derived from it; nothing here reads the live day state.
package ledger

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/gmsas95/medtrack/internal/dose"
	apperrors "github.com/gmsas95/medtrack/internal/errors"
	"github.com/gmsas95/medtrack/internal/store"
	"github.com/gmsas95/medtrack/internal/timeofday"
)

type Status string

const (
	StatusTaken   Status = "taken"
	StatusMissed  Status = "missed"
	StatusSkipped Status = "skipped"
)

func (s Status) Valid() bool {
	switch s {
	case StatusTaken, StatusMissed, StatusSkipped:
		return true
	}
	return false
}

// Event is one outcome to record.
type Event struct {
	UserID         string
	MedicationID   string
	MedicationName string
	Date           string
	Slot           timeofday.TimeOfDay
	Status         Status
	ActualTime     *time.Time
	Notes          string
}

// Entry is one stored outcome.
type Entry struct {
	MedicationID   string              `json:"medication_id"`
	MedicationName string              `json:"medication_name"`
	Date           string              `json:"date"`
	TimeSlot       timeofday.TimeOfDay `json:"time_slot"`
	Status         Status              `json:"status"`
	ScheduledAt    time.Time           `json:"scheduled_at"`
	ActualTime     *time.Time          `json:"actual_time,omitempty"`
	WasLate        bool                `json:"was_late"`
	Notes          string              `json:"notes,omitempty"`
}

// Query selects entries for one user. From is inclusive, Until exclusive.
type Query struct {
	UserID       string
	MedicationID string
	Statuses     []Status
	From         string
	Until        string
	Limit        int
	Newest       bool
}

// Reader is what analytics needs from the ledger.
type Reader interface {
	Entries(ctx context.Context, q Query) ([]Entry, error)
}

type Ledger struct {
	store  *store.Store
	loc    *time.Location
	logger *zap.Logger
}

func New(st *store.Store, loc *time.Location, logger *zap.Logger) *Ledger {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{store: st, loc: loc, logger: logger}
}

// LogEvent upserts the outcome of one slot. A later call for the same
// (medication, date, slot) replaces the earlier outcome.
func (l *Ledger) LogEvent(ctx context.Context, ev Event) (*Entry, error) {
	rec, err := l.record(ev)
	if err != nil {
		return nil, err
	}

	if err := l.store.UpsertDoseRecord(ctx, rec); err != nil {
		l.logger.Warn("Dose ledger write failed",
			zap.String("medication_id", ev.MedicationID),
			zap.String("date", ev.Date),
			zap.String("slot", ev.Slot.String()),
			zap.Error(err),
		)
		return nil, apperrors.ErrLedgerWrite.WithCause(err)
	}

	entry := toEntry(rec, ev.Slot)
	return &entry, nil
}

// Flush records the outcomes of a closed day. Slots that already have an
// entry keep it; only the gaps are filled.
func (l *Ledger) Flush(ctx context.Context, userID, medicationID, medicationName string, outcomes []dose.SlotOutcome) (int64, error) {
	if len(outcomes) == 0 {
		return 0, nil
	}

	recs := make([]store.DoseRecord, 0, len(outcomes))
	for _, o := range outcomes {
		status := StatusMissed
		if o.Taken {
			status = StatusTaken
		}
		rec, err := l.record(Event{
			UserID:         userID,
			MedicationID:   medicationID,
			MedicationName: medicationName,
			Date:           o.Date,
			Slot:           o.Slot,
			Status:         status,
		})
		if err != nil {
			return 0, err
		}
		recs = append(recs, *rec)
	}

	n, err := l.store.InsertDoseRecordsIfAbsent(ctx, recs)
	if err != nil {
		return 0, apperrors.ErrLedgerWrite.WithCause(err)
	}

	l.logger.Debug("Flushed closed day",
		zap.String("medication_id", medicationID),
		zap.String("date", outcomes[0].Date),
		zap.Int("slots", len(outcomes)),
		zap.Int64("written", n),
	)
	return n, nil
}

// Remove drops the entry of one slot, used when a same-day mark is undone.
func (l *Ledger) Remove(ctx context.Context, medicationID, date string, slot timeofday.TimeOfDay) error {
	if err := l.store.DeleteDoseRecord(ctx, medicationID, date, slot.String()); err != nil {
		return apperrors.ErrLedgerWrite.WithCause(err)
	}
	return nil
}

// Entries implements Reader.
func (l *Ledger) Entries(ctx context.Context, q Query) ([]Entry, error) {
	statuses := make([]string, len(q.Statuses))
	for i, s := range q.Statuses {
		statuses[i] = string(s)
	}

	recs, err := l.store.FindDoseRecords(ctx, store.DoseQuery{
		UserID:       q.UserID,
		MedicationID: q.MedicationID,
		Statuses:     statuses,
		From:         q.From,
		Until:        q.Until,
		Limit:        q.Limit,
		Newest:       q.Newest,
	})
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(recs))
	for i := range recs {
		slot, err := timeofday.Parse(recs[i].TimeSlot)
		if err != nil {
			l.logger.Warn("Skipping ledger row with malformed slot",
				zap.String("id", recs[i].ID),
				zap.String("time_slot", recs[i].TimeSlot),
			)
			continue
		}
		out = append(out, toEntry(&recs[i], slot))
	}
	return out, nil
}

// Lookup returns the entry of one slot, or nil when none was recorded.
func (l *Ledger) Lookup(ctx context.Context, medicationID, date string, slot timeofday.TimeOfDay) (*Entry, error) {
	rec, err := l.store.GetDoseRecord(ctx, medicationID, date, slot.String())
	if apperrors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	entry := toEntry(rec, slot)
	return &entry, nil
}

// Range returns a user's entries dated within [from, until), oldest first.
func (l *Ledger) Range(ctx context.Context, userID, from, until string) ([]Entry, error) {
	return l.Entries(ctx, Query{UserID: userID, From: from, Until: until})
}

// Missed returns up to limit missed entries, newest first.
func (l *Ledger) Missed(ctx context.Context, userID, medicationID string, limit int) ([]Entry, error) {
	return l.Entries(ctx, Query{
		UserID:       userID,
		MedicationID: medicationID,
		Statuses:     []Status{StatusMissed},
		Limit:        limit,
		Newest:       true,
	})
}

// History returns up to limit entries of any status, newest first.
func (l *Ledger) History(ctx context.Context, userID, medicationID string, limit int) ([]Entry, error) {
	return l.Entries(ctx, Query{
		UserID:       userID,
		MedicationID: medicationID,
		Limit:        limit,
		Newest:       true,
	})
}

// Day returns a user's entries for one date, keyed by medication and slot.
func (l *Ledger) Day(ctx context.Context, userID, date string) (map[string]map[timeofday.TimeOfDay]Entry, error) {
	entries, err := l.Entries(ctx, Query{
		UserID: userID,
		From:   date,
		Until:  nextDate(date, l.loc),
	})
	if err != nil {
		return nil, err
	}

	out := map[string]map[timeofday.TimeOfDay]Entry{}
	for _, e := range entries {
		if out[e.MedicationID] == nil {
			out[e.MedicationID] = map[timeofday.TimeOfDay]Entry{}
		}
		out[e.MedicationID][e.TimeSlot] = e
	}
	return out, nil
}

// HasHistory reports whether any entry references the medication.
func (l *Ledger) HasHistory(ctx context.Context, medicationID string) (bool, error) {
	n, err := l.store.CountDoseRecords(ctx, medicationID)
	return n > 0, err
}

func (l *Ledger) record(ev Event) (*store.DoseRecord, error) {
	if !ev.Status.Valid() {
		return nil, apperrors.ErrInvalidStatus.Withf("%q", ev.Status)
	}
	if ev.MedicationID == "" || ev.UserID == "" {
		return nil, apperrors.ErrInvalidInput.Withf("medication and user are required")
	}
	day, err := timeofday.ParseDate(ev.Date, l.loc)
	if err != nil {
		return nil, err
	}

	scheduled := ev.Slot.On(day)
	rec := &store.DoseRecord{
		UserID:         ev.UserID,
		MedicationID:   ev.MedicationID,
		MedicationName: ev.MedicationName,
		Date:           timeofday.FormatDate(day),
		TimeSlot:       ev.Slot.String(),
		Status:         string(ev.Status),
		ScheduledAt:    scheduled,
		Notes:          ev.Notes,
	}
	if ev.Status == StatusTaken && ev.ActualTime != nil {
		actual := ev.ActualTime.In(l.loc)
		rec.ActualTime = &actual
		rec.WasLate = dose.WasLate(scheduled, actual)
	}
	return rec, nil
}

func toEntry(rec *store.DoseRecord, slot timeofday.TimeOfDay) Entry {
	return Entry{
		MedicationID:   rec.MedicationID,
		MedicationName: rec.MedicationName,
		Date:           rec.Date,
		TimeSlot:       slot,
		Status:         Status(rec.Status),
		ScheduledAt:    rec.ScheduledAt,
		ActualTime:     rec.ActualTime,
		WasLate:        rec.WasLate,
		Notes:          rec.Notes,
	}
}

func nextDate(date string, loc *time.Location) string {
	d, err := timeofday.ParseDate(date, loc)
	if err != nil {
		return date
	}
	return timeofday.FormatDate(timeofday.AddDays(d, 1))
}
