// Package dose classifies individual doses against their scheduled slot and
// holds the live per-day taken map of a medication.
package dose

import (
	"time"

	"github.com/gmsas95/medtrack/internal/timeofday"
)

// Window constants, in minutes relative to the scheduled slot.
const (
	EarlyWindow     = 30
	OnTimeWindow    = 30
	MissedThreshold = 120
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAvailable Status = "available"
	StatusTaken     Status = "taken"
	StatusLate      Status = "late"
	StatusMissed    Status = "missed"
)

// Evaluation is the classification of one dose at one instant.
type Evaluation struct {
	Scheduled     timeofday.TimeOfDay  `json:"scheduled"`
	TakenAt       *timeofday.TimeOfDay `json:"taken_at,omitempty"`
	Status        Status               `json:"status"`
	OffsetMinutes int                  `json:"offset_minutes"`
	CanTakeNow    bool                 `json:"can_take_now"`
}

// Evaluate classifies a dose. The slot is anchored on now's calendar day;
// the offset is takenAt (or now, when not taken) minus the slot, truncated
// to whole minutes, and the status is decided on that offset. Boundaries
// belong to the earlier-named state.
func Evaluate(scheduled timeofday.TimeOfDay, now time.Time, takenAt *timeofday.TimeOfDay) Evaluation {
	slot := scheduled.On(now)

	ref := now
	if takenAt != nil {
		ref = takenAt.On(now)
	}
	offset := int(ref.Sub(slot) / time.Minute)

	ev := Evaluation{
		Scheduled:     scheduled,
		TakenAt:       takenAt,
		OffsetMinutes: offset,
	}

	if takenAt != nil {
		if offset >= -OnTimeWindow && offset <= OnTimeWindow {
			ev.Status = StatusTaken
		} else {
			ev.Status = StatusLate
		}
		return ev
	}

	switch {
	case offset < -EarlyWindow:
		ev.Status = StatusPending
	case offset <= MissedThreshold:
		ev.Status = StatusAvailable
		ev.CanTakeNow = true
	default:
		ev.Status = StatusMissed
	}
	return ev
}

// EvaluateSlot is Evaluate for string inputs at the edge of the system.
// An empty or malformed scheduled time is rejected; an empty takenAt means
// the dose has not been taken.
func EvaluateSlot(scheduled string, now time.Time, takenAt string) (Evaluation, error) {
	slot, err := timeofday.Parse(scheduled)
	if err != nil {
		return Evaluation{}, err
	}

	var taken *timeofday.TimeOfDay
	if takenAt != "" {
		t, err := timeofday.Parse(takenAt)
		if err != nil {
			return Evaluation{}, err
		}
		taken = &t
	}

	return Evaluate(slot, now, taken), nil
}

// WasLate reports whether a dose taken at actual counts as late for the
// ledger: more than OnTimeWindow whole minutes after the scheduled instant,
// matching the offset Evaluate reports.
func WasLate(scheduled, actual time.Time) bool {
	return int(actual.Sub(scheduled)/time.Minute) > OnTimeWindow
}
