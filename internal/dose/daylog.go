package dose

import (
	"time"

	"github.com/gmsas95/medtrack/internal/timeofday"
)

// DayLog is the live taken map of one medication for one calendar day.
// Values are treated as immutable; Mark and Rollover return new logs.
type DayLog struct {
	Date  string          `json:"date"`
	Taken map[string]bool `json:"taken"`
}

// SlotOutcome is the final state of a slot on a day that has ended.
type SlotOutcome struct {
	Date  string
	Slot  timeofday.TimeOfDay
	Taken bool
}

func NewDayLog(date string) DayLog {
	return DayLog{Date: date, Taken: map[string]bool{}}
}

func (l DayLog) IsStale(today string) bool {
	return l.Date != today
}

func (l DayLog) IsTaken(slot timeofday.TimeOfDay) bool {
	return l.Taken[slot.String()]
}

// Mark sets a slot and reports whether its state actually changed.
func (l DayLog) Mark(slot timeofday.TimeOfDay, taken bool) (DayLog, bool) {
	key := slot.String()
	if l.Taken[key] == taken {
		return l, false
	}

	next := DayLog{Date: l.Date, Taken: make(map[string]bool, len(l.Taken)+1)}
	for k, v := range l.Taken {
		next.Taken[k] = v
	}
	if taken {
		next.Taken[key] = true
	} else {
		delete(next.Taken, key)
	}
	return next, true
}

// Rollover closes a stale day. It returns one outcome per scheduled slot
// of the stale day and an empty log stamped today. A log that is already
// current is returned unchanged with no outcomes; a log that never carried
// a date has nothing to close.
func (l DayLog) Rollover(today string, slots []timeofday.TimeOfDay) ([]SlotOutcome, DayLog) {
	if !l.IsStale(today) {
		return nil, l
	}
	if l.Date == "" {
		return nil, NewDayLog(today)
	}

	outcomes := make([]SlotOutcome, 0, len(slots))
	for _, s := range slots {
		outcomes = append(outcomes, SlotOutcome{
			Date:  l.Date,
			Slot:  s,
			Taken: l.IsTaken(s),
		})
	}
	return outcomes, NewDayLog(today)
}

// TakenCount counts slots marked taken that are still on the schedule.
func (l DayLog) TakenCount(slots []timeofday.TimeOfDay) int {
	n := 0
	for _, s := range slots {
		if l.IsTaken(s) {
			n++
		}
	}
	return n
}

// NextDose returns the first slot at or after now that has not been taken.
// A stale log counts as empty.
func NextDose(slots []timeofday.TimeOfDay, l DayLog, now time.Time) (timeofday.TimeOfDay, bool) {
	current := timeofday.FromTime(now)
	stale := l.IsStale(timeofday.FormatDate(now))
	for _, s := range slots {
		if s < current {
			continue
		}
		if stale || !l.IsTaken(s) {
			return s, true
		}
	}
	return 0, false
}
