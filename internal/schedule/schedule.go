// Package schedule derives the daily dose slots of a medication from its
// frequency and timing hint.
package schedule

import (
	"sort"
	"strings"
	"time"

	apperrors "github.com/gmsas95/medtrack/internal/errors"
	"github.com/gmsas95/medtrack/internal/timeofday"
)

const (
	spreadStartHour = 8
	spreadWindow    = 14
)

var defaultSchedules = map[int][]string{
	1: {"08:00"},
	2: {"08:00", "20:00"},
	3: {"08:00", "14:00", "22:00"},
	4: {"08:00", "12:00", "18:00", "22:00"},
	5: {"06:00", "10:00", "14:00", "18:00", "22:00"},
	6: {"06:00", "10:00", "14:00", "18:00", "22:00", "02:00"},
}

// Timing presets keyed by their lower-cased hint. A nil slice means the
// hint carries no clock time and the frequency table applies.
var presets = map[string][]string{
	"before breakfast": {"07:00"},
	"after breakfast":  {"08:30"},
	"before lunch":     {"11:30"},
	"after lunch":      {"13:00"},
	"before dinner":    {"18:30"},
	"after dinner":     {"19:30"},
	"before bed":       {"22:00"},
	"with meals":       {"08:00", "13:00", "19:00"},
	"empty stomach":    {"06:30"},
	"as needed":        nil,
}

// Presets lists the known timing hints, sorted.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Generate returns the sorted, distinct slots for one day. A frequency of
// zero or less yields an empty schedule.
func Generate(frequency int, timing string) []timeofday.TimeOfDay {
	if frequency <= 0 {
		return []timeofday.TimeOfDay{}
	}

	if preset, ok := presets[normalizeTiming(timing)]; ok && len(preset) > 0 {
		switch {
		case len(preset) == 1 && frequency == 1:
			return finalize(mustParseAll(preset))
		case len(preset) == 1 && frequency == 2:
			first := timeofday.MustParse(preset[0])
			return finalize([]timeofday.TimeOfDay{first, first.Add(12 * time.Hour)})
		case len(preset) > 1 && frequency <= len(preset):
			return finalize(mustParseAll(preset[:frequency]))
		}
	}

	return byFrequency(frequency)
}

// Normalize validates a user-supplied custom schedule and returns it sorted
// and without duplicates.
func Normalize(slots []string) ([]timeofday.TimeOfDay, error) {
	if len(slots) == 0 {
		return nil, apperrors.ErrInvalidInput.Withf("custom schedule needs at least one time")
	}
	parsed, err := timeofday.ParseAll(slots)
	if err != nil {
		return nil, err
	}
	return finalize(parsed), nil
}

func byFrequency(frequency int) []timeofday.TimeOfDay {
	if table, ok := defaultSchedules[frequency]; ok {
		return finalize(mustParseAll(table))
	}

	// Spread across the waking window in whole-hour steps. Above 15 doses
	// a day the steps collide and the schedule carries fewer slots.
	slots := make([]timeofday.TimeOfDay, 0, frequency)
	for i := 0; i < frequency; i++ {
		hour := spreadStartHour + i*spreadWindow/(frequency-1)
		slots = append(slots, timeofday.New(hour, 0))
	}
	return finalize(slots)
}

func finalize(slots []timeofday.TimeOfDay) []timeofday.TimeOfDay {
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })

	out := slots[:0]
	for i, s := range slots {
		if i > 0 && s == slots[i-1] {
			continue
		}
		out = append(out, s)
	}
	return out
}

func mustParseAll(ss []string) []timeofday.TimeOfDay {
	out := make([]timeofday.TimeOfDay, len(ss))
	for i, s := range ss {
		out[i] = timeofday.MustParse(s)
	}
	return out
}

func normalizeTiming(timing string) string {
	return strings.Join(strings.Fields(strings.ToLower(timing)), " ")
}
