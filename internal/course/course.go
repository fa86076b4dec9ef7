// Package course parses prescription durations and reports how far a
// course of treatment has progressed.
package course

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gmsas95/medtrack/internal/timeofday"
)

const (
	daysPerWeek  = 7
	daysPerMonth = 30
)

var durationRe = regexp.MustCompile(`^(\d+)\s*(day|days|week|weeks|month|months)?$`)

// ParseDays converts "10 days", "2 weeks", "1 month" or a bare "14" into a
// day count. ok is false for anything else.
func ParseDays(duration string) (days int, ok bool) {
	m := durationRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(duration)))
	if m == nil {
		return 0, false
	}

	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}

	switch strings.TrimSuffix(m[2], "s") {
	case "week":
		return n * daysPerWeek, true
	case "month":
		return n * daysPerMonth, true
	default:
		return n, true
	}
}

// EndDate is start plus the parsed duration, or "" when either is unusable.
func EndDate(startDate, duration string) string {
	days, ok := ParseDays(duration)
	if !ok {
		return ""
	}
	start, err := timeofday.ParseDate(startDate, time.UTC)
	if err != nil {
		return ""
	}
	return timeofday.FormatDate(timeofday.AddDays(start, days))
}

// Progress describes where today falls within a course.
type Progress struct {
	TotalDays     int     `json:"total_days"`
	DaysElapsed   int     `json:"days_elapsed"`
	DaysRemaining int     `json:"days_remaining"`
	Percent       float64 `json:"percent"`
	Completed     bool    `json:"completed"`
}

// ProgressAt computes progress for a course running [start, end). It
// returns nil when either bound is missing or malformed.
func ProgressAt(startDate, endDate string, now time.Time) *Progress {
	if startDate == "" || endDate == "" {
		return nil
	}
	start, err := timeofday.ParseDate(startDate, time.UTC)
	if err != nil {
		return nil
	}
	end, err := timeofday.ParseDate(endDate, time.UTC)
	if err != nil {
		return nil
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	total := daysBetween(start, end)
	if total <= 0 {
		return nil
	}

	elapsed := daysBetween(start, today)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > total {
		elapsed = total
	}

	return &Progress{
		TotalDays:     total,
		DaysElapsed:   elapsed,
		DaysRemaining: total - elapsed,
		Percent:       math.Round(float64(elapsed)/float64(total)*1000) / 10,
		Completed:     !today.Before(end),
	}
}

func daysBetween(a, b time.Time) int {
	return int(math.Round(b.Sub(a).Hours() / 24))
}
