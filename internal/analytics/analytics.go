// Package analytics aggregates the dose ledger into adherence reports.
// Every report is a read-only scan; an empty window reads as 100%
// adherence with zero counts.
package analytics

import (
	"math"
	"sort"
	"strings"
	"time"

	apperrors "github.com/gmsas95/medtrack/internal/errors"
	"github.com/gmsas95/medtrack/internal/ledger"
	"github.com/gmsas95/medtrack/internal/timeofday"
)

type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodAll   Period = "all"
)

// Days is the look-back length of the period.
func (p Period) Days() int {
	switch p {
	case PeriodMonth:
		return 30
	case PeriodAll:
		return 365
	default:
		return 7
	}
}

// ParsePeriod accepts week, month or all; empty means week.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PeriodWeek, nil
	case PeriodWeek, PeriodMonth, PeriodAll:
		return p, nil
	default:
		return "", apperrors.ErrInvalidPeriod.Withf("%q", s)
	}
}

// Counts is the outcome tally of a set of entries. Taken includes late
// doses; Late is the subset taken more than the on-time window after the
// slot.
type Counts struct {
	Total               int     `json:"total_doses"`
	Taken               int     `json:"taken"`
	Missed              int     `json:"missed"`
	Late                int     `json:"late"`
	Skipped             int     `json:"skipped"`
	AdherencePercentage float64 `json:"adherence_percentage"`
	OnTimePercentage    float64 `json:"on_time_percentage"`
}

func (c *Counts) add(e ledger.Entry) {
	c.Total++
	switch e.Status {
	case ledger.StatusTaken:
		c.Taken++
		if e.WasLate {
			c.Late++
		}
	case ledger.StatusMissed:
		c.Missed++
	case ledger.StatusSkipped:
		c.Skipped++
	}
}

func (c *Counts) finish() {
	c.AdherencePercentage = percentage(c.Taken, c.Total)
	c.OnTimePercentage = percentage(c.Taken-c.Late, c.Total)
}

// Tally counts entries and fills in the percentages.
func Tally(entries []ledger.Entry) Counts {
	var c Counts
	for _, e := range entries {
		c.add(e)
	}
	c.finish()
	return c
}

type Analyzer struct {
	reader ledger.Reader
	clock  timeofday.Clock
}

func New(reader ledger.Reader, clock timeofday.Clock) *Analyzer {
	return &Analyzer{reader: reader, clock: clock}
}

// window returns [today-days, tomorrow) as date stamps.
func (a *Analyzer) window(days int) (from, until string) {
	today := timeofday.StartOfDay(a.clock.Now())
	return timeofday.FormatDate(timeofday.AddDays(today, -days)),
		timeofday.FormatDate(timeofday.AddDays(today, 1))
}

func (a *Analyzer) today() string {
	return timeofday.FormatDate(a.clock.Now())
}

// dayAfter shifts a date stamp by one day; malformed input is returned
// unchanged so the store comparison still applies.
func dayAfter(date string) string {
	d, err := timeofday.ParseDate(date, time.UTC)
	if err != nil {
		return date
	}
	return timeofday.FormatDate(timeofday.AddDays(d, 1))
}

func dayBefore(date string) string {
	d, err := timeofday.ParseDate(date, time.UTC)
	if err != nil {
		return date
	}
	return timeofday.FormatDate(timeofday.AddDays(d, -1))
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 100
	}
	return round1(float64(part) / float64(total) * 100)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
