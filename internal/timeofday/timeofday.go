// Package timeofday holds the clock-time and calendar-date value types
// shared by scheduling, status evaluation and analytics.
package timeofday

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/gmsas95/medtrack/internal/errors"
)

const (
	DateLayout   = "2006-01-02"
	minutesInDay = 24 * 60
)

// TimeOfDay is a wall-clock time in minutes past midnight.
type TimeOfDay int

// Parse accepts "H:MM" or "HH:MM" in 24-hour form.
func Parse(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, apperrors.ErrInvalidTime.Withf("empty time")
	}

	h, m, ok := strings.Cut(s, ":")
	if !ok || len(m) != 2 || len(h) == 0 || len(h) > 2 {
		return 0, apperrors.ErrInvalidTime.Withf("%q", s)
	}

	hour, ok := digits(h)
	if !ok || hour > 23 {
		return 0, apperrors.ErrInvalidTime.Withf("%q", s)
	}
	minute, ok := digits(m)
	if !ok || minute > 59 {
		return 0, apperrors.ErrInvalidTime.Withf("%q", s)
	}

	return TimeOfDay(hour*60 + minute), nil
}

// digits parses an unsigned decimal made only of ASCII digits.
func digits(s string) (int, bool) {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, len(s) > 0
}

// MustParse is Parse for compile-time constants.
func MustParse(s string) TimeOfDay {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// FromTime drops the date and seconds of t.
func FromTime(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

func New(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute).normalize()
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }
func (t TimeOfDay) Minutes() int {
	return int(t)
}

// Add wraps around midnight.
func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	return (t + TimeOfDay(d/time.Minute)).normalize()
}

func (t TimeOfDay) Before(u TimeOfDay) bool { return t < u }

// On anchors t on the calendar day of date, in date's location.
func (t TimeOfDay) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, date.Location())
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func (t TimeOfDay) normalize() TimeOfDay {
	v := int(t) % minutesInDay
	if v < 0 {
		v += minutesInDay
	}
	return TimeOfDay(v)
}

// Strings formats a slice of slots.
func Strings(ts []TimeOfDay) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.String()
	}
	return out
}

// ParseAll parses every slot, failing on the first malformed one.
func ParseAll(ss []string) ([]TimeOfDay, error) {
	out := make([]TimeOfDay, 0, len(ss))
	for _, s := range ss {
		t, err := Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// ParseDate parses a YYYY-MM-DD calendar date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, apperrors.ErrInvalidDate.WithCause(err)
	}
	return d, nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// StartOfDay truncates t to local midnight.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddDays moves a date by n calendar days, ignoring DST hour shifts.
func AddDays(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+n, 0, 0, 0, 0, t.Location())
}
