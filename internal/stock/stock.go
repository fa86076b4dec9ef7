// Package stock does pill-count accounting: days of supply, stock health
// and the adjustments made when doses are taken, un-marked or refilled.
package stock

import "math"

type Status string

const (
	StatusUnknown  Status = "unknown"
	StatusOut      Status = "out"
	StatusCritical Status = "critical"
	StatusLow      Status = "low"
	StatusMedium   Status = "medium"
	StatusHealthy  Status = "healthy"
)

// Day thresholds for Status, inclusive.
const (
	CriticalDays = 3
	LowDays      = 7
	MediumDays   = 14
)

// DaysRemaining is whole days of supply left. A non-positive daily
// consumption yields 0.
func DaysRemaining(current, frequency, dosePerIntake int) int {
	daily := frequency * dosePerIntake
	if daily <= 0 || current <= 0 {
		return 0
	}
	return current / daily
}

// Classify returns the stock health. A nil current means stock was never
// tracked, which is distinct from an empty supply.
func Classify(current, total *int, frequency, dosePerIntake int) Status {
	if current == nil {
		return StatusUnknown
	}
	if *current <= 0 {
		return StatusOut
	}

	daily := frequency * dosePerIntake
	if daily <= 0 {
		daily = 1
	}
	days := *current / daily

	switch {
	case days <= CriticalDays:
		return StatusCritical
	case days <= LowDays:
		return StatusLow
	case days <= MediumDays:
		return StatusMedium
	default:
		return StatusHealthy
	}
}

// NeedsAttention is true for critical and out.
func (s Status) NeedsAttention() bool {
	return s == StatusCritical || s == StatusOut
}

// Decrement takes one intake from the supply, flooring at zero. clamped
// reports that the supply could not cover the full intake.
func Decrement(current, dosePerIntake int) (next int, clamped bool) {
	next = current - intake(dosePerIntake)
	if next < 0 {
		return 0, true
	}
	return next, false
}

// Increment returns an intake to the supply after an un-mark.
func Increment(current, dosePerIntake int) int {
	if current < 0 {
		current = 0
	}
	return current + intake(dosePerIntake)
}

// Refill adds amount to the supply. When the new current level exceeds the
// recorded total, the total is raised to match.
func Refill(current, total *int, amount int) (newCurrent, newTotal int) {
	c := 0
	if current != nil && *current > 0 {
		c = *current
	}
	if amount > 0 {
		c += amount
	}

	t := c
	if total != nil && *total > t {
		t = *total
	}
	return c, t
}

// Percentage is current over total, to one decimal place. It is nil when
// stock is untracked or the total is unknown.
func Percentage(current, total *int) *float64 {
	if current == nil || total == nil || *total <= 0 {
		return nil
	}
	p := math.Round(float64(*current)/float64(*total)*1000) / 10
	if p < 0 {
		p = 0
	}
	return &p
}

func intake(dosePerIntake int) int {
	if dosePerIntake < 1 {
		return 1
	}
	return dosePerIntake
}
