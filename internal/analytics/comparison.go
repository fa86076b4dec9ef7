package analytics

import (
	"context"
	"fmt"
	"math"

	"github.com/gmsas95/medtrack/internal/ledger"
	"github.com/gmsas95/medtrack/internal/timeofday"
)

type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

// trendThreshold is the change, in percentage points, that counts as a trend.
const trendThreshold = 5.0

type WindowStats struct {
	From   string `json:"from"`
	Until  string `json:"until"`
	Counts Counts `json:"counts"`
}

type Comparison struct {
	Current  WindowStats `json:"current_week"`
	Previous WindowStats `json:"previous_week"`
	Change   float64     `json:"change"`
	Trend    Trend       `json:"trend"`
	Message  string      `json:"message"`
}

// Comparison contrasts the last seven days with the seven before them.
// Today is excluded from both windows.
func (a *Analyzer) Comparison(ctx context.Context, userID string) (*Comparison, error) {
	today := timeofday.StartOfDay(a.clock.Now())
	mid := timeofday.FormatDate(timeofday.AddDays(today, -7))
	start := timeofday.FormatDate(timeofday.AddDays(today, -14))
	end := timeofday.FormatDate(today)

	entries, err := a.reader.Entries(ctx, ledger.Query{UserID: userID, From: start, Until: end})
	if err != nil {
		return nil, err
	}

	var current, previous []ledger.Entry
	for _, e := range entries {
		if e.Date >= mid {
			current = append(current, e)
		} else {
			previous = append(previous, e)
		}
	}

	c := Compare(Tally(current), Tally(previous))
	c.Current.From, c.Current.Until = mid, end
	c.Previous.From, c.Previous.Until = start, mid
	return &c, nil
}

// Compare derives the trend between two tallies.
func Compare(current, previous Counts) Comparison {
	change := round1(current.AdherencePercentage - previous.AdherencePercentage)
	c := Comparison{
		Current:  WindowStats{Counts: current},
		Previous: WindowStats{Counts: previous},
		Change:   change,
	}
	switch {
	case change > trendThreshold:
		c.Trend = TrendImproving
		c.Message = fmt.Sprintf("Great progress! You're up %.1f%% from last week.", change)
	case change < -trendThreshold:
		c.Trend = TrendDeclining
		c.Message = fmt.Sprintf("Your adherence dropped %.1f%% from last week. Let's get back on track!", math.Abs(change))
	default:
		c.Trend = TrendStable
		c.Message = "You're maintaining steady adherence. Keep it up!"
	}
	return c
}
