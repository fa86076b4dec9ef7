package analytics

import (
	"context"
	"fmt"

	"github.com/gmsas95/medtrack/internal/ledger"
)

type Bucket string

const (
	Morning   Bucket = "morning"
	Afternoon Bucket = "afternoon"
	Evening   Bucket = "evening"
	Night     Bucket = "night"
)

// Buckets is the reporting order, also used to break ties.
var Buckets = []Bucket{Morning, Afternoon, Evening, Night}

// BucketOf maps an hour to its part of the day: 06-11 morning, 12-17
// afternoon, 18-23 evening, 00-05 night.
func BucketOf(hour int) Bucket {
	switch {
	case hour >= 6 && hour < 12:
		return Morning
	case hour >= 12 && hour < 18:
		return Afternoon
	case hour >= 18 && hour < 24:
		return Evening
	default:
		return Night
	}
}

type BucketStats struct {
	Bucket   Bucket  `json:"bucket"`
	Total    int     `json:"total"`
	Taken    int     `json:"taken"`
	Missed   int     `json:"missed"`
	MissRate float64 `json:"miss_rate"`
}

type TimeOfDayReport struct {
	Period  Period        `json:"period"`
	Buckets []BucketStats `json:"buckets"`
	Worst   Bucket        `json:"worst_time,omitempty"`
	Insight string        `json:"insight"`
}

func (a *Analyzer) TimeOfDay(ctx context.Context, userID string, period Period) (*TimeOfDayReport, error) {
	from, until := a.window(period.Days())
	entries, err := a.reader.Entries(ctx, ledger.Query{UserID: userID, From: from, Until: until})
	if err != nil {
		return nil, err
	}
	report := BuildTimeOfDay(entries)
	report.Period = period
	return report, nil
}

// BuildTimeOfDay buckets entries by scheduled hour. The worst bucket is
// the one with the highest non-zero miss rate.
func BuildTimeOfDay(entries []ledger.Entry) *TimeOfDayReport {
	stats := make(map[Bucket]*BucketStats, len(Buckets))
	for _, b := range Buckets {
		stats[b] = &BucketStats{Bucket: b}
	}
	for _, e := range entries {
		s := stats[BucketOf(e.TimeSlot.Hour())]
		s.Total++
		switch e.Status {
		case ledger.StatusTaken:
			s.Taken++
		case ledger.StatusMissed:
			s.Missed++
		}
	}

	report := &TimeOfDayReport{Buckets: make([]BucketStats, 0, len(Buckets))}
	var worst *BucketStats
	for _, b := range Buckets {
		s := stats[b]
		if s.Total > 0 {
			s.MissRate = round1(float64(s.Missed) / float64(s.Total) * 100)
		}
		if s.MissRate > 0 && (worst == nil || s.MissRate > worst.MissRate) {
			worst = s
		}
		report.Buckets = append(report.Buckets, *s)
	}

	if worst == nil {
		report.Insight = "Great job! No clear problem times."
		return report
	}
	report.Worst = worst.Bucket
	report.Insight = fmt.Sprintf("You tend to miss doses most in the %s (%.1f%% miss rate)", worst.Bucket, worst.MissRate)
	return report
}
