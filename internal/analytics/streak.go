package analytics

import (
	"context"

	"github.com/gmsas95/medtrack/internal/ledger"
)

// Streak counts consecutive perfect calendar days. A day is perfect when it
// has at least one entry and none of them is missed; a day without entries
// breaks a run.
type Streak struct {
	Current        int    `json:"current_streak"`
	Best           int    `json:"best_streak"`
	IsPerfectToday bool   `json:"is_perfect_today"`
	LastBrokenDate string `json:"last_broken_date,omitempty"`
}

type dayMark struct {
	total  int
	missed int
}

func (d dayMark) perfect() bool { return d.total > 0 && d.missed == 0 }

// Streak scans the whole ledger of a user.
func (a *Analyzer) Streak(ctx context.Context, userID string) (*Streak, error) {
	entries, err := a.reader.Entries(ctx, ledger.Query{UserID: userID})
	if err != nil {
		return nil, err
	}
	s := ComputeStreak(entries, a.today())
	return &s, nil
}

// ComputeStreak derives the streak as of today. Today still counts toward
// the best run but not the current one, since its slots may be open. The
// current run starts at the most recent day before today that has entries.
func ComputeStreak(entries []ledger.Entry, today string) Streak {
	days := map[string]*dayMark{}
	for _, e := range entries {
		d, ok := days[e.Date]
		if !ok {
			d = &dayMark{}
			days[e.Date] = d
		}
		d.total++
		if e.Status == ledger.StatusMissed {
			d.missed++
		}
	}

	var s Streak
	if d, ok := days[today]; ok {
		s.IsPerfectToday = d.perfect()
	}

	dates := sortedKeys(days)

	run := 0
	prev := ""
	for _, date := range dates {
		d := days[date]
		if !d.perfect() {
			run = 0
			prev = date
			continue
		}
		if prev != "" && dayAfter(prev) == date && run > 0 {
			run++
		} else {
			run = 1
		}
		if run > s.Best {
			s.Best = run
		}
		prev = date
	}

	start := ""
	for i := len(dates) - 1; i >= 0; i-- {
		if dates[i] < today {
			start = dates[i]
			break
		}
	}
	for date := start; date != ""; {
		d, ok := days[date]
		if !ok || !d.perfect() {
			s.LastBrokenDate = date
			break
		}
		s.Current++
		prev := dayBefore(date)
		if prev == date {
			break
		}
		date = prev
	}
	return s
}
