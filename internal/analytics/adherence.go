package analytics

import (
	"context"
	"sort"

	"github.com/gmsas95/medtrack/internal/ledger"
)

type MedicationStats struct {
	MedicationID   string `json:"medication_id"`
	MedicationName string `json:"medication_name"`
	Counts
}

type DayStats struct {
	Date string `json:"date"`
	Counts
}

type AdherenceReport struct {
	Period       Period            `json:"period"`
	From         string            `json:"from"`
	Until        string            `json:"until"`
	Summary      Counts            `json:"summary"`
	ByMedication []MedicationStats `json:"by_medication"`
	ByDate       []DayStats        `json:"by_date"`
}

// AdherenceStats tallies the period ending today, optionally for a single
// medication.
func (a *Analyzer) AdherenceStats(ctx context.Context, userID string, period Period, medicationID string) (*AdherenceReport, error) {
	from, until := a.window(period.Days())
	entries, err := a.reader.Entries(ctx, ledger.Query{
		UserID:       userID,
		MedicationID: medicationID,
		From:         from,
		Until:        until,
	})
	if err != nil {
		return nil, err
	}

	report := BuildAdherence(entries)
	report.Period = period
	report.From = from
	report.Until = until
	return report, nil
}

// BuildAdherence aggregates entries with no window attached.
func BuildAdherence(entries []ledger.Entry) *AdherenceReport {
	var summary Counts
	byMed := map[string]*MedicationStats{}
	byDate := map[string]*DayStats{}

	for _, e := range entries {
		summary.add(e)

		m, ok := byMed[e.MedicationID]
		if !ok {
			m = &MedicationStats{MedicationID: e.MedicationID}
			byMed[e.MedicationID] = m
		}
		if e.MedicationName != "" {
			m.MedicationName = e.MedicationName
		}
		m.add(e)

		d, ok := byDate[e.Date]
		if !ok {
			d = &DayStats{Date: e.Date}
			byDate[e.Date] = d
		}
		d.add(e)
	}
	summary.finish()

	report := &AdherenceReport{
		Summary:      summary,
		ByMedication: make([]MedicationStats, 0, len(byMed)),
		ByDate:       make([]DayStats, 0, len(byDate)),
	}
	for _, m := range byMed {
		m.finish()
		report.ByMedication = append(report.ByMedication, *m)
	}
	sort.Slice(report.ByMedication, func(i, j int) bool {
		a, b := report.ByMedication[i], report.ByMedication[j]
		if a.MedicationName != b.MedicationName {
			return a.MedicationName < b.MedicationName
		}
		return a.MedicationID < b.MedicationID
	})
	for _, date := range sortedKeys(byDate) {
		d := byDate[date]
		d.finish()
		report.ByDate = append(report.ByDate, *d)
	}
	return report
}

// MissedFilter narrows MissedDoses and History. To is inclusive.
type MissedFilter struct {
	MedicationID string
	From         string
	To           string
	Limit        int
}

const (
	defaultMissedLimit  = 20
	defaultHistoryLimit = 50
)

// MissedDoses lists missed entries, newest first.
func (a *Analyzer) MissedDoses(ctx context.Context, userID string, f MissedFilter) ([]ledger.Entry, error) {
	return a.list(ctx, userID, f, []ledger.Status{ledger.StatusMissed}, defaultMissedLimit)
}

// History lists entries of every status, newest first.
func (a *Analyzer) History(ctx context.Context, userID string, f MissedFilter) ([]ledger.Entry, error) {
	return a.list(ctx, userID, f, nil, defaultHistoryLimit)
}

func (a *Analyzer) list(ctx context.Context, userID string, f MissedFilter, statuses []ledger.Status, defaultLimit int) ([]ledger.Entry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	q := ledger.Query{
		UserID:       userID,
		MedicationID: f.MedicationID,
		Statuses:     statuses,
		From:         f.From,
		Limit:        limit,
		Newest:       true,
	}
	if f.To != "" {
		q.Until = dayAfter(f.To)
	}

	entries, err := a.reader.Entries(ctx, q)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}
	return entries, nil
}
