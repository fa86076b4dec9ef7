package tracker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/gmsas95/medtrack/internal/dose"
	apperrors "github.com/gmsas95/medtrack/internal/errors"
	"github.com/gmsas95/medtrack/internal/ledger"
	"github.com/gmsas95/medtrack/internal/security"
	"github.com/gmsas95/medtrack/internal/stock"
	"github.com/gmsas95/medtrack/internal/store"
	"github.com/gmsas95/medtrack/internal/timeofday"
)

// MarkResult is the outcome of marking one slot. When LedgerPending is
// set the live state was committed but the ledger write failed; marking
// again retries the write without touching stock.
type MarkResult struct {
	MedicationID  string          `json:"medication_id"`
	Date          string          `json:"date"`
	Slot          string          `json:"time_slot"`
	Taken         bool            `json:"taken"`
	Changed       bool            `json:"changed"`
	Evaluation    dose.Evaluation `json:"evaluation"`
	CurrentStock  *int            `json:"current_stock,omitempty"`
	StockStatus   stock.Status    `json:"stock_status"`
	StockClamped  bool            `json:"stock_clamped,omitempty"`
	LedgerPending bool            `json:"ledger_pending,omitempty"`
	Entry         *ledger.Entry   `json:"entry,omitempty"`
}

// DoseView is one slot of today's schedule.
type DoseView struct {
	dose.Evaluation
	Time    string `json:"time"`
	Taken   bool   `json:"taken"`
	Skipped bool   `json:"skipped,omitempty"`
	WasLate bool   `json:"was_late,omitempty"`
}

type TodayMedication struct {
	MedicationID   string       `json:"medication_id"`
	MedicationName string       `json:"medication_name"`
	Doses          []DoseView   `json:"doses"`
	TakenCount     int          `json:"taken_count"`
	TotalDoses     int          `json:"total_doses"`
	NextDose       string       `json:"next_dose,omitempty"`
	CurrentStock   *int         `json:"current_stock,omitempty"`
	StockStatus    stock.Status `json:"stock_status"`
}

type TodaySummary struct {
	Total     int `json:"total"`
	Taken     int `json:"taken"`
	Late      int `json:"late"`
	Available int `json:"available"`
	Pending   int `json:"pending"`
	Missed    int `json:"missed"`
	Skipped   int `json:"skipped"`
}

type Today struct {
	Date        string            `json:"date"`
	Now         string            `json:"now"`
	Medications []TodayMedication `json:"medications"`
	Summary     TodaySummary      `json:"summary"`
}

// RolloverResult reports a day flush.
type RolloverResult struct {
	MedicationID string `json:"medication_id"`
	ClosedDate   string `json:"closed_date,omitempty"`
	Entries      int64  `json:"entries"`
	RolledOver   bool   `json:"rolled_over"`
}

// SweepResult summarizes a rollover pass over many medications.
type SweepResult struct {
	Checked int   `json:"checked"`
	Rolled  int   `json:"rolled"`
	Entries int64 `json:"entries"`
	Failed  int   `json:"failed"`
}

type LowStockItem struct {
	UserID        string       `json:"user_id"`
	MedicationID  string       `json:"medication_id"`
	Name          string       `json:"name"`
	CurrentStock  int          `json:"current_stock"`
	DaysRemaining int          `json:"days_remaining"`
	Status        stock.Status `json:"status"`
}

// rollover closes a stale day on med in memory and flushes its outcomes.
// The caller persists med. If the flush fails med is left untouched.
func (s *Service) rollover(ctx context.Context, med *store.Medication, slots []timeofday.TimeOfDay, today string) (*RolloverResult, error) {
	res := &RolloverResult{MedicationID: med.ID}
	log := dayLogOf(med)
	if !log.IsStale(today) {
		return res, nil
	}

	outcomes, next := log.Rollover(today, slots)
	n, err := s.ledger.Flush(ctx, med.UserID, med.ID, med.Name, outcomes)
	if err != nil {
		s.observer.LedgerWriteFailed()
		return nil, err
	}

	res.ClosedDate = log.Date
	res.Entries = n
	res.RolledOver = true
	applyDayLog(med, next)
	return res, nil
}

// Rollover flushes a stale day of one medication into the ledger and
// resets its live state to today.
func (s *Service) Rollover(ctx context.Context, userID, medicationID string) (*RolloverResult, error) {
	var res *RolloverResult
	err := s.withMedication(ctx, userID, medicationID, func(med *store.Medication, slots []timeofday.TimeOfDay) error {
		r, err := s.rollover(ctx, med, slots, s.today())
		if err != nil {
			return err
		}
		if r.RolledOver {
			if err := s.store.SaveDayState(ctx, med); err != nil {
				return err
			}
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.RolledOver {
		s.observer.DayRolledOver(res.Entries)
		s.logger.Debug("Day rolled over",
			zap.String("medication_id", medicationID),
			zap.String("closed_date", res.ClosedDate),
			zap.Int64("entries", res.Entries),
		)
	}
	return res, nil
}

// RolloverAll rolls over every active medication of a user. It stops at
// the first failure.
func (s *Service) RolloverAll(ctx context.Context, userID string) (*SweepResult, error) {
	meds, err := s.store.ListMedications(ctx, userID, true)
	if err != nil {
		return nil, err
	}

	out := &SweepResult{}
	today := s.today()
	for i := range meds {
		if !dayLogOf(&meds[i]).IsStale(today) {
			continue
		}
		out.Checked++
		r, err := s.Rollover(ctx, userID, meds[i].ID)
		if err != nil {
			return out, err
		}
		if r.RolledOver {
			out.Rolled++
			out.Entries += r.Entries
		}
	}
	return out, nil
}

// Sweep rolls over stale medications of all users. Failures are logged and
// counted; the sweep continues with the next medication.
func (s *Service) Sweep(ctx context.Context) (*SweepResult, error) {
	meds, err := s.store.ListStaleMedications(ctx, s.today(), 0)
	if err != nil {
		return nil, err
	}

	out := &SweepResult{Checked: len(meds)}
	for i := range meds {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		r, err := s.Rollover(ctx, meds[i].UserID, meds[i].ID)
		if err != nil {
			out.Failed++
			s.logger.Warn("Rollover failed",
				zap.String("medication_id", meds[i].ID),
				zap.Error(err),
			)
			continue
		}
		if r.RolledOver {
			out.Rolled++
			out.Entries += r.Entries
		}
	}

	s.logger.Info("Rollover sweep finished",
		zap.Int("checked", out.Checked),
		zap.Int("rolled", out.Rolled),
		zap.Int64("entries", out.Entries),
		zap.Int("failed", out.Failed),
	)
	return out, nil
}

// TodayView evaluates every slot of today for a user's active
// medications. It does not write; a stale live state reads as nothing
// taken.
func (s *Service) TodayView(ctx context.Context, userID string) (*Today, error) {
	now := s.now()
	today := timeofday.FormatDate(now)

	meds, err := s.store.ListMedications(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	entries, err := s.ledger.Day(ctx, userID, today)
	if err != nil {
		return nil, err
	}

	out := &Today{
		Date:        today,
		Now:         timeofday.FromTime(now).String(),
		Medications: make([]TodayMedication, 0, len(meds)),
	}
	for i := range meds {
		med := &meds[i]
		slots, _, err := s.slotsOf(ctx, med)
		if err != nil {
			return nil, err
		}

		log := dayLogOf(med)
		if log.IsStale(today) {
			log = dose.NewDayLog(today)
		}

		tm := TodayMedication{
			MedicationID:   med.ID,
			MedicationName: med.Name,
			Doses:          make([]DoseView, 0, len(slots)),
			TotalDoses:     len(slots),
			TakenCount:     log.TakenCount(slots),
			CurrentStock:   med.CurrentStock,
			StockStatus:    stock.Classify(med.CurrentStock, med.TotalStock, med.Frequency, med.DosePerIntake),
		}
		if next, ok := dose.NextDose(slots, log, now); ok {
			tm.NextDose = next.String()
		}

		for _, slot := range slots {
			dv := s.doseView(slot, log.IsTaken(slot), entries[med.ID], now)
			tm.Doses = append(tm.Doses, dv)
			out.Summary.add(dv)
		}
		out.Medications = append(out.Medications, tm)
	}
	return out, nil
}

func (s *Service) doseView(slot timeofday.TimeOfDay, taken bool, entries map[timeofday.TimeOfDay]ledger.Entry, now time.Time) DoseView {
	entry, hasEntry := entries[slot]

	var takenAt *timeofday.TimeOfDay
	if taken {
		// Without a ledger row the actual time is unknown; count it on time.
		at := slot
		if hasEntry && entry.ActualTime != nil {
			at = timeofday.FromTime(entry.ActualTime.In(now.Location()))
		}
		takenAt = &at
	}

	dv := DoseView{
		Evaluation: dose.Evaluate(slot, now, takenAt),
		Time:       slot.String(),
		Taken:      taken,
	}
	if hasEntry {
		dv.Skipped = !taken && entry.Status == ledger.StatusSkipped
		dv.WasLate = taken && entry.WasLate
	}
	if dv.Skipped {
		dv.CanTakeNow = false
	}
	return dv
}

func (t *TodaySummary) add(dv DoseView) {
	t.Total++
	if dv.Skipped {
		t.Skipped++
		return
	}
	switch dv.Status {
	case dose.StatusTaken:
		t.Taken++
	case dose.StatusLate:
		t.Taken++
		t.Late++
	case dose.StatusAvailable:
		t.Available++
	case dose.StatusPending:
		t.Pending++
	case dose.StatusMissed:
		t.Missed++
	}
}

// MarkDose sets a slot of today as taken or not taken. Stock moves only
// when the slot actually changes state. A stale day is rolled over first.
func (s *Service) MarkDose(ctx context.Context, userID, medicationID, slotText string, taken bool) (*MarkResult, error) {
	slot, err := timeofday.Parse(slotText)
	if err != nil {
		return nil, err
	}

	var (
		res    *MarkResult
		rolled *RolloverResult
	)
	err = s.withMedication(ctx, userID, medicationID, func(med *store.Medication, slots []timeofday.TimeOfDay) error {
		if !containsSlot(slots, slot) {
			return apperrors.ErrDoseNotFound.Withf("%s is not scheduled", slot)
		}

		now := s.now()
		today := timeofday.FormatDate(now)
		r, err := s.rollover(ctx, med, slots, today)
		if err != nil {
			return err
		}

		next, changed := dayLogOf(med).Mark(slot, taken)
		clamped := false
		if changed && med.CurrentStock != nil {
			if taken {
				var left int
				left, clamped = stock.Decrement(*med.CurrentStock, med.DosePerIntake)
				med.CurrentStock = intPtr(left)
			} else {
				med.CurrentStock = intPtr(stock.Increment(*med.CurrentStock, med.DosePerIntake))
			}
		}
		applyDayLog(med, next)

		if changed || r.RolledOver {
			if err := s.store.SaveDayState(ctx, med); err != nil {
				return err
			}
		}

		rolled = r
		res = &MarkResult{
			MedicationID: med.ID,
			Date:         today,
			Slot:         slot.String(),
			Taken:        taken,
			Changed:      changed,
			CurrentStock: med.CurrentStock,
			StockStatus:  stock.Classify(med.CurrentStock, med.TotalStock, med.Frequency, med.DosePerIntake),
			StockClamped: clamped,
		}

		// The ledger write stays under the medication lock so a mark and
		// an unmark of the same slot cannot interleave their rows.
		return s.syncLedger(ctx, med, slot, taken, changed, now, res)
	})

	if rolled != nil && rolled.RolledOver {
		s.observer.DayRolledOver(rolled.Entries)
	}
	if res == nil {
		return nil, err
	}
	if res.Changed {
		s.observer.DoseMarked(taken)
	}
	if res.StockClamped {
		s.observer.StockClamped()
		s.logger.Warn("Stock clamped at zero",
			zap.String("medication_id", medicationID),
			zap.String("slot", res.Slot),
		)
	}
	if err != nil {
		res.LedgerPending = true
		s.observer.LedgerWriteFailed()
		return res, err
	}
	return res, nil
}

// syncLedger brings the ledger row of a marked slot in line with the live
// state and fills in the evaluation.
func (s *Service) syncLedger(ctx context.Context, med *store.Medication, slot timeofday.TimeOfDay, taken, changed bool, now time.Time, res *MarkResult) error {
	current := timeofday.FromTime(now)
	if taken {
		res.Evaluation = dose.Evaluate(slot, now, &current)
	} else {
		res.Evaluation = dose.Evaluate(slot, now, nil)
	}

	// An unchanged slot may still lack its row after an earlier failed
	// write, or hold a stale one after a failed removal.
	var existing *ledger.Entry
	if !changed {
		var err error
		if existing, err = s.ledger.Lookup(ctx, med.ID, res.Date, slot); err != nil {
			return apperrors.ErrLedgerWrite.WithCause(err)
		}
	}

	if !taken {
		if !changed && (existing == nil || existing.Status != ledger.StatusTaken) {
			return nil
		}
		return s.ledger.Remove(ctx, med.ID, res.Date, slot)
	}

	if existing != nil && existing.Status == ledger.StatusTaken {
		if existing.ActualTime != nil {
			at := timeofday.FromTime(existing.ActualTime.In(now.Location()))
			res.Evaluation = dose.Evaluate(slot, now, &at)
		}
		res.Entry = existing
		return nil
	}

	entry, err := s.ledger.LogEvent(ctx, ledger.Event{
		UserID:         med.UserID,
		MedicationID:   med.ID,
		MedicationName: med.Name,
		Date:           res.Date,
		Slot:           slot,
		Status:         ledger.StatusTaken,
		ActualTime:     &now,
	})
	if err != nil {
		return err
	}
	res.Entry = entry
	return nil
}

// SkipDose records a deliberate skip of a slot today. A slot already
// marked taken must be un-marked first.
func (s *Service) SkipDose(ctx context.Context, userID, medicationID, slotText, notes string) (*ledger.Entry, error) {
	slot, err := timeofday.Parse(slotText)
	if err != nil {
		return nil, err
	}
	if err := security.ValidateText("notes", notes, security.MaxNotesLength); err != nil {
		return nil, err
	}

	var entry *ledger.Entry
	err = s.withMedication(ctx, userID, medicationID, func(med *store.Medication, slots []timeofday.TimeOfDay) error {
		if !containsSlot(slots, slot) {
			return apperrors.ErrDoseNotFound.Withf("%s is not scheduled", slot)
		}

		today := s.today()
		r, err := s.rollover(ctx, med, slots, today)
		if err != nil {
			return err
		}
		if r.RolledOver {
			if err := s.store.SaveDayState(ctx, med); err != nil {
				return err
			}
		}
		if dayLogOf(med).IsTaken(slot) {
			return apperrors.ErrStateConflict.Withf("%s is already marked taken", slot)
		}

		entry, err = s.ledger.LogEvent(ctx, ledger.Event{
			UserID:         med.UserID,
			MedicationID:   med.ID,
			MedicationName: med.Name,
			Date:           today,
			Slot:           slot,
			Status:         ledger.StatusSkipped,
			Notes:          notes,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.observer.DoseSkipped()
	return entry, nil
}

// LowStock lists tracked medications of all users whose supply is
// critical or exhausted.
func (s *Service) LowStock(ctx context.Context) ([]LowStockItem, error) {
	meds, err := s.store.ListTrackedMedications(ctx)
	if err != nil {
		return nil, err
	}

	items := []LowStockItem{}
	for i := range meds {
		med := &meds[i]
		status := stock.Classify(med.CurrentStock, med.TotalStock, med.Frequency, med.DosePerIntake)
		if !status.NeedsAttention() {
			continue
		}
		items = append(items, LowStockItem{
			UserID:        med.UserID,
			MedicationID:  med.ID,
			Name:          med.Name,
			CurrentStock:  *med.CurrentStock,
			DaysRemaining: stock.DaysRemaining(*med.CurrentStock, med.Frequency, med.DosePerIntake),
			Status:        status,
		})
	}

	s.observer.LowStock(len(items))
	return items, nil
}
