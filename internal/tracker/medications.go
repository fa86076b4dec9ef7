package tracker

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gmsas95/medtrack/internal/course"
	"github.com/gmsas95/medtrack/internal/dose"
	apperrors "github.com/gmsas95/medtrack/internal/errors"
	"github.com/gmsas95/medtrack/internal/schedule"
	"github.com/gmsas95/medtrack/internal/security"
	"github.com/gmsas95/medtrack/internal/stock"
	"github.com/gmsas95/medtrack/internal/store"
	"github.com/gmsas95/medtrack/internal/timeofday"
)

// CreateInput describes a new prescription. CurrentStock defaults to
// TotalStock; CustomTimes replaces the generated schedule when set.
type CreateInput struct {
	Name          string   `json:"name"`
	Frequency     int      `json:"frequency"`
	Duration      string   `json:"duration"`
	Timing        string   `json:"timing"`
	Description   string   `json:"description"`
	TotalStock    *int     `json:"total_stock"`
	CurrentStock  *int     `json:"current_stock"`
	DosePerIntake int      `json:"dose_per_intake"`
	StartDate     string   `json:"start_date"`
	CustomTimes   []string `json:"custom_times"`
}

// UpdateInput carries the fields to change; nil leaves a field alone.
type UpdateInput struct {
	Name          *string `json:"name"`
	Frequency     *int    `json:"frequency"`
	Duration      *string `json:"duration"`
	Timing        *string `json:"timing"`
	Description   *string `json:"description"`
	TotalStock    *int    `json:"total_stock"`
	DosePerIntake *int    `json:"dose_per_intake"`
	StartDate     *string `json:"start_date"`
	IsActive      *bool   `json:"is_active"`
}

// MedicationView is a medication enriched with everything derived from it.
type MedicationView struct {
	*store.Medication
	Schedule         []string         `json:"schedule"`
	IsCustomSchedule bool             `json:"is_custom_schedule"`
	DaysRemaining    *int             `json:"days_remaining,omitempty"`
	StockPercentage  *float64         `json:"stock_percentage,omitempty"`
	StockStatus      stock.Status     `json:"stock_status"`
	Progress         *course.Progress `json:"progress,omitempty"`
	NextDose         string           `json:"next_dose,omitempty"`
	TakenToday       int              `json:"taken_today"`
}

type ListSummary struct {
	Total          int                  `json:"total"`
	Active         int                  `json:"active"`
	NeedsAttention int                  `json:"needs_attention"`
	ByStockStatus  map[stock.Status]int `json:"by_stock_status"`
}

type MedicationList struct {
	Medications []MedicationView `json:"medications"`
	Summary     ListSummary      `json:"summary"`
}

// ScheduleView is the schedule of one medication.
type ScheduleView struct {
	MedicationID string   `json:"medication_id"`
	Times        []string `json:"times"`
	IsCustom     bool     `json:"is_custom"`
}

// DeleteResult tells whether the medication was archived or removed.
type DeleteResult struct {
	MedicationID string `json:"medication_id"`
	Archived     bool   `json:"archived"`
}

// Create validates and stores a medication with its schedule.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*MedicationView, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.ErrInvalidInput.Withf("name is required")
	}
	if err := validateText(name, in.Description); err != nil {
		return nil, err
	}
	if in.Frequency <= 0 {
		return nil, apperrors.ErrInvalidFrequency
	}
	if err := validateStock(in.TotalStock, in.CurrentStock); err != nil {
		return nil, err
	}

	dpi := in.DosePerIntake
	if dpi == 0 {
		dpi = 1
	}
	if dpi < 0 {
		return nil, apperrors.ErrInvalidInput.Withf("dose_per_intake must be at least 1")
	}

	start := in.StartDate
	if start == "" {
		start = s.today()
	} else if _, err := timeofday.ParseDate(start, time.UTC); err != nil {
		return nil, err
	}

	slots := schedule.Generate(in.Frequency, in.Timing)
	custom := len(in.CustomTimes) > 0
	if custom {
		var err error
		if slots, err = schedule.Normalize(in.CustomTimes); err != nil {
			return nil, err
		}
	}

	current := in.CurrentStock
	if current == nil && in.TotalStock != nil {
		current = intPtr(*in.TotalStock)
	}

	med := &store.Medication{
		UserID:          userID,
		Name:            name,
		Frequency:       in.Frequency,
		Duration:        strings.TrimSpace(in.Duration),
		Timing:          strings.TrimSpace(in.Timing),
		Description:     in.Description,
		TotalStock:      in.TotalStock,
		CurrentStock:    current,
		DosePerIntake:   dpi,
		StartDate:       start,
		EndDate:         course.EndDate(start, in.Duration),
		IsActive:        true,
		DosesTakenToday: map[string]bool{},
		DosesTakenDate:  s.today(),
	}
	sched := &store.Schedule{Times: timeofday.Strings(slots), IsCustom: custom}

	if err := s.store.CreateMedication(ctx, med, sched); err != nil {
		return nil, err
	}

	s.logger.Info("Medication created",
		zap.String("user_id", userID),
		zap.String("medication_id", med.ID),
		zap.String("name", med.Name),
		zap.Strings("schedule", sched.Times),
	)
	return s.view(med, slots, custom), nil
}

// Get returns one medication with its derived fields.
func (s *Service) Get(ctx context.Context, userID, medicationID string) (*MedicationView, error) {
	med, err := s.store.GetMedication(ctx, userID, medicationID)
	if err != nil {
		return nil, err
	}
	slots, custom, err := s.slotsOf(ctx, med)
	if err != nil {
		return nil, err
	}
	return s.view(med, slots, custom), nil
}

// List returns a user's medications and a stock summary.
func (s *Service) List(ctx context.Context, userID string, activeOnly bool) (*MedicationList, error) {
	meds, err := s.store.ListMedications(ctx, userID, activeOnly)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(meds))
	for i := range meds {
		ids[i] = meds[i].ID
	}
	scheds, err := s.store.GetSchedules(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := &MedicationList{
		Medications: make([]MedicationView, 0, len(meds)),
		Summary:     ListSummary{ByStockStatus: map[stock.Status]int{}},
	}
	for i := range meds {
		med := &meds[i]
		slots := schedule.Generate(med.Frequency, med.Timing)
		custom := false
		if sched, ok := scheds[med.ID]; ok {
			if parsed, err := timeofday.ParseAll(sched.Times); err == nil {
				slots, custom = parsed, sched.IsCustom
			}
		}

		v := s.view(med, slots, custom)
		out.Medications = append(out.Medications, *v)

		out.Summary.Total++
		if med.IsActive {
			out.Summary.Active++
		}
		out.Summary.ByStockStatus[v.StockStatus]++
		if v.StockStatus.NeedsAttention() {
			out.Summary.NeedsAttention++
		}
	}
	return out, nil
}

// Update applies in. A frequency or timing change regenerates a generated
// schedule; a custom schedule is kept. Duration or start changes recompute
// the end date.
func (s *Service) Update(ctx context.Context, userID, medicationID string, in UpdateInput) (*MedicationView, error) {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return nil, apperrors.ErrInvalidInput.Withf("name is required")
	}
	if in.Name != nil || in.Description != nil {
		var name, description string
		if in.Name != nil {
			name = *in.Name
		}
		if in.Description != nil {
			description = *in.Description
		}
		if err := validateText(name, description); err != nil {
			return nil, err
		}
	}
	if in.Frequency != nil && *in.Frequency <= 0 {
		return nil, apperrors.ErrInvalidFrequency
	}
	if in.DosePerIntake != nil && *in.DosePerIntake < 1 {
		return nil, apperrors.ErrInvalidInput.Withf("dose_per_intake must be at least 1")
	}
	if in.TotalStock != nil && *in.TotalStock < 0 {
		return nil, apperrors.ErrInvalidInput.Withf("total_stock must not be negative")
	}
	if in.StartDate != nil {
		if _, err := timeofday.ParseDate(*in.StartDate, time.UTC); err != nil {
			return nil, err
		}
	}

	var result *store.Medication
	err := s.withMedication(ctx, userID, medicationID, func(med *store.Medication, _ []timeofday.TimeOfDay) error {
		regenerate := false
		if in.Name != nil {
			med.Name = strings.TrimSpace(*in.Name)
		}
		if in.Frequency != nil && *in.Frequency != med.Frequency {
			med.Frequency = *in.Frequency
			regenerate = true
		}
		if in.Timing != nil && strings.TrimSpace(*in.Timing) != med.Timing {
			med.Timing = strings.TrimSpace(*in.Timing)
			regenerate = true
		}
		if in.Description != nil {
			med.Description = *in.Description
		}
		if in.TotalStock != nil {
			med.TotalStock = intPtr(*in.TotalStock)
		}
		if in.DosePerIntake != nil {
			med.DosePerIntake = *in.DosePerIntake
		}
		if in.IsActive != nil {
			med.IsActive = *in.IsActive
		}
		if in.Duration != nil || in.StartDate != nil {
			if in.Duration != nil {
				med.Duration = strings.TrimSpace(*in.Duration)
			}
			if in.StartDate != nil {
				med.StartDate = *in.StartDate
			}
			med.EndDate = course.EndDate(med.StartDate, med.Duration)
		}

		if err := s.store.UpdateMedication(ctx, med); err != nil {
			return err
		}
		result = med

		if !regenerate {
			return nil
		}
		sched, err := s.store.GetSchedule(ctx, med.ID)
		if err != nil && !apperrors.IsNotFound(err) {
			return err
		}
		if sched != nil && sched.IsCustom {
			return nil
		}
		return s.store.SaveSchedule(ctx, &store.Schedule{
			MedicationID: med.ID,
			UserID:       med.UserID,
			Times:        timeofday.Strings(schedule.Generate(med.Frequency, med.Timing)),
		})
	})
	if err != nil {
		return nil, err
	}

	slots, custom, err := s.slotsOf(ctx, result)
	if err != nil {
		return nil, err
	}
	return s.view(result, slots, custom), nil
}

// Delete archives a medication that has ledger history and removes one
// that has none.
func (s *Service) Delete(ctx context.Context, userID, medicationID string) (*DeleteResult, error) {
	res := &DeleteResult{MedicationID: medicationID}
	err := s.withMedication(ctx, userID, medicationID, func(med *store.Medication, _ []timeofday.TimeOfDay) error {
		has, err := s.ledger.HasHistory(ctx, med.ID)
		if err != nil {
			return err
		}
		if !has {
			return s.store.DeleteMedication(ctx, userID, med.ID)
		}
		med.IsActive = false
		res.Archived = true
		return s.store.UpdateMedication(ctx, med)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Medication removed",
		zap.String("medication_id", medicationID),
		zap.Bool("archived", res.Archived),
	)
	return res, nil
}

// Refill adds amount to the supply, raising the total when exceeded.
func (s *Service) Refill(ctx context.Context, userID, medicationID string, amount int) (*MedicationView, error) {
	if amount <= 0 {
		return nil, apperrors.ErrInvalidInput.Withf("refill amount must be positive")
	}
	return s.updateStock(ctx, userID, medicationID, func(med *store.Medication) {
		current, total := stock.Refill(med.CurrentStock, med.TotalStock, amount)
		med.CurrentStock = intPtr(current)
		med.TotalStock = intPtr(total)
	})
}

// SetStock overwrites the current supply and optionally the total.
func (s *Service) SetStock(ctx context.Context, userID, medicationID string, current int, total *int) (*MedicationView, error) {
	if err := validateStock(total, &current); err != nil {
		return nil, err
	}
	return s.updateStock(ctx, userID, medicationID, func(med *store.Medication) {
		med.CurrentStock = intPtr(current)
		if total != nil {
			med.TotalStock = intPtr(*total)
		}
		if med.TotalStock != nil && current > *med.TotalStock {
			med.TotalStock = intPtr(current)
		}
	})
}

func (s *Service) updateStock(ctx context.Context, userID, medicationID string, apply func(med *store.Medication)) (*MedicationView, error) {
	var (
		result *store.Medication
		slots  []timeofday.TimeOfDay
	)
	err := s.withMedication(ctx, userID, medicationID, func(med *store.Medication, sl []timeofday.TimeOfDay) error {
		apply(med)
		if err := s.store.UpdateStock(ctx, med); err != nil {
			return err
		}
		result, slots = med, sl
		return nil
	})
	if err != nil {
		return nil, err
	}
	_, custom, err := s.slotsOf(ctx, result)
	if err != nil {
		return nil, err
	}
	return s.view(result, slots, custom), nil
}

// GetSchedule returns the slots of a medication.
func (s *Service) GetSchedule(ctx context.Context, userID, medicationID string) (*ScheduleView, error) {
	med, err := s.store.GetMedication(ctx, userID, medicationID)
	if err != nil {
		return nil, err
	}
	slots, custom, err := s.slotsOf(ctx, med)
	if err != nil {
		return nil, err
	}
	return &ScheduleView{MedicationID: med.ID, Times: timeofday.Strings(slots), IsCustom: custom}, nil
}

// SetCustomSchedule pins explicit slots.
func (s *Service) SetCustomSchedule(ctx context.Context, userID, medicationID string, times []string) (*ScheduleView, error) {
	slots, err := schedule.Normalize(times)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return nil, apperrors.ErrInvalidInput.Withf("at least one time is required")
	}
	return s.saveSchedule(ctx, userID, medicationID, slots, true)
}

// ResetSchedule drops a custom schedule in favour of the generated one.
func (s *Service) ResetSchedule(ctx context.Context, userID, medicationID string) (*ScheduleView, error) {
	med, err := s.store.GetMedication(ctx, userID, medicationID)
	if err != nil {
		return nil, err
	}
	return s.saveSchedule(ctx, userID, medicationID, schedule.Generate(med.Frequency, med.Timing), false)
}

func (s *Service) saveSchedule(ctx context.Context, userID, medicationID string, slots []timeofday.TimeOfDay, custom bool) (*ScheduleView, error) {
	err := s.withMedication(ctx, userID, medicationID, func(med *store.Medication, _ []timeofday.TimeOfDay) error {
		return s.store.SaveSchedule(ctx, &store.Schedule{
			MedicationID: med.ID,
			UserID:       med.UserID,
			Times:        timeofday.Strings(slots),
			IsCustom:     custom,
		})
	})
	if err != nil {
		return nil, err
	}
	return &ScheduleView{MedicationID: medicationID, Times: timeofday.Strings(slots), IsCustom: custom}, nil
}

func (s *Service) view(med *store.Medication, slots []timeofday.TimeOfDay, custom bool) *MedicationView {
	now := s.now()
	log := dayLogOf(med)

	v := &MedicationView{
		Medication:       med,
		Schedule:         timeofday.Strings(slots),
		IsCustomSchedule: custom,
		StockPercentage:  stock.Percentage(med.CurrentStock, med.TotalStock),
		StockStatus:      stock.Classify(med.CurrentStock, med.TotalStock, med.Frequency, med.DosePerIntake),
		Progress:         course.ProgressAt(med.StartDate, med.EndDate, now),
	}
	if med.CurrentStock != nil {
		v.DaysRemaining = intPtr(stock.DaysRemaining(*med.CurrentStock, med.Frequency, med.DosePerIntake))
	}
	if !log.IsStale(timeofday.FormatDate(now)) {
		v.TakenToday = log.TakenCount(slots)
	}
	if next, ok := dose.NextDose(slots, log, now); ok {
		v.NextDose = next.String()
	}
	return v
}

func validateStock(total, current *int) error {
	if total != nil && *total < 0 {
		return apperrors.ErrInvalidInput.Withf("total_stock must not be negative")
	}
	if current != nil && *current < 0 {
		return apperrors.ErrInvalidInput.Withf("current_stock must not be negative")
	}
	return nil
}

func validateText(name, description string) error {
	if err := security.ValidateText("name", name, security.MaxNameLength); err != nil {
		return err
	}
	return security.ValidateText("description", description, security.MaxDescriptionLength)
}
