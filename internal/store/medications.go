package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/gmsas95/medtrack/internal/errors"
)

// CreateMedication inserts a medication together with its schedule.
func (s *Store) CreateMedication(ctx context.Context, med *Medication, sched *Schedule) error {
	return s.Transaction(ctx, func(tx *Store) error {
		if err := tx.db.Create(med).Error; err != nil {
			return unavailable(err)
		}
		if sched == nil {
			return nil
		}
		sched.MedicationID = med.ID
		sched.UserID = med.UserID
		return tx.SaveSchedule(ctx, sched)
	})
}

// GetMedication loads a medication owned by userID. Missing and foreign
// medications are indistinguishable to the caller.
func (s *Store) GetMedication(ctx context.Context, userID, id string) (*Medication, error) {
	var med Medication
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&med).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrMedicationNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return &med, nil
}

// ListMedications returns a user's medications, newest first.
func (s *Store) ListMedications(ctx context.Context, userID string, activeOnly bool) ([]Medication, error) {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var meds []Medication
	if err := query.Order("created_at DESC").Find(&meds).Error; err != nil {
		return nil, unavailable(err)
	}
	return meds, nil
}

// UpdateMedication saves descriptive and stock fields under the same
// version guard as SaveDayState. The live day state is left untouched.
func (s *Store) UpdateMedication(ctx context.Context, med *Medication) error {
	res := s.db.WithContext(ctx).Model(&Medication{}).
		Where("id = ? AND user_id = ? AND version = ?", med.ID, med.UserID, med.Version).
		UpdateColumns(map[string]any{
			"name":            med.Name,
			"frequency":       med.Frequency,
			"duration":        med.Duration,
			"timing":          med.Timing,
			"description":     med.Description,
			"total_stock":     med.TotalStock,
			"current_stock":   med.CurrentStock,
			"dose_per_intake": med.DosePerIntake,
			"start_date":      med.StartDate,
			"end_date":        med.EndDate,
			"is_active":       med.IsActive,
			"version":         gorm.Expr("version + 1"),
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return unavailable(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrVersionConflict
	}
	med.Version++
	return nil
}

// SaveDayState writes the live taken map, its date stamp and the stock
// level in one conditional update. It fails with ErrVersionConflict when
// another writer got there first.
func (s *Store) SaveDayState(ctx context.Context, med *Medication) error {
	encoded, err := encodeTaken(med.DosesTakenToday)
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Model(&Medication{}).
		Where("id = ? AND version = ?", med.ID, med.Version).
		UpdateColumns(map[string]any{
			"doses_taken_today": encoded,
			"doses_taken_date":  med.DosesTakenDate,
			"current_stock":     med.CurrentStock,
			"version":           gorm.Expr("version + 1"),
			"updated_at":        time.Now(),
		})
	if res.Error != nil {
		return unavailable(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrVersionConflict
	}
	med.Version++
	return nil
}

// UpdateStock sets stock counters outside the dose path.
func (s *Store) UpdateStock(ctx context.Context, med *Medication) error {
	res := s.db.WithContext(ctx).Model(&Medication{}).
		Where("id = ? AND version = ?", med.ID, med.Version).
		UpdateColumns(map[string]any{
			"current_stock": med.CurrentStock,
			"total_stock":   med.TotalStock,
			"version":       gorm.Expr("version + 1"),
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return unavailable(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrVersionConflict
	}
	med.Version++
	return nil
}

// DeleteMedication removes a medication and its schedule.
func (s *Store) DeleteMedication(ctx context.Context, userID, id string) error {
	return s.Transaction(ctx, func(tx *Store) error {
		res := tx.db.Where("id = ? AND user_id = ?", id, userID).Delete(&Medication{})
		if res.Error != nil {
			return unavailable(res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrMedicationNotFound
		}
		return unavailable(tx.db.Where("medication_id = ?", id).Delete(&Schedule{}).Error)
	})
}

// ListStaleMedications finds active medications whose live state belongs to
// a day other than today.
func (s *Store) ListStaleMedications(ctx context.Context, today string, limit int) ([]Medication, error) {
	query := s.db.WithContext(ctx).
		Where("is_active = ? AND doses_taken_date <> '' AND doses_taken_date IS NOT NULL AND doses_taken_date <> ?", true, today).
		Order("doses_taken_date ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var meds []Medication
	if err := query.Find(&meds).Error; err != nil {
		return nil, unavailable(err)
	}
	return meds, nil
}

// ListTrackedMedications returns active medications with stock tracking on.
func (s *Store) ListTrackedMedications(ctx context.Context) ([]Medication, error) {
	var meds []Medication
	err := s.db.WithContext(ctx).
		Where("is_active = ? AND current_stock IS NOT NULL", true).
		Order("user_id, name").
		Find(&meds).Error
	if err != nil {
		return nil, unavailable(err)
	}
	return meds, nil
}

// GetSchedule loads the schedule of a medication.
func (s *Store) GetSchedule(ctx context.Context, medicationID string) (*Schedule, error) {
	var sched Schedule
	err := s.db.WithContext(ctx).Where("medication_id = ?", medicationID).First(&sched).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrScheduleNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return &sched, nil
}

// GetSchedules loads schedules for several medications, keyed by id.
func (s *Store) GetSchedules(ctx context.Context, medicationIDs []string) (map[string]*Schedule, error) {
	out := make(map[string]*Schedule, len(medicationIDs))
	if len(medicationIDs) == 0 {
		return out, nil
	}

	var scheds []Schedule
	if err := s.db.WithContext(ctx).Where("medication_id IN ?", medicationIDs).Find(&scheds).Error; err != nil {
		return nil, unavailable(err)
	}
	for i := range scheds {
		out[scheds[i].MedicationID] = &scheds[i]
	}
	return out, nil
}

// SaveSchedule upserts on medication_id.
func (s *Store) SaveSchedule(ctx context.Context, sched *Schedule) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "medication_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"times", "is_custom", "updated_at"}),
	}).Create(sched).Error
	return unavailable(err)
}
