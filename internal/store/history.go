package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/gmsas95/medtrack/internal/errors"
)

// DoseQuery filters ledger reads. Zero values mean "no filter".
type DoseQuery struct {
	UserID       string
	MedicationID string
	Statuses     []string
	From         string // inclusive YYYY-MM-DD
	Until        string // exclusive YYYY-MM-DD
	Limit        int
	Newest       bool
}

var doseKey = []clause.Column{{Name: "medication_id"}, {Name: "date"}, {Name: "time_slot"}}

// UpsertDoseRecord writes rec, replacing the outcome of an existing row
// with the same (medication_id, date, time_slot).
func (s *Store) UpsertDoseRecord(ctx context.Context, rec *DoseRecord) error {
	rec.UpdatedAt = time.Now()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: doseKey,
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "actual_time", "was_late", "notes",
			"scheduled_at", "medication_name", "updated_at",
		}),
	}).Create(rec).Error
	return unavailable(err)
}

// InsertDoseRecordsIfAbsent writes each record only where its key is
// still free, and reports how many rows were inserted.
func (s *Store) InsertDoseRecordsIfAbsent(ctx context.Context, recs []DoseRecord) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   doseKey,
		DoNothing: true,
	}).Create(&recs)
	if res.Error != nil {
		return 0, unavailable(res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteDoseRecord removes one ledger row if present.
func (s *Store) DeleteDoseRecord(ctx context.Context, medicationID, date, timeSlot string) error {
	err := s.db.WithContext(ctx).
		Where("medication_id = ? AND date = ? AND time_slot = ?", medicationID, date, timeSlot).
		Delete(&DoseRecord{}).Error
	return unavailable(err)
}

// GetDoseRecord loads the row of one slot.
func (s *Store) GetDoseRecord(ctx context.Context, medicationID, date, timeSlot string) (*DoseRecord, error) {
	var rec DoseRecord
	err := s.db.WithContext(ctx).
		Where("medication_id = ? AND date = ? AND time_slot = ?", medicationID, date, timeSlot).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrDoseNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return &rec, nil
}

// FindDoseRecords returns ledger rows ordered by scheduled time.
func (s *Store) FindDoseRecords(ctx context.Context, q DoseQuery) ([]DoseRecord, error) {
	query := s.db.WithContext(ctx).Model(&DoseRecord{})
	if q.UserID != "" {
		query = query.Where("user_id = ?", q.UserID)
	}
	if q.MedicationID != "" {
		query = query.Where("medication_id = ?", q.MedicationID)
	}
	if len(q.Statuses) > 0 {
		query = query.Where("status IN ?", q.Statuses)
	}
	if q.From != "" {
		query = query.Where("date >= ?", q.From)
	}
	if q.Until != "" {
		query = query.Where("date < ?", q.Until)
	}

	if q.Newest {
		query = query.Order("date DESC, time_slot DESC")
	} else {
		query = query.Order("date ASC, time_slot ASC")
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var recs []DoseRecord
	if err := query.Find(&recs).Error; err != nil {
		return nil, unavailable(err)
	}
	return recs, nil
}

// CountDoseRecords counts ledger rows for a medication.
func (s *Store) CountDoseRecords(ctx context.Context, medicationID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&DoseRecord{}).Where("medication_id = ?", medicationID).Count(&n).Error
	return n, unavailable(err)
}
