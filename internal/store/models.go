package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Medication is a prescription owned by one user, with its stock counters
// and the live taken map for the current day.
type Medication struct {
	ID          string `gorm:"primaryKey" json:"id"`
	UserID      string `gorm:"index;not null" json:"user_id"`
	Name        string `gorm:"not null" json:"name"`
	Frequency   int    `json:"frequency"`
	Duration    string `json:"duration,omitempty"`
	Timing      string `json:"timing,omitempty"`
	Description string `json:"description,omitempty"`

	TotalStock    *int `json:"total_stock,omitempty"`
	CurrentStock  *int `json:"current_stock,omitempty"`
	DosePerIntake int  `json:"dose_per_intake"`

	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	IsActive  bool   `gorm:"index" json:"is_active"`

	DosesTakenToday map[string]bool `gorm:"-" json:"doses_taken_today"`
	DosesTakenJSON  string          `gorm:"column:doses_taken_today;type:text" json:"-"`
	DosesTakenDate  string          `gorm:"index" json:"doses_taken_date,omitempty"`

	// Version guards read-modify-write of the live day state.
	Version int `gorm:"not null;default:0" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m *Medication) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = generateID("med")
	}
	return nil
}

func (m *Medication) BeforeSave(tx *gorm.DB) error {
	encoded, err := encodeTaken(m.DosesTakenToday)
	if err != nil {
		return err
	}
	m.DosesTakenJSON = encoded
	return nil
}

func encodeTaken(taken map[string]bool) (string, error) {
	if taken == nil {
		return "{}", nil
	}
	data, err := json.Marshal(taken)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (m *Medication) AfterFind(tx *gorm.DB) error {
	m.DosesTakenToday = map[string]bool{}
	if m.DosesTakenJSON == "" {
		return nil
	}
	return json.Unmarshal([]byte(m.DosesTakenJSON), &m.DosesTakenToday)
}

// Schedule holds the daily slots of one medication.
type Schedule struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	MedicationID string    `gorm:"uniqueIndex;not null" json:"medication_id"`
	UserID       string    `gorm:"index" json:"user_id"`
	Times        []string  `gorm:"-" json:"times"`
	TimesJSON    string    `gorm:"column:times;type:text" json:"-"`
	IsCustom     bool      `json:"is_custom"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (s *Schedule) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = generateID("sch")
	}
	return nil
}

func (s *Schedule) BeforeSave(tx *gorm.DB) error {
	times := s.Times
	if times == nil {
		times = []string{}
	}
	data, err := json.Marshal(times)
	if err != nil {
		return err
	}
	s.TimesJSON = string(data)
	return nil
}

func (s *Schedule) AfterFind(tx *gorm.DB) error {
	s.Times = []string{}
	if s.TimesJSON == "" {
		return nil
	}
	return json.Unmarshal([]byte(s.TimesJSON), &s.Times)
}

// DoseRecord is one permanent ledger row.
type DoseRecord struct {
	ID             string     `gorm:"primaryKey" json:"id"`
	UserID         string     `gorm:"index:idx_dose_user_date;not null" json:"user_id"`
	MedicationID   string     `gorm:"uniqueIndex:idx_dose_key;not null" json:"medication_id"`
	MedicationName string     `json:"medication_name"`
	Date           string     `gorm:"uniqueIndex:idx_dose_key;index:idx_dose_user_date;not null" json:"date"`
	TimeSlot       string     `gorm:"uniqueIndex:idx_dose_key;not null" json:"time_slot"`
	Status         string     `gorm:"index;not null" json:"status"`
	ScheduledAt    time.Time  `json:"scheduled_at"`
	ActualTime     *time.Time `json:"actual_time,omitempty"`
	WasLate        bool       `json:"was_late"`
	Notes          string     `json:"notes,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (DoseRecord) TableName() string {
	return "dose_history"
}

func (r *DoseRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = generateID("dose")
	}
	return nil
}

func generateID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}
