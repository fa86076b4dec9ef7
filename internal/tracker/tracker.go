// Package tracker is the medication service: it owns the live day state of
// each medication, keeps stock in step with marked doses and feeds the
// ledger. All writes to one medication are serialized through a keyed
// mutex and a version-guarded update.
package tracker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/gmsas95/medtrack/internal/dose"
	apperrors "github.com/gmsas95/medtrack/internal/errors"
	"github.com/gmsas95/medtrack/internal/ledger"
	"github.com/gmsas95/medtrack/internal/schedule"
	"github.com/gmsas95/medtrack/internal/store"
	"github.com/gmsas95/medtrack/internal/timeofday"
)

// maxVersionRetries bounds the reload-and-retry loop on version conflicts.
const maxVersionRetries = 3

// Observer receives service events, normally the metrics collector.
type Observer interface {
	DoseMarked(taken bool)
	DoseSkipped()
	DayRolledOver(entries int64)
	LedgerWriteFailed()
	StockClamped()
	LowStock(count int)
}

type nopObserver struct{}

func (nopObserver) DoseMarked(bool)     {}
func (nopObserver) DoseSkipped()        {}
func (nopObserver) DayRolledOver(int64) {}
func (nopObserver) LedgerWriteFailed()  {}
func (nopObserver) StockClamped()       {}
func (nopObserver) LowStock(int)        {}

type Service struct {
	store    *store.Store
	ledger   *ledger.Ledger
	clock    timeofday.Clock
	logger   *zap.Logger
	observer Observer
	locks    *keyedMutex
}

type Option func(*Service)

// WithObserver attaches an event observer.
func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

// New creates a new tracker service
func New(st *store.Store, l *ledger.Ledger, clock timeofday.Clock, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = timeofday.SystemClock(time.Local)
	}
	s := &Service{
		store:    st,
		ledger:   l,
		clock:    clock,
		logger:   logger,
		observer: nopObserver{},
		locks:    newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ledger exposes the underlying dose ledger.
func (s *Service) Ledger() *ledger.Ledger {
	return s.ledger
}

func (s *Service) now() time.Time {
	return s.clock.Now()
}

func (s *Service) today() string {
	return timeofday.FormatDate(s.clock.Now())
}

// slotsOf returns the schedule of a medication. A missing schedule row is
// treated as the generated default.
func (s *Service) slotsOf(ctx context.Context, med *store.Medication) ([]timeofday.TimeOfDay, bool, error) {
	sched, err := s.store.GetSchedule(ctx, med.ID)
	if apperrors.IsNotFound(err) {
		return schedule.Generate(med.Frequency, med.Timing), false, nil
	}
	if err != nil {
		return nil, false, err
	}
	slots, err := timeofday.ParseAll(sched.Times)
	if err != nil {
		s.logger.Warn("Stored schedule is malformed, using generated slots",
			zap.String("medication_id", med.ID),
			zap.Strings("times", sched.Times),
		)
		return schedule.Generate(med.Frequency, med.Timing), false, nil
	}
	return slots, sched.IsCustom, nil
}

// withMedication runs fn on a freshly loaded medication while holding its
// lock. fn is retried on a version conflict with a reloaded copy, so it
// must only derive its writes from the medication it is given.
func (s *Service) withMedication(ctx context.Context, userID, medicationID string, fn func(med *store.Medication, slots []timeofday.TimeOfDay) error) error {
	unlock := s.locks.Lock(medicationID)
	defer unlock()

	var err error
	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		var med *store.Medication
		med, err = s.store.GetMedication(ctx, userID, medicationID)
		if err != nil {
			return err
		}
		var slots []timeofday.TimeOfDay
		slots, _, err = s.slotsOf(ctx, med)
		if err != nil {
			return err
		}

		err = fn(med, slots)
		if !isVersionConflict(err) {
			return err
		}
		s.logger.Debug("Version conflict, retrying",
			zap.String("medication_id", medicationID),
			zap.Int("attempt", attempt+1),
		)
	}
	return err
}

func isVersionConflict(err error) bool {
	return err != nil && apperrors.GetCode(err) == apperrors.ErrVersionConflict.Code
}

func dayLogOf(med *store.Medication) dose.DayLog {
	taken := med.DosesTakenToday
	if taken == nil {
		taken = map[string]bool{}
	}
	return dose.DayLog{Date: med.DosesTakenDate, Taken: taken}
}

func applyDayLog(med *store.Medication, log dose.DayLog) {
	med.DosesTakenDate = log.Date
	med.DosesTakenToday = log.Taken
}

func containsSlot(slots []timeofday.TimeOfDay, slot timeofday.TimeOfDay) bool {
	for _, s := range slots {
		if s == slot {
			return true
		}
	}
	return false
}

func intPtr(v int) *int { return &v }
