// Package insights turns a user's adherence numbers into three short tips.
// Tips come from the summarizer when one is configured and reachable, and
// from a fixed list otherwise. Generated tips are cached per user.
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/gmsas95/medtrack/internal/analytics"
	"github.com/gmsas95/medtrack/internal/store"
	"github.com/gmsas95/medtrack/internal/timeofday"
)

const (
	cachePrefix   = "insights:"
	refreshPrefix = "insights-refresh:"
	dataPeriod    = analytics.PeriodWeek
)

// Summarizer phrases the tips.
type Summarizer interface {
	SimpleChat(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// Cache is a TTL key-value store.
type Cache interface {
	SetCache(key string, value []byte, ttl time.Duration) error
	GetCache(key string) ([]byte, time.Time, error)
}

type Insights struct {
	Insights      []string  `json:"insights"`
	GeneratedAt   time.Time `json:"generated_at"`
	DataPeriod    string    `json:"data_period"`
	FromCache     bool      `json:"from_cache"`
	CacheAgeHours float64   `json:"cache_age_hours,omitempty"`
	Fallback      bool      `json:"fallback,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// summarizerUnavailable is all a client learns about a summarizer failure;
// the cause goes to the log.
const summarizerUnavailable = "personalized tips are unavailable right now"

type RefreshStatus struct {
	CanRefresh        bool       `json:"can_refresh"`
	NextRefreshAt     *time.Time `json:"next_refresh_at"`
	HoursUntilRefresh *float64   `json:"hours_until_refresh"`
}

type cached struct {
	Insights    []string  `json:"insights"`
	GeneratedAt time.Time `json:"generated_at"`
	DataPeriod  string    `json:"data_period"`
}

type Service struct {
	analyzer   *analytics.Analyzer
	summarizer Summarizer
	cache      Cache
	ttl        time.Duration
	clock      timeofday.Clock
	logger     *zap.Logger
}

// New creates a new insights service. A nil summarizer always yields the
// fallback tips.
func New(analyzer *analytics.Analyzer, summarizer Summarizer, cache Cache, ttl time.Duration, clock timeofday.Clock, logger *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		analyzer:   analyzer,
		summarizer: summarizer,
		cache:      cache,
		ttl:        ttl,
		clock:      clock,
		logger:     logger,
	}
}

// Generate returns cached tips when present. forceRefresh skips the cache,
// but only once per TTL; a refused refresh serves the cache as usual.
func (s *Service) Generate(ctx context.Context, userID string, forceRefresh bool) (*Insights, error) {
	if forceRefresh {
		status := s.RefreshStatus(userID)
		if !status.CanRefresh {
			s.logger.Debug("Refresh refused", zap.String("user_id", userID))
			forceRefresh = false
		}
	}

	if !forceRefresh {
		if hit := s.fromCache(userID); hit != nil {
			return hit, nil
		}
	}

	summary, err := s.collect(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if s.summarizer == nil {
		return &Insights{
			Insights:    FallbackTips(),
			GeneratedAt: now,
			DataPeriod:  string(dataPeriod),
			Fallback:    true,
		}, nil
	}

	reply, err := s.summarizer.SimpleChat(ctx, systemPrompt, userPrompt(summary))
	if err != nil {
		s.logger.Warn("Summarizer unavailable, serving fallback tips",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return &Insights{
			Insights:    FallbackTips(),
			GeneratedAt: now,
			DataPeriod:  string(dataPeriod),
			Fallback:    true,
			Error:       summarizerUnavailable,
		}, nil
	}

	out := &Insights{
		Insights:    ParseTips(reply),
		GeneratedAt: now,
		DataPeriod:  string(dataPeriod),
	}
	s.save(userID, out, forceRefresh)
	return out, nil
}

// RefreshStatus tells whether a forced refresh is currently allowed.
func (s *Service) RefreshStatus(userID string) RefreshStatus {
	_, expires, err := s.cache.GetCache(refreshPrefix + userID)
	if err != nil {
		if !errors.Is(err, store.ErrCacheMiss) {
			s.logger.Warn("Refresh gate lookup failed", zap.Error(err))
		}
		return RefreshStatus{CanRefresh: true}
	}

	left := expires.Sub(s.clock.Now())
	if expires.IsZero() || left <= 0 {
		return RefreshStatus{CanRefresh: true}
	}
	hours := math.Round(left.Hours()*10) / 10
	return RefreshStatus{CanRefresh: false, NextRefreshAt: &expires, HoursUntilRefresh: &hours}
}

func (s *Service) collect(ctx context.Context, userID string) (summaryInput, error) {
	var in summaryInput
	var err error
	if in.adherence, err = s.analyzer.AdherenceStats(ctx, userID, dataPeriod, ""); err != nil {
		return in, err
	}
	if in.timeOfDay, err = s.analyzer.TimeOfDay(ctx, userID, dataPeriod); err != nil {
		return in, err
	}
	if in.streak, err = s.analyzer.Streak(ctx, userID); err != nil {
		return in, err
	}
	if in.comparison, err = s.analyzer.Comparison(ctx, userID); err != nil {
		return in, err
	}
	return in, nil
}

func (s *Service) fromCache(userID string) *Insights {
	raw, _, err := s.cache.GetCache(cachePrefix + userID)
	if err != nil {
		if !errors.Is(err, store.ErrCacheMiss) {
			s.logger.Warn("Insights cache read failed", zap.Error(err))
		}
		return nil
	}

	var c cached
	if err := json.Unmarshal(raw, &c); err != nil {
		s.logger.Warn("Dropping malformed insights cache entry", zap.String("user_id", userID))
		return nil
	}

	age := s.clock.Now().Sub(c.GeneratedAt)
	if age < 0 {
		age = 0
	}
	return &Insights{
		Insights:      c.Insights,
		GeneratedAt:   c.GeneratedAt,
		DataPeriod:    c.DataPeriod,
		FromCache:     true,
		CacheAgeHours: math.Round(age.Hours()*10) / 10,
	}
}

func (s *Service) save(userID string, in *Insights, refreshed bool) {
	data, err := json.Marshal(cached{Insights: in.Insights, GeneratedAt: in.GeneratedAt, DataPeriod: in.DataPeriod})
	if err != nil {
		return
	}
	if err := s.cache.SetCache(cachePrefix+userID, data, s.ttl); err != nil {
		s.logger.Warn("Insights cache write failed", zap.Error(err))
	}
	if !refreshed {
		return
	}
	if err := s.cache.SetCache(refreshPrefix+userID, []byte(in.GeneratedAt.Format(time.RFC3339)), s.ttl); err != nil {
		s.logger.Warn("Refresh gate write failed", zap.Error(err))
	}
}
