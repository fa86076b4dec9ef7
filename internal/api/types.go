package api

import (
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/gmsas95/medtrack/internal/analytics"
	"github.com/gmsas95/medtrack/internal/config"
	"github.com/gmsas95/medtrack/internal/insights"
	"github.com/gmsas95/medtrack/internal/metrics"
	"github.com/gmsas95/medtrack/internal/tracker"
)

// Deps are the services the HTTP layer fronts.
type Deps struct {
	Tracker  *tracker.Service
	Analyzer *analytics.Analyzer
	Insights *insights.Service
	Metrics  *metrics.Metrics
	Version  string
}

type Server struct {
	app      *fiber.App
	config   *config.Config
	tracker  *tracker.Service
	analyzer *analytics.Analyzer
	insights atomic.Pointer[insights.Service]
	metrics  *metrics.Metrics
	limiter  *userLimiter
	logger   *zap.Logger
	version  string
}

func New(cfg *config.Config, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	readTimeout := time.Duration(cfg.Server.ReadTimeout) * time.Second
	writeTimeout := time.Duration(cfg.Server.WriteTimeout) * time.Second

	s := &Server{
		config:   cfg,
		tracker:  deps.Tracker,
		analyzer: deps.Analyzer,
		metrics:  deps.Metrics,
		limiter:  newUserLimiter(cfg.Security.RateLimit, cfg.Security.RateBurst),
		logger:   logger,
		version:  deps.Version,
	}
	s.insights.Store(deps.Insights)

	s.app = fiber.New(fiber.Config{
		ReadTimeout:           readTimeout,
		WriteTimeout:          writeTimeout,
		IdleTimeout:           120 * time.Second,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	s.setupRoutes()
	return s
}

// SetInsights swaps the insights service after a config reload.
func (s *Server) SetInsights(svc *insights.Service) {
	s.insights.Store(svc)
}

// App is exposed for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

type markRequest struct {
	MedicationID string `json:"medication_id"`
	TimeSlot     string `json:"time_slot"`
	Taken        *bool  `json:"taken"`
}

type skipRequest struct {
	MedicationID string `json:"medication_id"`
	TimeSlot     string `json:"time_slot"`
	Notes        string `json:"notes"`
}

type refillRequest struct {
	Amount int `json:"amount"`
}

type stockRequest struct {
	CurrentStock *int `json:"current_stock"`
	TotalStock   *int `json:"total_stock"`
}

type scheduleRequest struct {
	Times []string `json:"times"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
