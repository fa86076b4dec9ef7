package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func (s *Server) setupRoutes() {
	s.app.Use(recover.New())
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(s.config.Security.AllowOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	s.app.Use(s.requestMetrics())

	s.app.Get("/api/health", s.handleHealth)
	s.app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))

	api := s.app.Group("/api", s.authMiddleware(), s.rateLimitMiddleware())

	meds := api.Group("/medications")
	meds.Get("/", s.handleListMedications)
	meds.Post("/", s.handleCreateMedication)
	meds.Get("/:id", s.handleGetMedication)
	meds.Put("/:id", s.handleUpdateMedication)
	meds.Delete("/:id", s.handleDeleteMedication)
	meds.Post("/:id/refill", s.handleRefill)
	meds.Put("/:id/stock", s.handleSetStock)
	meds.Get("/:id/schedule", s.handleGetSchedule)
	meds.Put("/:id/schedule", s.handleSetSchedule)
	meds.Delete("/:id/schedule", s.handleResetSchedule)

	doses := api.Group("/doses")
	doses.Get("/today", s.handleToday)
	doses.Post("/mark", s.handleMarkDose)
	doses.Post("/skip", s.handleSkipDose)

	adherence := api.Group("/adherence")
	adherence.Get("/", s.handleAdherence)
	adherence.Get("/missed", s.handleMissed)
	adherence.Get("/history", s.handleHistory)
	adherence.Get("/streak", s.handleStreak)
	adherence.Get("/time-of-day", s.handleTimeOfDay)
	adherence.Get("/comparison", s.handleComparison)

	api.Get("/insights", s.handleInsights)
	api.Get("/insights/refresh-status", s.handleRefreshStatus)
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Address, s.config.Server.Port)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(ctx)
}
