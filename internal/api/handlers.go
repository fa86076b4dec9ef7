package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/gmsas95/medtrack/internal/tracker"
)

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"version":   s.version,
		"timestamp": time.Now().Unix(),
		"metrics":   s.metrics.Snapshot(),
	})
}

// rolloverAll closes stale days before a live read. A failure is logged
// and the read goes ahead: a stale day log already reads as empty.
func (s *Server) rolloverAll(c *fiber.Ctx) {
	if _, err := s.tracker.RolloverAll(c.UserContext(), userID(c)); err != nil {
		s.logger.Warn("Rollover before read failed", zap.String("user_id", userID(c)), zap.Error(err))
	}
}

func (s *Server) rolloverOne(c *fiber.Ctx, medicationID string) {
	if _, err := s.tracker.Rollover(c.UserContext(), userID(c), medicationID); err != nil {
		s.logger.Warn("Rollover before read failed", zap.String("medication_id", medicationID), zap.Error(err))
	}
}

func (s *Server) handleListMedications(c *fiber.Ctx) error {
	s.rolloverAll(c)
	list, err := s.tracker.List(c.UserContext(), userID(c), c.QueryBool("active", false))
	if err != nil {
		return err
	}
	return c.JSON(list)
}

func (s *Server) handleCreateMedication(c *fiber.Ctx) error {
	var req tracker.CreateInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request")
	}

	med, err := s.tracker.Create(c.UserContext(), userID(c), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(med)
}

func (s *Server) handleGetMedication(c *fiber.Ctx) error {
	id := c.Params("id")
	s.rolloverOne(c, id)
	med, err := s.tracker.Get(c.UserContext(), userID(c), id)
	if err != nil {
		return err
	}
	return c.JSON(med)
}

func (s *Server) handleUpdateMedication(c *fiber.Ctx) error {
	var req tracker.UpdateInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request")
	}

	med, err := s.tracker.Update(c.UserContext(), userID(c), c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(med)
}

func (s *Server) handleDeleteMedication(c *fiber.Ctx) error {
	res, err := s.tracker.Delete(c.UserContext(), userID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (s *Server) handleRefill(c *fiber.Ctx) error {
	var req refillRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request")
	}

	med, err := s.tracker.Refill(c.UserContext(), userID(c), c.Params("id"), req.Amount)
	if err != nil {
		return err
	}
	return c.JSON(med)
}

func (s *Server) handleSetStock(c *fiber.Ctx) error {
	var req stockRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request")
	}
	if req.CurrentStock == nil {
		return badRequest("current_stock is required")
	}

	med, err := s.tracker.SetStock(c.UserContext(), userID(c), c.Params("id"), *req.CurrentStock, req.TotalStock)
	if err != nil {
		return err
	}
	return c.JSON(med)
}

func (s *Server) handleGetSchedule(c *fiber.Ctx) error {
	sched, err := s.tracker.GetSchedule(c.UserContext(), userID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(sched)
}

func (s *Server) handleSetSchedule(c *fiber.Ctx) error {
	var req scheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request")
	}

	sched, err := s.tracker.SetCustomSchedule(c.UserContext(), userID(c), c.Params("id"), req.Times)
	if err != nil {
		return err
	}
	return c.JSON(sched)
}

func (s *Server) handleResetSchedule(c *fiber.Ctx) error {
	sched, err := s.tracker.ResetSchedule(c.UserContext(), userID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(sched)
}

func (s *Server) handleToday(c *fiber.Ctx) error {
	s.rolloverAll(c)
	today, err := s.tracker.TodayView(c.UserContext(), userID(c))
	if err != nil {
		return err
	}
	return c.JSON(today)
}

// handleMarkDose answers 503 with the result attached when the slot was
// updated but its ledger row could not be written.
func (s *Server) handleMarkDose(c *fiber.Ctx) error {
	var req markRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request")
	}
	if req.MedicationID == "" || req.TimeSlot == "" {
		return badRequest("medication_id and time_slot are required")
	}
	taken := true
	if req.Taken != nil {
		taken = *req.Taken
	}

	res, err := s.tracker.MarkDose(c.UserContext(), userID(c), req.MedicationID, req.TimeSlot, taken)
	if err != nil {
		if res == nil {
			return err
		}
		return c.Status(statusOf(err)).JSON(fiber.Map{
			"error":  "dose recorded but the ledger write failed, retry to complete it",
			"result": res,
		})
	}
	return c.JSON(res)
}

func (s *Server) handleSkipDose(c *fiber.Ctx) error {
	var req skipRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("invalid request")
	}
	if req.MedicationID == "" || req.TimeSlot == "" {
		return badRequest("medication_id and time_slot are required")
	}

	entry, err := s.tracker.SkipDose(c.UserContext(), userID(c), req.MedicationID, req.TimeSlot, req.Notes)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(entry)
}
