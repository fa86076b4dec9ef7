package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/gmsas95/medtrack/internal/analytics"
	"github.com/gmsas95/medtrack/internal/timeofday"
)

func (s *Server) handleAdherence(c *fiber.Ctx) error {
	period, err := analytics.ParsePeriod(c.Query("period"))
	if err != nil {
		return err
	}

	s.rolloverAll(c)
	report, err := s.analyzer.AdherenceStats(c.UserContext(), userID(c), period, c.Query("medication_id"))
	if err != nil {
		return err
	}
	return c.JSON(report)
}

func missedFilter(c *fiber.Ctx) (analytics.MissedFilter, error) {
	f := analytics.MissedFilter{
		MedicationID: c.Query("medication_id"),
		From:         c.Query("from"),
		To:           c.Query("to"),
		Limit:        c.QueryInt("limit", 0),
	}
	for _, d := range []string{f.From, f.To} {
		if d == "" {
			continue
		}
		if _, err := timeofday.ParseDate(d, time.UTC); err != nil {
			return f, err
		}
	}
	return f, nil
}

func (s *Server) handleMissed(c *fiber.Ctx) error {
	f, err := missedFilter(c)
	if err != nil {
		return err
	}

	s.rolloverAll(c)
	entries, err := s.analyzer.MissedDoses(c.UserContext(), userID(c), f)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"missed_doses": entries, "count": len(entries)})
}

func (s *Server) handleHistory(c *fiber.Ctx) error {
	f, err := missedFilter(c)
	if err != nil {
		return err
	}

	s.rolloverAll(c)
	entries, err := s.analyzer.History(c.UserContext(), userID(c), f)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"history": entries, "count": len(entries)})
}

func (s *Server) handleStreak(c *fiber.Ctx) error {
	s.rolloverAll(c)
	streak, err := s.analyzer.Streak(c.UserContext(), userID(c))
	if err != nil {
		return err
	}
	return c.JSON(streak)
}

func (s *Server) handleTimeOfDay(c *fiber.Ctx) error {
	period, err := analytics.ParsePeriod(c.Query("period"))
	if err != nil {
		return err
	}

	s.rolloverAll(c)
	report, err := s.analyzer.TimeOfDay(c.UserContext(), userID(c), period)
	if err != nil {
		return err
	}
	return c.JSON(report)
}

func (s *Server) handleComparison(c *fiber.Ctx) error {
	s.rolloverAll(c)
	cmp, err := s.analyzer.Comparison(c.UserContext(), userID(c))
	if err != nil {
		return err
	}
	return c.JSON(cmp)
}

func (s *Server) handleInsights(c *fiber.Ctx) error {
	s.rolloverAll(c)
	out, err := s.insights.Load().Generate(c.UserContext(), userID(c), c.QueryBool("refresh", false))
	if err != nil {
		return err
	}

	switch {
	case out.FromCache:
		s.metrics.InsightsServed("cache")
	case out.Fallback:
		s.metrics.InsightsServed("fallback")
	default:
		s.metrics.InsightsServed("summarizer")
	}
	return c.JSON(out)
}

func (s *Server) handleRefreshStatus(c *fiber.Ctx) error {
	return c.JSON(s.insights.Load().RefreshStatus(userID(c)))
}
