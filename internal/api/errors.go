package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/gmsas95/medtrack/internal/errors"
)

func statusOf(err error) int {
	if apperrors.GetCode(err) == apperrors.ErrRateLimited.Code {
		return fiber.StatusTooManyRequests
	}
	switch apperrors.Kind(err) {
	case apperrors.KindNotFound:
		return fiber.StatusNotFound
	case apperrors.KindInvalidInput:
		return fiber.StatusBadRequest
	case apperrors.KindStateConflict:
		return fiber.StatusConflict
	case apperrors.KindUnavailable:
		return fiber.StatusServiceUnavailable
	case apperrors.KindUnauthorized:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(errorResponse{Error: fe.Message})
	}

	status := statusOf(err)
	if status == fiber.StatusInternalServerError {
		s.logger.Error("Unhandled error", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(status).JSON(errorResponse{Error: "internal error", Code: apperrors.ErrInternal.Code})
	}

	var appErr *apperrors.AppError
	errors.As(err, &appErr)
	return c.Status(status).JSON(errorResponse{Error: appErr.Message, Code: appErr.Code})
}

func badRequest(msg string) error {
	return apperrors.ErrInvalidInput.Withf("%s", msg)
}
