package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/example/coursepay/internal/services"
)

// ErrorHandler renders every failed request as {"success": false, "error": "..."}.
// Errors that are not *fiber.Error are logged and hidden behind a generic message.
func ErrorHandler(log *zap.SugaredLogger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "internal server error"

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			code = fiberErr.Code
			message = fiberErr.Message
		} else {
			log.Errorw("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		}

		return c.Status(code).JSON(fiber.Map{
			"success": false,
			"error":   message,
		})
	}
}

// serviceError maps service errors onto HTTP status codes.
func serviceError(err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidSignature):
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrCourseNotFound),
		errors.Is(err, services.ErrPaymentNotFound),
		errors.Is(err, services.ErrCodeInvalid):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrAlreadyEnrolled),
		errors.Is(err, services.ErrCodeUsed):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, services.ErrMissingIdentifier),
		errors.Is(err, services.ErrUnsupportedMethod),
		errors.Is(err, services.ErrUnsupportedEvent),
		errors.Is(err, services.ErrInvalidPayload),
		errors.Is(err, services.ErrFreeCourse),
		errors.Is(err, services.ErrPaidCourse),
		errors.Is(err, services.ErrCodeExpired):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case services.IsGatewayError(err):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return err
	}
}
