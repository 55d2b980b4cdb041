package handlerUtil

import (
	"VoiceBooking/pkg/log"
	"VoiceBooking/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

// Handle maps domain errors created with response.NewError to their status code. Anything else is a 500.
func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	if code, ok := response.StatusCode(err); ok {
		entry := h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"code":       code,
			"path":       path,
			"operation":  operation,
		})
		if code >= fiber.StatusInternalServerError {
			entry.Error("Operation failed with error response")
		} else {
			entry.Warn("Operation failed with error response")
		}
		return c.Status(code).JSON(fiber.Map{"error": err.Error()})
	}

	traceID := log.TraceID(requestID)
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"trace_id":   traceID,
		"error":      err.Error(),
		"path":       path,
		"operation":  operation,
	}).Error("Unexpected error")

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":    "An unexpected error occurred",
		"trace_id": traceID,
	})
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error, path string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
	}).Warn("Validation failed")

	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "Validation failed: " + err.Error(),
		"code":  "VALIDATION_ERROR",
	})
}

func (h *ErrorHandler) HandleRequestTimeout(c *fiber.Ctx) error {
	return c.Status(fiber.StatusRequestTimeout).JSON(utils.StatusMessage(fiber.StatusRequestTimeout))
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}
