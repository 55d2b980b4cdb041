package middleware

import (
	"VoiceBooking/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"time"
)

const RequestIDKey = "X-Request-ID"

// TwilioIdempotencyHeader is identical across redeliveries of the same Twilio webhook.
const TwilioIdempotencyHeader = "I-Twilio-Idempotency-Token"

func NewRequestIDMiddleware() fiber.Handler {
	utilsInstance := utils.New()

	return func(c *fiber.Ctx) error {
		requestID := c.Get(RequestIDKey)

		if requestID == "" {
			requestID = c.Get(TwilioIdempotencyHeader)
		}
		if requestID == "" {
			requestID, _ = utilsInstance.NewULIDFromTimestamp(time.Now())
		}

		c.Locals(RequestIDKey, requestID)
		c.Set(RequestIDKey, requestID)

		return c.Next()
	}
}
