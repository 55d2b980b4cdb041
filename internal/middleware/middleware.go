package middleware

import (
	twilioPkg "VoiceBooking/pkg/twilio"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type Middleware interface {
	NewRateLimiter(ctx *fiber.Ctx) error
	NewTwilioSignatureMiddleware(ctx *fiber.Ctx) error
	NewWebhookTokenMiddleware(ctx *fiber.Ctx) error
	NewRequestIDMiddleware() fiber.Handler
	GetRequestID(ctx *fiber.Ctx) string
}

// Config turns the optional webhook checks on. Empty values disable them.
type Config struct {
	TwilioAuthToken  string
	PublicBaseURL    string
	WebhookJWTSecret string
	// RateLimit is the sustained per-IP request rate; zero uses DefaultRateLimit.
	RateLimit float64
	RateBurst int
}

type middleware struct {
	rateLimitter        *rateLimiter
	signature           *signatureMiddleware
	token               *tokenMiddleware
	requestIDMiddleware fiber.Handler
	log                 *logrus.Logger
}

func New(logger *logrus.Logger, config Config) Middleware {
	if config.RateLimit <= 0 {
		config.RateLimit = DefaultRateLimit
	}
	if config.RateBurst <= 0 {
		config.RateBurst = DefaultRateBurst
	}

	rateLimit := newRateLimiter(rate.Limit(config.RateLimit), config.RateBurst)
	requestID := NewRequestIDMiddleware()

	var signature *signatureMiddleware
	if config.TwilioAuthToken != "" {
		signature = newSignatureMiddleware(twilioPkg.NewSignatureValidator(config.TwilioAuthToken), config.PublicBaseURL)
	}

	return &middleware{
		rateLimitter:        rateLimit,
		signature:           signature,
		token:               newTokenMiddleware(config.WebhookJWTSecret),
		requestIDMiddleware: requestID,
		log:                 logger,
	}
}

func (m *middleware) GetRequestID(ctx *fiber.Ctx) string {
	requestID, ok := ctx.Locals(RequestIDKey).(string)
	if !ok || requestID == "" {
		return "unknown"
	}
	return requestID
}

func (m *middleware) NewRequestIDMiddleware() fiber.Handler {
	return m.requestIDMiddleware
}
