package callHandler

import (
	callService "VoiceBooking/internal/api/calls/service"
	"VoiceBooking/internal/middleware"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type CallHandler struct {
	log           *logrus.Logger
	validator     *validator.Validate
	middleware    middleware.Middleware
	callService   callService.ICallService
	publicBaseURL string
}

func New(
	log *logrus.Logger,
	validate *validator.Validate,
	middleware middleware.Middleware,
	cs callService.ICallService,
	publicBaseURL string,
) *CallHandler {
	return &CallHandler{
		log:           log,
		validator:     validate,
		middleware:    middleware,
		callService:   cs,
		publicBaseURL: publicBaseURL,
	}
}

func (h *CallHandler) Start(srv fiber.Router) {
	webhooks := srv.Group("/webhooks")
	webhooks.Use(h.middleware.NewRateLimiter)

	twilio := webhooks.Group("/twilio", h.middleware.NewTwilioSignatureMiddleware)
	twilio.Post("/voice/", h.Voice)
	twilio.Post("/gather-action/", h.GatherAction)

	retell := webhooks.Group("/retell", h.middleware.NewWebhookTokenMiddleware)
	retell.Post("/events/", h.RetellEvent)
}
