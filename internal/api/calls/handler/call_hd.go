package callHandler

import (
	"VoiceBooking/internal/api/calls"
	callService "VoiceBooking/internal/api/calls/service"
	contextPkg "VoiceBooking/pkg/context"
	"VoiceBooking/pkg/handlerUtil"
	"VoiceBooking/pkg/log"
	twilioPkg "VoiceBooking/pkg/twilio"
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

const webhookTimeout = 10 * time.Second

func (h *CallHandler) Voice(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), webhookTimeout)
	defer cancel()

	var req calls.StartCallRequest
	if err := ctx.BodyParser(&req); err != nil {
		return handlerUtil.New(h.log).Handle(ctx, requestID, calls.ErrInvalidPayload, ctx.Path(), "voice")
	}

	resp, err := h.callService.StartCall(c, req)
	if err != nil {
		h.log.WithFields(log.Fields{
			"request_id":  requestID,
			"external_id": req.ExternalID,
			"error":       err.Error(),
		}).Error("Failed to start call")
		return h.fallback(ctx)
	}

	return h.respond(ctx, resp)
}

func (h *CallHandler) GatherAction(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), webhookTimeout)
	defer cancel()

	var req calls.TurnRequest
	if err := ctx.BodyParser(&req); err != nil {
		return handlerUtil.New(h.log).Handle(ctx, requestID, calls.ErrInvalidPayload, ctx.Path(), "gather_action")
	}

	h.log.WithFields(log.Fields{
		"request_id":  requestID,
		"external_id": req.ExternalID,
	}).Debug("Processing caller turn")

	resp, err := h.callService.HandleTurn(c, req)
	if err != nil {
		h.log.WithFields(log.Fields{
			"request_id":  requestID,
			"external_id": req.ExternalID,
			"error":       err.Error(),
		}).Error("Failed to handle turn")
		return h.fallback(ctx)
	}

	return h.respond(ctx, resp)
}

func (h *CallHandler) RetellEvent(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), webhookTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var req calls.IntentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, calls.ErrInvalidPayload, ctx.Path(), "retell_event")
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	resp, err := h.callService.HandleIntent(c, req)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "retell_event")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, resp)
	}
}

func (h *CallHandler) respond(ctx *fiber.Ctx, resp *calls.DialogResponse) error {
	var (
		body string
		err  error
	)
	if resp.Listen {
		body, err = twilioPkg.GatherResponse(h.publicBaseURL, resp.Prompt)
	} else {
		body, err = twilioPkg.SayResponse(resp.Prompt)
	}
	if err != nil {
		h.log.WithFields(log.Fields{
			"call_id": resp.CallID,
			"error":   err.Error(),
		}).Error("Failed to render TwiML")
		return h.fallback(ctx)
	}

	return sendXML(ctx, body)
}

// fallback keeps the call alive with a re-prompt when the dialog layer fails. Unreadable payloads
// are rejected before they reach it.
func (h *CallHandler) fallback(ctx *fiber.Ctx) error {
	body, err := twilioPkg.GatherResponse(h.publicBaseURL, callService.PromptFallback)
	if err != nil {
		return ctx.SendStatus(fiber.StatusInternalServerError)
	}
	return sendXML(ctx, body)
}

func sendXML(ctx *fiber.Ctx, body string) error {
	ctx.Set(fiber.HeaderContentType, fiber.MIMEApplicationXMLCharsetUTF8)
	return ctx.Status(fiber.StatusOK).SendString(body)
}
