package middleware

import (
	"VoiceBooking/pkg/response"
	twilioPkg "VoiceBooking/pkg/twilio"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const TwilioSignatureHeader = "X-Twilio-Signature"

var ErrInvalidSignature = response.NewError(http.StatusForbidden, "invalid webhook signature")

type signatureMiddleware struct {
	validator twilioPkg.ISignatureValidator
	baseURL   string
}

func newSignatureMiddleware(validator twilioPkg.ISignatureValidator, baseURL string) *signatureMiddleware {
	return &signatureMiddleware{validator: validator, baseURL: strings.TrimRight(baseURL, "/")}
}

// NewTwilioSignatureMiddleware rejects form posts whose signature does not match the public URL
// Twilio called.
func (m *middleware) NewTwilioSignatureMiddleware(ctx *fiber.Ctx) error {
	if m.signature == nil {
		return ctx.Next()
	}

	baseURL := m.signature.baseURL
	if baseURL == "" {
		baseURL = ctx.BaseURL()
	}
	url := baseURL + ctx.OriginalURL()

	params := map[string]string{}
	ctx.Request().PostArgs().VisitAll(func(key, value []byte) {
		params[string(key)] = string(value)
	})

	if !m.signature.validator.Validate(url, params, ctx.Get(TwilioSignatureHeader)) {
		m.log.WithFields(logrus.Fields{
			"request_id": m.GetRequestID(ctx),
			"url":        url,
			"client_ip":  ctx.IP(),
		}).Warn("Rejected webhook with invalid signature")
		return ctx.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": ErrInvalidSignature.Error(),
		})
	}

	return ctx.Next()
}
