package middleware

import (
	jwtPkg "VoiceBooking/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

type tokenMiddleware struct {
	secret string
}

func newTokenMiddleware(secret string) *tokenMiddleware {
	return &tokenMiddleware{secret: secret}
}

// NewWebhookTokenMiddleware requires a bearer token on JSON webhooks when a secret is configured.
func (m *middleware) NewWebhookTokenMiddleware(ctx *fiber.Ctx) error {
	if m.token.secret == "" {
		return ctx.Next()
	}

	userToken, err := jwtPkg.VerifyTokenHeader(ctx, m.token.secret)
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"request_id": m.GetRequestID(ctx),
			"path":       ctx.Path(),
			"error":      err.Error(),
		}).Warn("Token verification failed")
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized, access token invalid or expired",
		})
	}

	claims, ok := userToken.Claims.(jwt.MapClaims)
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized, access token invalid or expired",
		})
	}
	ctx.Locals(jwtPkg.ClaimsKey, claims)

	return ctx.Next()
}
