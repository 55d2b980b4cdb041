package context

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// fiberRequestIDKey is where the request id middleware stores the id on the fiber context.
const fiberRequestIDKey = "X-Request-ID"

type requestIDKey struct{}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	requestID, ok := ctx.Value(requestIDKey{}).(string)
	if !ok || requestID == "" {
		return "unknown"
	}
	return requestID
}

// FromFiberCtx derives a context from the request's user context carrying its request id.
func FromFiberCtx(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()

	requestID, ok := c.Locals(fiberRequestIDKey).(string)
	if !ok || requestID == "" {
		requestID = c.Get(fiberRequestIDKey)

		if requestID == "" {
			requestID = "unknown"
		}
	}

	return WithRequestID(ctx, requestID)
}
