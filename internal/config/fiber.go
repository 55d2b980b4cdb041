package config

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

func NewFiber(logger *logrus.Logger) *fiber.App {
	app := fiber.New(
		fiber.Config{
			AppName:           "Voice Booking",
			BodyLimit:         1 * 1024 * 1024,
			DisableKeepalive:  false,
			StrictRouting:     true,
			CaseSensitive:     true,
			EnablePrintRoutes: true,
			JSONEncoder:       jsoniter.Marshal,
			JSONDecoder:       jsoniter.Unmarshal,
			ErrorHandler: func(ctx *fiber.Ctx, err error) error {
				code := fiber.StatusInternalServerError
				var fe *fiber.Error
				if errors.As(err, &fe) {
					code = fe.Code
				}
				if code >= fiber.StatusInternalServerError {
					logger.WithFields(logrus.Fields{
						"path":  ctx.Path(),
						"error": err.Error(),
					}).Error("Unhandled error")
				}
				return ctx.Status(code).JSON(fiber.Map{"error": err.Error()})
			},
		})

	return app
}
