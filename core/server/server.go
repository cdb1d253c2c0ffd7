package server

import (
	"history-forwarder/core/logger"
	"history-forwarder/core/middleware/auth"
	"history-forwarder/core/middleware/rayid"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// New returns a fiber app with the request id, request logging and API key middleware
// installed, in that order. /health is registered before the auth check.
func New(cfg Config, l *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true, // We log our own startup message
	})

	// RayID must be first to trace everything
	app.Use(rayid.New())

	app.Use(func(c *fiber.Ctx) error {
		rl := logger.WithRayID(l, c)
		rl.Debug("Request started",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("ip", c.IP()),
		)
		err := c.Next()
		if err != nil {
			rl.Error("Request error", zap.Error(err))
		}
		return err
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Use(auth.New(auth.Config{ApiKey: cfg.ApiKey}))

	return app
}
