package middleware

import (
	"facemeasure/pkg/log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

func newLoggingMiddleware(logger *logrus.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		requestID, ok := c.Locals(RequestIDKey).(string)
		if !ok || requestID == "" {
			requestID = "unknown"
		}

		err := c.Next()

		// Upgraded sockets are logged by their own handler for their whole lifetime.
		if c.Response().StatusCode() == fiber.StatusSwitchingProtocols {
			return err
		}

		latency := time.Since(start)
		status := c.Response().StatusCode()

		logFields := log.Fields{
			"request_id":    requestID,
			"method":        c.Method(),
			"path":          c.Path(),
			"status":        status,
			"latency_ms":    latency.Milliseconds(),
			"ip":            c.IP(),
			"user_agent":    c.Get(fiber.HeaderUserAgent),
			"response_size": len(c.Response().Body()),
		}

		if status >= 500 {
			logger.WithFields(logFields).Error("Server error")
		} else if status >= 400 {
			logger.WithFields(logFields).Warn("Client error")
		} else {
			logger.WithFields(logFields).Info("Success")
		}

		return err
	}
}
