package config

import (
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

func NewFiber(logger *logrus.Logger, appName string) *fiber.App {
	app := fiber.New(
		fiber.Config{
			AppName:               appName,
			BodyLimit:             4 * 1024 * 1024,
			DisableKeepalive:      false,
			StrictRouting:         false,
			CaseSensitive:         true,
			DisableStartupMessage: true,
			JSONEncoder:           jsoniter.Marshal,
			JSONDecoder:           jsoniter.Unmarshal,
		})

	logger.WithField("app_name", appName).Debug("Fiber app created")

	return app
}
