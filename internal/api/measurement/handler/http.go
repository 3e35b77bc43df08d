package measurementHandler

import (
	measurementService "facemeasure/internal/api/measurement/service"
	"facemeasure/internal/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
	"time"
)

const userAgentKey = "user_agent"

type MeasurementHandler struct {
	log                *logrus.Logger
	validator          *validator.Validate
	middleware         middleware.Middleware
	measurementService measurementService.IMeasurementService
	readTimeout        time.Duration
	writeTimeout       time.Duration
	pingInterval       time.Duration
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	ms measurementService.IMeasurementService,
) *MeasurementHandler {
	return &MeasurementHandler{
		log:                log,
		validator:          validator,
		middleware:         middleware,
		measurementService: ms,
		readTimeout:        60 * time.Second,
		writeTimeout:       10 * time.Second,
		pingInterval:       25 * time.Second,
	}
}

func (h *MeasurementHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals(userAgentKey, c.Get(fiber.HeaderUserAgent))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	measurement := srv.Group("/measurement")
	measurement.Use("/ws", wsMiddleware)
	measurement.Get("/ws", websocket.New(h.handleWebSocket))

	sessions := measurement.Group("/sessions", h.middleware.NewRateLimiter)
	sessions.Get("/", h.ListSessions)
	sessions.Get("/:id", h.GetSession)
	sessions.Delete("/:id", h.DisposeSession)
}
