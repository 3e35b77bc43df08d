package config

import (
	measurementHandler "facemeasure/internal/api/measurement/handler"
	measurementService "facemeasure/internal/api/measurement/service"
	"facemeasure/internal/middleware"
	"facemeasure/pkg/facesdk"
	"facemeasure/pkg/metrics"
	"facemeasure/pkg/utils"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type ServerOption func(*Server) error

type Server struct {
	engine        *fiber.App
	log           *logrus.Logger
	appConfig     AppConfig
	middleware    middleware.Middleware
	validator     *validator.Validate
	utils         utils.IUtils
	engineFactory facesdk.Factory
	handlers      []handler
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.validator == nil {
		return nil, fmt.Errorf("validator is required")
	}
	if server.middleware == nil {
		return nil, fmt.Errorf("middleware is required")
	}
	if server.engineFactory == nil {
		return nil, fmt.Errorf("measurement engine factory is required")
	}
	if server.utils == nil {
		server.utils = utils.New()
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithAppConfig(cfg AppConfig) ServerOption {
	return func(s *Server) error {
		s.appConfig = cfg
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		if s.appConfig.RateLimit <= 0 || s.appConfig.RateBurst <= 0 {
			return fmt.Errorf("app config must be set before middleware")
		}
		s.middleware = middleware.New(s.log, rate.Limit(s.appConfig.RateLimit), s.appConfig.RateBurst)
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

// WithEngineFactory sets how measurement engines are built.
func WithEngineFactory(factory facesdk.Factory) ServerOption {
	return func(s *Server) error {
		s.engineFactory = factory
		return nil
	}
}

func WithRemoteEngine() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before the remote engine")
		}
		if s.appConfig.EngineURL == "" {
			return fmt.Errorf("engine url is not configured")
		}
		s.engineFactory = facesdk.NewRemoteFactory(
			facesdk.WithServiceURL(s.appConfig.EngineURL),
			facesdk.WithLogger(s.log),
		)
		return nil
	}
}

func (s *Server) measurementOptions() measurementService.Options {
	opts := measurementService.DefaultOptions()
	opts.Debug.EnableConsoleLog = s.appConfig.DebugConsoleLog
	opts.DataDownload.Enabled = s.appConfig.DataDownloadEnabled
	opts.DataDownload.AutoDownload = s.appConfig.DataDownloadAuto
	if s.appConfig.DataDownloadFilename != "" {
		opts.DataDownload.Filename = s.appConfig.DataDownloadFilename
	}
	opts.ReadyToMeasuringDelay = s.appConfig.ReadyToMeasuringDelay
	return opts
}

func (s *Server) RegisterHandler() {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())

	// Measurement
	measurementServices := measurementService.NewMeasurementService(s.log, s.engineFactory, s.utils, s.measurementOptions())
	measurementHandlers := measurementHandler.New(s.log, s.validator, s.middleware, measurementServices)

	s.setupHealthCheck()
	s.setupMetrics()
	s.handlers = append(s.handlers, measurementHandlers)
}

func (s *Server) Run() error {
	router := s.engine.Group("/api/v1")
	for _, h := range s.handlers {
		h.Start(router)
	}

	port := s.appConfig.Port
	if port == "" {
		port = "3000"
	}

	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

func (s *Server) Shutdown() error {
	return s.engine.Shutdown()
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message": "Server is Healthy!",
		})
	})
}

func (s *Server) setupMetrics() {
	s.engine.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
}
