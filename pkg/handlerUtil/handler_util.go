package handlerUtil

import (
	"errors"
	"facemeasure/internal/api/measurement"
	"facemeasure/pkg/log"
	"facemeasure/pkg/response"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

// Describe maps an error to the status, code and message shown to clients.
func Describe(err error) (int, string, string) {
	var missing *measurement.MissingElementError
	if errors.As(err, &missing) {
		return fiber.StatusUnprocessableEntity, "MISSING_ELEMENT", missing.Error()
	}

	switch {
	case errors.Is(err, measurement.ErrSessionNotFound):
		return fiber.StatusNotFound, "SESSION_NOT_FOUND", "Measurement session not found"
	case errors.Is(err, measurement.ErrBadMessage):
		return fiber.StatusBadRequest, "BAD_MESSAGE", "Malformed page message"
	case errors.Is(err, measurement.ErrInvalidLifecycleState):
		return fiber.StatusConflict, "INVALID_LIFECYCLE_STATE", "Session cannot be started in its current state"
	case errors.Is(err, measurement.ErrDisposedDuringStart):
		return fiber.StatusConflict, "SESSION_DISPOSED", "Session was disposed during start"
	case errors.Is(err, measurement.ErrEngineConstruction):
		return fiber.StatusInternalServerError, "ENGINE_UNAVAILABLE", "Measurement engine is unavailable"
	case errors.Is(err, measurement.ErrFrameRelayUnsupported):
		return fiber.StatusNotImplemented, "FRAME_RELAY_UNSUPPORTED", "Engine does not accept pushed frames"
	case errors.Is(err, measurement.ErrInternalServerError):
		return fiber.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"
	}

	var respErr *response.Error
	if errors.As(err, &respErr) {
		return respErr.Code, "ERROR", respErr.Error()
	}

	return fiber.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"
}

func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	status, code, message := Describe(err)

	fields := log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"code":       code,
		"path":       path,
		"operation":  operation,
	}
	if status >= fiber.StatusInternalServerError {
		traceID := log.ErrorWithTraceID(fields, "Operation failed")
		return c.Status(status).JSON(ErrorResponse{
			Error:   message,
			Code:    code,
			Details: "trace_id: " + traceID,
		})
	}

	h.logger.WithFields(fields).Warn("Operation failed with error response")

	return c.Status(status).JSON(ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}
