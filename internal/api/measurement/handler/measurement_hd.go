package measurementHandler

import (
	"context"
	"facemeasure/internal/api/measurement"
	measurementService "facemeasure/internal/api/measurement/service"
	"facemeasure/internal/middleware"
	contextPkg "facemeasure/pkg/context"
	"facemeasure/pkg/handlerUtil"
	"facemeasure/pkg/log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

// handleWebSocket runs one page session. The first load message starts the
// measurement; an unload message or the socket closing disposes it. The page
// is pinged so a quiet but connected page keeps its session; a page that
// stops answering for readTimeout is treated as gone.
func (h *MeasurementHandler) handleWebSocket(c *websocket.Conn) {
	requestID, _ := c.Locals(middleware.RequestIDKey).(string)
	if requestID == "" {
		requestID = "unknown"
	}
	userAgent, _ := c.Locals(userAgentKey).(string)

	ctx := contextPkg.WithRequestID(context.Background(), requestID)
	logger := h.log.WithField("request_id", requestID)
	sink := newSocketSink(c, h.writeTimeout)

	logger.Info("Measurement page connected")

	var session *measurementService.Session
	done := make(chan struct{})
	defer func() {
		close(done)
		if session != nil {
			session.Dispose()
		}
		sink.close()
		logger.Info("Measurement page disconnected")
	}()

	c.SetPingHandler(func(data string) error {
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			logger.Errorf("Error sending pong: %v", err)
		}
		return nil
	})
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(h.readTimeout))
	})
	go h.keepAlive(c, done, logger)

	for {
		if err := c.SetReadDeadline(time.Now().Add(h.readTimeout)); err != nil {
			logger.Errorf("Error setting read deadline: %v", err)
			return
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Errorf("Measurement WebSocket error: %v", err)
			} else {
				logger.Info("Measurement WebSocket connection closed")
			}
			return
		}

		switch messageType {
		case websocket.TextMessage:
			var msg measurement.ClientMessage
			if err := json.Unmarshal(message, &msg); err != nil {
				h.sendError(sink, logger, measurement.ErrBadMessage)
				continue
			}
			if err := h.validator.Struct(msg); err != nil {
				h.sendError(sink, logger, measurement.ErrBadMessage)
				continue
			}

			switch msg.Type {
			case measurement.ClientLoad:
				if session != nil {
					logger.Warn("Ignoring repeated load message")
					continue
				}
				if msg.UserAgent == "" {
					msg.UserAgent = userAgent
				}

				opened, err := h.measurementService.Open(ctx, measurement.LoadRequest{
					UserAgent: msg.UserAgent,
					Elements:  msg.Elements,
				}, sink)
				if err != nil {
					// Startup errors are fatal for the page session.
					h.sendError(sink, logger, err)
					return
				}
				session = opened

				if err := sink.send(measurement.ServerMessage{
					Type:      measurement.ServerSession,
					SessionID: session.ID(),
				}); err != nil {
					logger.Errorf("Error sending session message: %v", err)
					return
				}

				go func(s *measurementService.Session) {
					if err := s.Start(ctx); err != nil {
						logger.WithFields(log.Fields{
							"session_id": s.ID(),
							"error":      err.Error(),
						}).Debug("Session start ended with error")
					}
				}(session)

			case measurement.ClientUnload:
				return

			case measurement.ClientDebug:
				if session == nil {
					h.sendError(sink, logger, measurement.ErrSessionNotFound)
					continue
				}
				info := session.Debug()
				if err := sink.send(measurement.ServerMessage{
					Type:  measurement.ServerDebug,
					Debug: &info,
				}); err != nil {
					logger.Errorf("Error sending debug message: %v", err)
					return
				}
			}

		case websocket.BinaryMessage:
			if session == nil {
				continue
			}
			if err := session.PushFrame(message); err != nil {
				logger.WithFields(log.Fields{
					"session_id": session.ID(),
					"error":      err.Error(),
				}).Debug("Dropped camera frame")
			}

		default:
			logger.Warnf("Received unexpected message type: %d", messageType)
		}
	}
}

func (h *MeasurementHandler) keepAlive(c *websocket.Conn, done <-chan struct{}, logger *logrus.Entry) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeTimeout)); err != nil {
				logger.Warnf("Ping to measurement page failed: %v", err)
				return
			}
		}
	}
}

func (h *MeasurementHandler) ListSessions(ctx *fiber.Ctx) error {
	errHandler := handlerUtil.New(h.log)

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, measurement.SessionListResponse{
		Sessions: h.measurementService.List(),
	})
}

func (h *MeasurementHandler) GetSession(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	session, err := h.measurementService.Get(ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_session")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, session.Debug())
}

func (h *MeasurementHandler) DisposeSession(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	id := ctx.Params("id")
	if err := h.measurementService.Dispose(id); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "dispose_session")
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"session_id": id,
	}).Info("Session disposed on request")

	return errHandler.HandleSuccess(ctx, fiber.StatusNoContent, nil)
}

func (h *MeasurementHandler) sendError(sink *socketSink, logger *logrus.Entry, err error) {
	status, code, message := handlerUtil.Describe(err)

	fields := log.Fields{
		"error": err.Error(),
		"code":  code,
	}
	if status >= fiber.StatusInternalServerError {
		logger.WithFields(fields).Error("Measurement session failed")
	} else {
		logger.WithFields(fields).Warn("Measurement request rejected")
	}

	if sendErr := sink.send(measurement.ServerMessage{
		Type:  measurement.ServerError,
		Error: message,
		Code:  code,
	}); sendErr != nil {
		logger.Errorf("Error sending error message: %v", sendErr)
	}
}
