package measurementHandler

import (
	"errors"
	"facemeasure/internal/api/measurement"
	measurementService "facemeasure/internal/api/measurement/service"
	"facemeasure/pkg/facesdk"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var errSocketClosed = errors.New("page socket closed")

// socketSink writes feedback to the page. Writes come from the engine's
// dispatch goroutine and the read loop, so they are serialized here.
type socketSink struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

func newSocketSink(conn *websocket.Conn, writeTimeout time.Duration) *socketSink {
	return &socketSink{
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

func (s *socketSink) PublishFeedback(state measurementService.UIFeedbackState) error {
	payload := state.Payload()
	return s.send(measurement.ServerMessage{
		Type:     measurement.ServerFeedback,
		Feedback: &payload,
	})
}

func (s *socketSink) PublishResult(result facesdk.Result) error {
	return s.send(measurement.ServerMessage{
		Type:   measurement.ServerComplete,
		Result: result,
	})
}

func (s *socketSink) send(msg measurement.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errSocketClosed
	}

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return err
	}
	return s.conn.SetWriteDeadline(time.Time{})
}

func (s *socketSink) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
