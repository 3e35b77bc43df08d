package facesdk

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	ErrEngineDisposed = errors.New("engine disposed")
	ErrNotConnected   = errors.New("not connected to face measurement service")
)

const defaultServiceURL = "ws://localhost:8000/api/v1/face/measure/ws"

// Message types exchanged with the measurement service.
const (
	MessageInit          = "init"
	MessageStarted       = "started"
	MessageInitFailed    = "init_failed"
	MessageState         = "state"
	MessageProgress      = "progress"
	MessageFaceDetection = "face_detection"
	MessageFacePosition  = "face_position"
	MessageCountdown     = "countdown"
	MessageComplete      = "complete"
	MessageError         = "error"
)

type ServiceMessage struct {
	Type          string       `json:"type"`
	Config        *Config      `json:"config,omitempty"`
	NewState      string       `json:"new_state,omitempty"`
	PreviousState string       `json:"previous_state,omitempty"`
	Progress      float64      `json:"progress,omitempty"`
	DataLength    int          `json:"data_length,omitempty"`
	Detected      bool         `json:"detected,omitempty"`
	BoundingBox   *BoundingBox `json:"bounding_box,omitempty"`
	InCircle      bool         `json:"in_circle,omitempty"`
	Remaining     float64      `json:"remaining,omitempty"`
	Total         float64      `json:"total,omitempty"`
	Result        Result       `json:"result,omitempty"`
	Error         *ErrorInfo   `json:"error,omitempty"`
}

type RemoteOption func(*RemoteEngine)

func WithServiceURL(url string) RemoteOption {
	return func(e *RemoteEngine) {
		e.url = url
	}
}

func WithLogger(logger *logrus.Logger) RemoteOption {
	return func(e *RemoteEngine) {
		e.log = logger
	}
}

func WithPingInterval(d time.Duration) RemoteOption {
	return func(e *RemoteEngine) {
		e.pingInterval = d
	}
}

// RemoteEngine drives a measurement running in an external service reached
// over a websocket. Events read from the service are dispatched to the
// callbacks from a single goroutine.
type RemoteEngine struct {
	url          string
	cfg          Config
	callbacks    Callbacks
	log          *logrus.Logger
	pingInterval time.Duration
	writeTimeout time.Duration

	mu           sync.Mutex
	conn         *websocket.Conn
	state        string
	faceInCircle bool
	disposed     bool
	startFailed  bool

	writeMu    sync.Mutex
	dispatchMu sync.Mutex
	started    chan error
	startOnce  sync.Once
	done       chan struct{}
	disposeOne sync.Once
}

func NewRemoteEngine(cfg Config, callbacks Callbacks, opts ...RemoteOption) *RemoteEngine {
	url := os.Getenv("AI_FACE_MEASUREMENT_URL")
	if url == "" {
		url = defaultServiceURL
	}

	e := &RemoteEngine{
		url:          url,
		cfg:          cfg,
		callbacks:    callbacks,
		log:          logrus.StandardLogger(),
		pingInterval: 30 * time.Second,
		writeTimeout: 5 * time.Second,
		state:        "idle",
		started:      make(chan error, 1),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewRemoteFactory returns a Factory building RemoteEngines with the given options.
func NewRemoteFactory(opts ...RemoteOption) Factory {
	return func(cfg Config, callbacks Callbacks) (Engine, error) {
		return NewRemoteEngine(cfg, callbacks, opts...), nil
	}
}

func (e *RemoteEngine) InitializeAndStart(ctx context.Context) error {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return ErrEngineDisposed
	}
	e.mu.Unlock()

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	e.log.WithFields(logrus.Fields{
		"url": e.url,
	}).Info("Connecting to face measurement service")

	conn, _, err := dialer.DialContext(ctx, e.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", e.url, err)
	}

	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		conn.Close()
		return ErrEngineDisposed
	}
	e.conn = conn
	e.mu.Unlock()

	conn.SetPingHandler(func(appData string) error {
		if err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(e.writeTimeout)); err != nil {
			e.log.Warnf("Error sending pong: %v", err)
		}
		return nil
	})

	cfg := e.cfg
	if err := e.writeJSON(ServiceMessage{Type: MessageInit, Config: &cfg}); err != nil {
		e.abortStart(conn)
		return fmt.Errorf("error sending init message: %w", err)
	}

	go e.readLoop(conn)

	select {
	case err := <-e.started:
		if err != nil {
			e.abortStart(conn)
			return err
		}
	case <-ctx.Done():
		e.abortStart(conn)
		return ctx.Err()
	case <-e.done:
		return ErrEngineDisposed
	}

	go e.keepAlive(conn)

	return nil
}

func (e *RemoteEngine) PushFrame(frame []byte) error {
	e.mu.Lock()
	conn := e.conn
	disposed := e.disposed
	e.mu.Unlock()

	if disposed {
		return ErrEngineDisposed
	}
	if conn == nil {
		return ErrNotConnected
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(e.writeTimeout))
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("error sending frame: %w", err)
	}
	conn.SetWriteDeadline(time.Time{})

	return nil
}

// Dispose closes the service connection. It is safe to call more than once
// and no callback runs after it returns.
func (e *RemoteEngine) Dispose() {
	e.disposeOne.Do(func() {
		e.dispatchMu.Lock()
		defer e.dispatchMu.Unlock()

		e.mu.Lock()
		e.disposed = true
		conn := e.conn
		e.conn = nil
		e.mu.Unlock()

		close(e.done)
		if conn != nil {
			e.writeMu.Lock()
			conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "disposed"),
				time.Now().Add(e.writeTimeout),
			)
			e.writeMu.Unlock()
			conn.Close()
		}
		e.log.Info("Face measurement engine disposed")
	})
}

func (e *RemoteEngine) GetCurrentState() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *RemoteEngine) IsFaceInsideCircle() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.faceInCircle
}

// abortStart releases the connection of a start that did not succeed. The
// engine emits no callback afterwards.
func (e *RemoteEngine) abortStart(conn *websocket.Conn) {
	e.mu.Lock()
	e.startFailed = true
	if e.conn == conn {
		e.conn = nil
	}
	e.mu.Unlock()

	conn.Close()
	e.log.Warn("Face measurement engine start aborted, connection released")
}

// stopped reports whether events must no longer reach the callbacks.
func (e *RemoteEngine) stopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disposed || e.startFailed
}

func (e *RemoteEngine) writeJSON(msg ServiceMessage) error {
	e.mu.Lock()
	conn := e.conn
	e.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(e.writeTimeout))
	defer conn.SetWriteDeadline(time.Time{})
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (e *RemoteEngine) readLoop(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if e.stopped() {
				return
			}
			e.log.Warnf("Face measurement service connection lost: %v", err)
			if e.signalStarted(fmt.Errorf("error reading from face measurement service: %w", err)) {
				return
			}
			e.dispatch(ServiceMessage{
				Type:  MessageError,
				Error: &ErrorInfo{Type: "connection", Message: "connection to measurement service lost"},
			})
			return
		}

		var msg ServiceMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			e.log.Warnf("Error unmarshaling service message: %v", err)
			continue
		}

		switch msg.Type {
		case MessageStarted:
			e.signalStarted(nil)
		case MessageInitFailed:
			info := ErrorInfo{Type: "init", Message: "initialization failed"}
			if msg.Error != nil {
				info = *msg.Error
			}
			e.mu.Lock()
			e.startFailed = true
			e.mu.Unlock()
			e.signalStarted(info)
			return
		default:
			e.dispatch(msg)
		}
	}
}

// signalStarted reports the outcome of initialization. It returns true only
// for the call that delivered it.
func (e *RemoteEngine) signalStarted(err error) bool {
	delivered := false
	e.startOnce.Do(func() {
		e.started <- err
		delivered = true
	})
	return delivered
}

func (e *RemoteEngine) dispatch(msg ServiceMessage) {
	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()

	e.mu.Lock()
	if e.disposed || e.startFailed {
		e.mu.Unlock()
		return
	}
	switch msg.Type {
	case MessageState:
		e.state = msg.NewState
	case MessageFacePosition:
		e.faceInCircle = msg.InCircle
	case MessageFaceDetection:
		if !msg.Detected {
			e.faceInCircle = false
		}
	}
	e.mu.Unlock()

	cb := e.callbacks
	switch msg.Type {
	case MessageState:
		if cb.OnStateChange != nil {
			cb.OnStateChange(msg.NewState, msg.PreviousState)
		}
	case MessageProgress:
		if cb.OnProgress != nil {
			cb.OnProgress(msg.Progress, msg.DataLength)
		}
	case MessageFaceDetection:
		if cb.OnFaceDetectionChange != nil {
			cb.OnFaceDetectionChange(msg.Detected, msg.BoundingBox)
		}
	case MessageFacePosition:
		if cb.OnFacePositionChange != nil {
			cb.OnFacePositionChange(msg.InCircle)
		}
	case MessageCountdown:
		if cb.OnCountdown != nil {
			cb.OnCountdown(msg.Remaining, msg.Total)
		}
	case MessageComplete:
		if cb.OnMeasurementComplete != nil {
			cb.OnMeasurementComplete(msg.Result)
		}
	case MessageError:
		if cb.OnError != nil {
			info := ErrorInfo{Type: "unknown", Message: "unknown error"}
			if msg.Error != nil {
				info = *msg.Error
			}
			cb.OnError(info)
		}
	default:
		e.log.Warnf("Received unexpected service message type: %s", msg.Type)
	}
}

func (e *RemoteEngine) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(e.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-ticker.C:
			err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(e.writeTimeout))
			if err != nil {
				e.log.Warnf("Ping failed for face measurement service: %v", err)
				return
			}
		}
	}
}
