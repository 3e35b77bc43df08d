package facesdk

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// newServiceStub starts a fake measurement service running script on each
// connection, then holds the connection open until the client goes away.
func newServiceStub(t *testing.T, script func(t *testing.T, conn *websocket.Conn)) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		script(t, conn)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func readInit(t *testing.T, conn *websocket.Conn) ServiceMessage {
	var msg ServiceMessage
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Errorf("reading init message: %v", err)
		return msg
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Errorf("decoding init message: %v", err)
	}
	return msg
}

func send(t *testing.T, conn *websocket.Conn, msg ServiceMessage) {
	if err := conn.WriteJSON(msg); err != nil {
		t.Errorf("writing %s message: %v", msg.Type, err)
	}
}

func testConfig() Config {
	return Config{
		Platform: Platform{IsAndroid: true},
		DataDownload: DataDownload{
			Filename: "face_detection_rgb_data.txt",
		},
		Elements: Elements{
			VideoCanvas: Surface{Selector: "video_canvas", Width: 640, Height: 480, Hidden: true},
		},
		Measurement: Measurement{ReadyToMeasuringDelay: 5},
	}
}

func TestRemoteEngine_EventsReachCallbacks(t *testing.T) {
	initSeen := make(chan ServiceMessage, 1)
	url := newServiceStub(t, func(t *testing.T, conn *websocket.Conn) {
		initSeen <- readInit(t, conn)
		send(t, conn, ServiceMessage{Type: MessageStarted})
		send(t, conn, ServiceMessage{Type: MessageState, NewState: "detecting", PreviousState: "idle"})
		send(t, conn, ServiceMessage{Type: MessageFaceDetection, Detected: false})
		send(t, conn, ServiceMessage{Type: MessageFaceDetection, Detected: true, BoundingBox: &BoundingBox{X: 10, Y: 20, Width: 30, Height: 40}})
		send(t, conn, ServiceMessage{Type: MessageFacePosition, InCircle: true})
		send(t, conn, ServiceMessage{Type: MessageCountdown, Remaining: 3, Total: 5})
		send(t, conn, ServiceMessage{Type: MessageProgress, Progress: 0.5, DataLength: 150})
		send(t, conn, ServiceMessage{Type: MessageError, Error: &ErrorInfo{Type: "signal", Message: "too dark"}})
		send(t, conn, ServiceMessage{Type: MessageComplete, Result: Result{"heart_rate": 72.0}})
	})

	events := make(chan string, 16)
	callbacks := Callbacks{
		OnStateChange: func(newState, previousState string) {
			events <- "state:" + previousState + "->" + newState
		},
		OnFaceDetectionChange: func(detected bool, box *BoundingBox) {
			if detected && box != nil {
				events <- "detected"
				return
			}
			events <- "lost"
		},
		OnFacePositionChange: func(inCircle bool) {
			if inCircle {
				events <- "in_circle"
			}
		},
		OnCountdown: func(remaining, total float64) {
			events <- "countdown"
		},
		OnProgress: func(progress float64, dataLength int) {
			if progress == 0.5 && dataLength == 150 {
				events <- "progress"
			}
		},
		OnError: func(err ErrorInfo) {
			events <- "error:" + err.Message
		},
		OnMeasurementComplete: func(result Result) {
			if result["heart_rate"] == 72.0 {
				events <- "complete"
			}
		},
	}

	engine := NewRemoteEngine(testConfig(), callbacks, WithServiceURL(url), WithLogger(quietLogger()))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, engine.InitializeAndStart(ctx))

	init := <-initSeen
	assert.Equal(t, MessageInit, init.Type)
	require.NotNil(t, init.Config)
	assert.True(t, init.Config.Platform.IsAndroid)
	assert.Equal(t, 640, init.Config.Elements.VideoCanvas.Width)

	want := []string{
		"state:idle->detecting",
		"lost",
		"detected",
		"in_circle",
		"countdown",
		"progress",
		"error:too dark",
		"complete",
	}
	for _, w := range want {
		select {
		case got := <-events:
			assert.Equal(t, w, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", w)
		}
	}

	assert.Equal(t, "detecting", engine.GetCurrentState())
	assert.True(t, engine.IsFaceInsideCircle())

	engine.Dispose()
	engine.Dispose()
	assert.ErrorIs(t, engine.PushFrame([]byte{1}), ErrEngineDisposed)
}

func TestRemoteEngine_InitFailed(t *testing.T) {
	url := newServiceStub(t, func(t *testing.T, conn *websocket.Conn) {
		readInit(t, conn)
		send(t, conn, ServiceMessage{Type: MessageInitFailed, Error: &ErrorInfo{Type: "camera", Message: "no camera"}})
	})

	engine := NewRemoteEngine(testConfig(), Callbacks{}, WithServiceURL(url), WithLogger(quietLogger()))
	defer engine.Dispose()

	err := engine.InitializeAndStart(context.Background())
	require.Error(t, err)

	var info ErrorInfo
	require.True(t, errors.As(err, &info))
	assert.Equal(t, "camera", info.Type)
	assert.Equal(t, "no camera", info.Message)
}

func TestRemoteEngine_StartTimeout(t *testing.T) {
	url := newServiceStub(t, func(t *testing.T, conn *websocket.Conn) {
		readInit(t, conn)
	})

	engine := NewRemoteEngine(testConfig(), Callbacks{}, WithServiceURL(url), WithLogger(quietLogger()))
	defer engine.Dispose()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := engine.InitializeAndStart(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRemoteEngine_DisposedBeforeStart(t *testing.T) {
	engine := NewRemoteEngine(testConfig(), Callbacks{}, WithServiceURL("ws://127.0.0.1:1/unused"), WithLogger(quietLogger()))
	engine.Dispose()

	assert.ErrorIs(t, engine.InitializeAndStart(context.Background()), ErrEngineDisposed)
}

func TestRemoteEngine_PushFrame(t *testing.T) {
	frames := make(chan []byte, 1)
	url := newServiceStub(t, func(t *testing.T, conn *websocket.Conn) {
		readInit(t, conn)
		send(t, conn, ServiceMessage{Type: MessageStarted})

		messageType, data, err := conn.ReadMessage()
		if err != nil {
			t.Errorf("reading frame: %v", err)
			return
		}
		if messageType == websocket.BinaryMessage {
			frames <- data
		}
	})

	engine := NewRemoteEngine(testConfig(), Callbacks{}, WithServiceURL(url), WithLogger(quietLogger()))
	defer engine.Dispose()

	assert.ErrorIs(t, engine.PushFrame([]byte{0}), ErrNotConnected)

	require.NoError(t, engine.InitializeAndStart(context.Background()))
	require.NoError(t, engine.PushFrame([]byte{0xff, 0xd8, 0xff}))

	select {
	case got := <-frames:
		assert.Equal(t, []byte{0xff, 0xd8, 0xff}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("frame never reached the service")
	}
}

func TestRemoteEngine_ServiceURLFromEnv(t *testing.T) {
	t.Setenv("AI_FACE_MEASUREMENT_URL", "ws://measure.internal/ws")
	engine := NewRemoteEngine(testConfig(), Callbacks{})
	assert.Equal(t, "ws://measure.internal/ws", engine.url)

	t.Setenv("AI_FACE_MEASUREMENT_URL", "")
	engine = NewRemoteEngine(testConfig(), Callbacks{}, WithPingInterval(time.Second))
	assert.Equal(t, defaultServiceURL, engine.url)
	assert.Equal(t, time.Second, engine.pingInterval)
}

// countingCallbacks counts every callback the engine invokes.
func countingCallbacks(count *atomic.Int32) Callbacks {
	inc := func() { count.Add(1) }
	return Callbacks{
		OnStateChange:         func(string, string) { inc() },
		OnMeasurementComplete: func(Result) { inc() },
		OnProgress:            func(float64, int) { inc() },
		OnFaceDetectionChange: func(bool, *BoundingBox) { inc() },
		OnFacePositionChange:  func(bool) { inc() },
		OnError:               func(ErrorInfo) { inc() },
		OnCountdown:           func(float64, float64) { inc() },
	}
}

func TestRemoteEngine_FailedStartReleasesConnection(t *testing.T) {
	released := make(chan struct{})
	url := newServiceStub(t, func(t *testing.T, conn *websocket.Conn) {
		readInit(t, conn)
		send(t, conn, ServiceMessage{Type: MessageInitFailed, Error: &ErrorInfo{Type: "camera", Message: "no camera"}})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				close(released)
				return
			}
		}
	})

	engine := NewRemoteEngine(testConfig(), Callbacks{}, WithServiceURL(url), WithLogger(quietLogger()))
	require.Error(t, engine.InitializeAndStart(context.Background()))

	select {
	case <-released:
	case <-time.After(2 * time.Second):
		t.Fatal("connection was kept open after a failed start")
	}
	assert.ErrorIs(t, engine.PushFrame([]byte{1}), ErrNotConnected)
}

func TestRemoteEngine_NoCallbacksAfterFailedStart(t *testing.T) {
	tests := []struct {
		name    string
		reject  bool
		timeout time.Duration
	}{
		{name: "service rejects init", reject: true, timeout: 5 * time.Second},
		{name: "start times out", reject: false, timeout: 100 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proceed := make(chan struct{})
			url := newServiceStub(t, func(t *testing.T, conn *websocket.Conn) {
				readInit(t, conn)
				if tt.reject {
					send(t, conn, ServiceMessage{Type: MessageInitFailed, Error: &ErrorInfo{Type: "camera", Message: "no camera"}})
				}
				<-proceed

				// The client may already be gone, so write errors are expected.
				_ = conn.WriteJSON(ServiceMessage{Type: MessageFaceDetection, Detected: false})
				_ = conn.WriteJSON(ServiceMessage{Type: MessageState, NewState: "detecting", PreviousState: "idle"})
				conn.Close()
			})

			var count atomic.Int32
			engine := NewRemoteEngine(testConfig(), countingCallbacks(&count), WithServiceURL(url), WithLogger(quietLogger()))
			defer engine.Dispose()

			ctx, cancel := context.WithTimeout(context.Background(), tt.timeout)
			defer cancel()

			require.Error(t, engine.InitializeAndStart(ctx))
			close(proceed)

			assert.Never(t, func() bool {
				return count.Load() > 0
			}, 300*time.Millisecond, 10*time.Millisecond)
		})
	}
}
