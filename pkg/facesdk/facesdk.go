package facesdk

import "context"

type Platform struct {
	IsIOS     bool `json:"isIOS"`
	IsAndroid bool `json:"isAndroid"`
}

type Debug struct {
	EnableConsoleLog bool `json:"enableConsoleLog"`
}

type DataDownload struct {
	Enabled      bool   `json:"enabled"`
	AutoDownload bool   `json:"autoDownload"`
	Filename     string `json:"filename"`
}

// Surface references an element on the client page. The engine may draw on it
// or restyle it for its whole lifetime.
type Surface struct {
	Selector string `json:"selector"`
	Kind     string `json:"kind"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Hidden   bool   `json:"hidden,omitempty"`
}

type Elements struct {
	Video         Surface `json:"video"`
	CanvasElement Surface `json:"canvasElement"`
	VideoCanvas   Surface `json:"videoCanvas"`
	Container     Surface `json:"container"`
}

type Measurement struct {
	ReadyToMeasuringDelay int `json:"readyToMeasuringDelay"`
}

// Config is handed to the engine once at construction and never changed
// afterwards.
type Config struct {
	Platform     Platform     `json:"platform"`
	Debug        Debug        `json:"debug"`
	DataDownload DataDownload `json:"dataDownload"`
	Elements     Elements     `json:"elements"`
	Measurement  Measurement  `json:"measurement"`
}

type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Result is the opaque measurement payload produced by the engine.
type Result map[string]interface{}

type ErrorInfo struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e ErrorInfo) Error() string {
	return e.Type + ": " + e.Message
}

// Callbacks is the table of handlers an engine invokes. Any field may be nil.
type Callbacks struct {
	OnStateChange         func(newState, previousState string)
	OnMeasurementComplete func(result Result)
	OnProgress            func(progress float64, dataLength int)
	OnFaceDetectionChange func(detected bool, boundingBox *BoundingBox)
	OnFacePositionChange  func(isInCircle bool)
	OnError               func(err ErrorInfo)
	OnCountdown           func(remainingSeconds, totalSeconds float64)
}

type Engine interface {
	// InitializeAndStart blocks until the engine is measuring or has failed.
	InitializeAndStart(ctx context.Context) error
	Dispose()
	GetCurrentState() string
	IsFaceInsideCircle() bool
}

// FrameConsumer is implemented by engines that take camera frames pushed by
// the page instead of reading the video surface themselves.
type FrameConsumer interface {
	PushFrame(frame []byte) error
}

type Factory func(cfg Config, callbacks Callbacks) (Engine, error)
