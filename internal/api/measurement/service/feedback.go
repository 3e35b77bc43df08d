package measurementService

import (
	"facemeasure/internal/api/measurement"
	"facemeasure/pkg/facesdk"
	"facemeasure/pkg/log"
	"facemeasure/pkg/metrics"
	"fmt"
	"math"
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	BorderAlert = "8px solid #ff4444"
	BorderGood  = "8px solid #44ff44"

	TextPositionFace = "Please position your face in the frame"
	TextHoldStill    = "Great! Please hold still"
	TextCenterFace   = "Please center your face in the circle"
	TextInitializing = "Initializing..."
	TextInitFailed   = "Initialization failed. Please reload the page."
)

type FeedbackPhase uint8

const (
	PhaseUnknown FeedbackPhase = iota
	PhaseAbsent
	PhasePresentUncentered
	PhasePresentCentered
	PhaseError
)

var FeedbackPhaseMap = map[FeedbackPhase]string{
	PhaseUnknown:           "unknown",
	PhaseAbsent:            "absent",
	PhasePresentUncentered: "present_uncentered",
	PhasePresentCentered:   "present_centered",
	PhaseError:             "error",
}

func (p FeedbackPhase) String() string {
	return FeedbackPhaseMap[p]
}

// UIFeedbackState is everything the page shows about the measurement: the
// container border and the guide text.
type UIFeedbackState struct {
	Phase     FeedbackPhase
	Border    string
	GuideText string
}

func (s UIFeedbackState) Payload() measurement.FeedbackPayload {
	return measurement.FeedbackPayload{
		Phase:     s.Phase.String(),
		Border:    s.Border,
		GuideText: s.GuideText,
	}
}

type Event interface {
	EventName() string
}

type StateChanged struct {
	NewState      string
	PreviousState string
}

type MeasurementCompleted struct {
	Result facesdk.Result
}

type ProgressUpdated struct {
	Progress   float64
	DataLength int
}

type FaceDetectionChanged struct {
	Detected    bool
	BoundingBox *facesdk.BoundingBox
}

type FacePositionChanged struct {
	InCircle bool
}

type ErrorRaised struct {
	Error facesdk.ErrorInfo
}

type CountdownTicked struct {
	Remaining float64
	Total     float64
}

type InitializationStarted struct{}

type InitializationFailed struct {
	Err error
}

func (StateChanged) EventName() string          { return "state_change" }
func (MeasurementCompleted) EventName() string  { return "measurement_complete" }
func (ProgressUpdated) EventName() string       { return "progress" }
func (FaceDetectionChanged) EventName() string  { return "face_detection_change" }
func (FacePositionChanged) EventName() string   { return "face_position_change" }
func (ErrorRaised) EventName() string           { return "error" }
func (CountdownTicked) EventName() string       { return "countdown" }
func (InitializationStarted) EventName() string { return "initialization_started" }
func (InitializationFailed) EventName() string  { return "initialization_failed" }

// ProgressPercent converts a progress fraction into a whole percentage.
func ProgressPercent(progress float64) int {
	if math.IsNaN(progress) || progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	return int(math.Round(progress * 100))
}

func MeasuringText(progress float64) string {
	return fmt.Sprintf("Measuring... %d%%", ProgressPercent(progress))
}

func ErrorText(message string) string {
	return "Error: " + message
}

// Reduce applies one engine event to the feedback state.
func Reduce(state UIFeedbackState, ev Event) UIFeedbackState {
	switch e := ev.(type) {
	case FaceDetectionChanged:
		if !e.Detected {
			return UIFeedbackState{Phase: PhaseAbsent, Border: BorderAlert, GuideText: TextPositionFace}
		}
		if state.Phase == PhaseAbsent || state.Phase == PhaseUnknown {
			state.Phase = PhasePresentUncentered
		}
		return state

	case FacePositionChanged:
		// Position is only meaningful while a face is detected; a late
		// position event must not hide a detection loss.
		if state.Phase == PhaseAbsent {
			return state
		}
		if e.InCircle {
			return UIFeedbackState{Phase: PhasePresentCentered, Border: BorderGood, GuideText: TextHoldStill}
		}
		return UIFeedbackState{Phase: PhasePresentUncentered, Border: BorderAlert, GuideText: TextCenterFace}

	case ProgressUpdated:
		state.GuideText = MeasuringText(e.Progress)
		return state

	case ErrorRaised:
		return UIFeedbackState{Phase: PhaseError, Border: BorderAlert, GuideText: ErrorText(e.Error.Message)}

	case InitializationStarted:
		state.GuideText = TextInitializing
		return state

	case InitializationFailed:
		state.Phase = PhaseError
		state.GuideText = TextInitFailed
		return state

	default:
		return state
	}
}

type FeedbackSink interface {
	PublishFeedback(state UIFeedbackState) error
	PublishResult(result facesdk.Result) error
}

// FeedbackController serializes engine events through Reduce and forwards
// every state change to the page. publishMu orders events and sink writes;
// mu only guards the state, so readers never wait on the page socket.
type FeedbackController struct {
	publishMu    sync.Mutex
	mu           sync.Mutex
	state        UIFeedbackState
	sink         FeedbackSink
	log          *logrus.Entry
	hasGuideText bool
	detached     bool
}

func NewFeedbackController(logger *logrus.Entry, sink FeedbackSink, hasGuideText bool) *FeedbackController {
	return &FeedbackController{
		sink:         sink,
		log:          logger,
		hasGuideText: hasGuideText,
	}
}

func (c *FeedbackController) Handle(ev Event) {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	c.mu.Lock()
	if c.detached {
		c.mu.Unlock()
		return
	}
	prev := c.state
	next := Reduce(prev, ev)
	if !c.hasGuideText {
		next.GuideText = prev.GuideText
	}
	c.state = next
	c.mu.Unlock()

	metrics.RecordFeedbackEvent(ev.EventName())
	c.logEvent(ev)

	if done, ok := ev.(MeasurementCompleted); ok {
		if err := c.sink.PublishResult(done.Result); err != nil {
			c.log.WithFields(log.Fields{
				"error": err.Error(),
			}).Warn("Failed to publish measurement result")
		}
	}

	if next == prev {
		return
	}

	if err := c.sink.PublishFeedback(next); err != nil {
		c.log.WithFields(log.Fields{
			"error": err.Error(),
			"event": ev.EventName(),
		}).Warn("Failed to publish feedback")
	}
}

func (c *FeedbackController) State() UIFeedbackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Detach drops every event handled afterwards.
func (c *FeedbackController) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detached = true
}

// Callbacks exposes the controller in the shape the engine expects.
func (c *FeedbackController) Callbacks() facesdk.Callbacks {
	return facesdk.Callbacks{
		OnStateChange: func(newState, previousState string) {
			c.Handle(StateChanged{NewState: newState, PreviousState: previousState})
		},
		OnMeasurementComplete: func(result facesdk.Result) {
			c.Handle(MeasurementCompleted{Result: result})
		},
		OnProgress: func(progress float64, dataLength int) {
			c.Handle(ProgressUpdated{Progress: progress, DataLength: dataLength})
		},
		OnFaceDetectionChange: func(detected bool, boundingBox *facesdk.BoundingBox) {
			c.Handle(FaceDetectionChanged{Detected: detected, BoundingBox: boundingBox})
		},
		OnFacePositionChange: func(isInCircle bool) {
			c.Handle(FacePositionChanged{InCircle: isInCircle})
		},
		OnError: func(err facesdk.ErrorInfo) {
			c.Handle(ErrorRaised{Error: err})
		},
		OnCountdown: func(remainingSeconds, totalSeconds float64) {
			c.Handle(CountdownTicked{Remaining: remainingSeconds, Total: totalSeconds})
		},
	}
}

func (c *FeedbackController) logEvent(ev Event) {
	switch e := ev.(type) {
	case StateChanged:
		c.log.WithFields(log.Fields{
			"previous_state": e.PreviousState,
			"new_state":      e.NewState,
		}).Info("Engine state changed")
	case MeasurementCompleted:
		c.log.WithFields(log.Fields{
			"result": e.Result,
		}).Info("Measurement complete")
	case ProgressUpdated:
		c.log.WithFields(log.Fields{
			"progress":    ProgressPercent(e.Progress),
			"data_length": e.DataLength,
		}).Debug("Measurement progress")
	case FaceDetectionChanged:
		c.log.WithFields(log.Fields{
			"detected":     e.Detected,
			"bounding_box": e.BoundingBox,
		}).Debug("Face detection changed")
	case FacePositionChanged:
		c.log.WithFields(log.Fields{
			"in_circle": e.InCircle,
		}).Debug("Face position changed")
	case ErrorRaised:
		c.log.WithFields(log.Fields{
			"type":    e.Error.Type,
			"message": e.Error.Message,
		}).Error("Engine reported an error")
	case CountdownTicked:
		c.log.WithFields(log.Fields{
			"remaining": e.Remaining,
			"total":     e.Total,
		}).Debug("Countdown")
	}
}
