package measurementService

import (
	"facemeasure/pkg/facesdk"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		progress float64
		want     int
	}{
		{0, 0},
		{0.5, 50},
		{0.873, 87},
		{0.876, 88},
		{0.999, 100},
		{1, 100},
		{-0.2, 0},
		{1.4, 100},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ProgressPercent(tt.progress), "progress %v", tt.progress)
	}

	assert.Equal(t, "Measuring... 87%", MeasuringText(0.873))
}

func TestReduce_FaceLostAlwaysWins(t *testing.T) {
	previous := []UIFeedbackState{
		{},
		{Phase: PhasePresentCentered, Border: BorderGood, GuideText: TextHoldStill},
		{Phase: PhasePresentUncentered, Border: BorderAlert, GuideText: TextCenterFace},
		{Phase: PhaseError, Border: BorderAlert, GuideText: ErrorText("camera")},
		{Phase: PhasePresentCentered, Border: BorderGood, GuideText: MeasuringText(0.4)},
	}

	for _, state := range previous {
		got := Reduce(state, FaceDetectionChanged{Detected: false})
		assert.Equal(t, UIFeedbackState{Phase: PhaseAbsent, Border: BorderAlert, GuideText: TextPositionFace}, got)
	}
}

func TestReduce_FaceDetectedKeepsUI(t *testing.T) {
	absent := UIFeedbackState{Phase: PhaseAbsent, Border: BorderAlert, GuideText: TextPositionFace}

	got := Reduce(absent, FaceDetectionChanged{Detected: true, BoundingBox: &facesdk.BoundingBox{Width: 10}})
	assert.Equal(t, PhasePresentUncentered, got.Phase)
	assert.Equal(t, absent.Border, got.Border)
	assert.Equal(t, absent.GuideText, got.GuideText)

	centered := UIFeedbackState{Phase: PhasePresentCentered, Border: BorderGood, GuideText: TextHoldStill}
	assert.Equal(t, centered, Reduce(centered, FaceDetectionChanged{Detected: true}))
}

func TestReduce_Position(t *testing.T) {
	state := Reduce(UIFeedbackState{}, FacePositionChanged{InCircle: true})
	assert.Equal(t, UIFeedbackState{Phase: PhasePresentCentered, Border: BorderGood, GuideText: TextHoldStill}, state)

	state = Reduce(state, FacePositionChanged{InCircle: false})
	assert.Equal(t, UIFeedbackState{Phase: PhasePresentUncentered, Border: BorderAlert, GuideText: TextCenterFace}, state)
}

func TestReduce_StalePositionAfterFaceLost(t *testing.T) {
	state := Reduce(UIFeedbackState{}, FacePositionChanged{InCircle: true})
	state = Reduce(state, FaceDetectionChanged{Detected: false})
	state = Reduce(state, FacePositionChanged{InCircle: true})

	assert.Equal(t, PhaseAbsent, state.Phase)
	assert.Equal(t, BorderAlert, state.Border)
	assert.Equal(t, TextPositionFace, state.GuideText)
}

func TestReduce_ProgressKeepsBorder(t *testing.T) {
	centered := UIFeedbackState{Phase: PhasePresentCentered, Border: BorderGood, GuideText: TextHoldStill}

	got := Reduce(centered, ProgressUpdated{Progress: 0.5, DataLength: 150})
	assert.Equal(t, BorderGood, got.Border)
	assert.Equal(t, PhasePresentCentered, got.Phase)
	assert.Equal(t, "Measuring... 50%", got.GuideText)
}

func TestReduce_Error(t *testing.T) {
	centered := UIFeedbackState{Phase: PhasePresentCentered, Border: BorderGood, GuideText: TextHoldStill}

	got := Reduce(centered, ErrorRaised{Error: facesdk.ErrorInfo{Type: "camera", Message: "camera unavailable"}})
	assert.Equal(t, UIFeedbackState{Phase: PhaseError, Border: BorderAlert, GuideText: "Error: camera unavailable"}, got)
}

func TestReduce_InertEvents(t *testing.T) {
	state := UIFeedbackState{Phase: PhasePresentCentered, Border: BorderGood, GuideText: TextHoldStill}

	assert.Equal(t, state, Reduce(state, CountdownTicked{Remaining: 3, Total: 5}))
	assert.Equal(t, state, Reduce(state, StateChanged{NewState: "measuring", PreviousState: "ready"}))
	assert.Equal(t, state, Reduce(state, MeasurementCompleted{Result: facesdk.Result{"bpm": 72}}))
}

func TestReduce_Initialization(t *testing.T) {
	state := Reduce(UIFeedbackState{}, InitializationStarted{})
	assert.Equal(t, TextInitializing, state.GuideText)
	assert.Empty(t, state.Border)

	state = Reduce(state, InitializationFailed{})
	assert.Equal(t, TextInitFailed, state.GuideText)
	assert.Equal(t, PhaseError, state.Phase)
}

func TestFeedbackController_Scenario(t *testing.T) {
	sink := &recordingSink{}
	controller := NewFeedbackController(testEntry(), sink, true)
	cb := controller.Callbacks()

	cb.OnFaceDetectionChange(false, nil)
	assert.Equal(t, BorderAlert, sink.last().Border)
	assert.Equal(t, TextPositionFace, sink.last().GuideText)

	cb.OnFaceDetectionChange(true, &facesdk.BoundingBox{X: 1, Y: 2, Width: 3, Height: 4})
	cb.OnFacePositionChange(true)
	assert.Equal(t, BorderGood, sink.last().Border)
	assert.Equal(t, TextHoldStill, sink.last().GuideText)

	cb.OnProgress(0.5, 150)
	assert.Equal(t, BorderGood, sink.last().Border)
	assert.Equal(t, "Measuring... 50%", sink.last().GuideText)

	cb.OnCountdown(2, 5)
	cb.OnStateChange("measuring", "ready")
	cb.OnMeasurementComplete(facesdk.Result{"heart_rate": 71.0})

	require.Len(t, sink.results, 1)
	assert.Equal(t, 71.0, sink.results[0]["heart_rate"])

	assert.Equal(t, sink.last(), controller.State())
}

func TestFeedbackController_PublishesOnlyChanges(t *testing.T) {
	sink := &recordingSink{}
	controller := NewFeedbackController(testEntry(), sink, true)

	controller.Handle(FacePositionChanged{InCircle: true})
	controller.Handle(FacePositionChanged{InCircle: true})
	controller.Handle(CountdownTicked{Remaining: 1, Total: 5})
	controller.Handle(FaceDetectionChanged{Detected: true})

	assert.Len(t, sink.published(), 1)
}

func TestFeedbackController_Detach(t *testing.T) {
	sink := &recordingSink{}
	controller := NewFeedbackController(testEntry(), sink, true)

	controller.Handle(FaceDetectionChanged{Detected: false})
	controller.Detach()
	controller.Handle(FacePositionChanged{InCircle: true})
	controller.Callbacks().OnError(facesdk.ErrorInfo{Type: "x", Message: "late"})

	require.Len(t, sink.published(), 1)
	assert.Equal(t, PhaseAbsent, controller.State().Phase)
}

func TestFeedbackController_WithoutGuideText(t *testing.T) {
	sink := &recordingSink{}
	controller := NewFeedbackController(testEntry(), sink, false)

	controller.Handle(FacePositionChanged{InCircle: true})
	controller.Handle(ProgressUpdated{Progress: 0.3})

	state := controller.State()
	assert.Equal(t, BorderGood, state.Border)
	assert.Empty(t, state.GuideText)
	assert.Len(t, sink.published(), 1)
}
