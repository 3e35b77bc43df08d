package measurementService

import (
	"context"
	"facemeasure/pkg/facesdk"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testEntry() *logrus.Entry {
	return logrus.NewEntry(testLogger())
}

type recordingSink struct {
	mu      sync.Mutex
	states  []UIFeedbackState
	results []facesdk.Result
}

func (s *recordingSink) PublishFeedback(state UIFeedbackState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, state)
	return nil
}

func (s *recordingSink) PublishResult(result facesdk.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	return nil
}

func (s *recordingSink) published() []UIFeedbackState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]UIFeedbackState, len(s.states))
	copy(out, s.states)
	return out
}

func (s *recordingSink) last() UIFeedbackState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.states) == 0 {
		return UIFeedbackState{}
	}
	return s.states[len(s.states)-1]
}

type fakeEngine struct {
	mu           sync.Mutex
	initErr      error
	block        chan struct{}
	entered      chan struct{}
	initCalls    int
	disposeCalls int
	ctxErr       error
	state        string
	inCircle     bool
}

func (f *fakeEngine) InitializeAndStart(ctx context.Context) error {
	f.mu.Lock()
	f.initCalls++
	block := f.block
	entered := f.entered
	f.mu.Unlock()

	if entered != nil {
		close(entered)
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			f.mu.Lock()
			f.ctxErr = ctx.Err()
			f.mu.Unlock()
			return ctx.Err()
		}
	}
	return f.initErr
}

func (f *fakeEngine) Dispose() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disposeCalls++
}

func (f *fakeEngine) GetCurrentState() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeEngine) IsFaceInsideCircle() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inCircle
}

func (f *fakeEngine) disposed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disposeCalls
}

type frameEngine struct {
	fakeEngine
	frames [][]byte
}

func (f *frameEngine) PushFrame(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame)
	return nil
}
