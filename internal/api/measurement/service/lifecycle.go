package measurementService

import (
	"context"
	"facemeasure/internal/api/measurement"
	"facemeasure/pkg/facesdk"
	"facemeasure/pkg/log"
	"facemeasure/pkg/metrics"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type LifecycleState uint8

const (
	LifecycleUninitialized LifecycleState = iota
	LifecycleInitializing
	LifecycleRunning
	LifecycleInitFailed
	LifecycleDisposed
)

var LifecycleStateMap = map[LifecycleState]string{
	LifecycleUninitialized: "uninitialized",
	LifecycleInitializing:  "initializing",
	LifecycleRunning:       "running",
	LifecycleInitFailed:    "init_failed",
	LifecycleDisposed:      "disposed",
}

func (s LifecycleState) String() string {
	return LifecycleStateMap[s]
}

// Lifecycle sequences engine start-up and guarantees a single teardown.
type Lifecycle struct {
	mu       sync.Mutex
	state    LifecycleState
	engine   facesdk.Engine
	feedback *FeedbackController
	log      *logrus.Entry
	cancel   context.CancelFunc
}

func NewLifecycle(engine facesdk.Engine, feedback *FeedbackController, logger *logrus.Entry) *Lifecycle {
	return &Lifecycle{
		state:    LifecycleUninitialized,
		engine:   engine,
		feedback: feedback,
		log:      logger,
	}
}

func (l *Lifecycle) State() LifecycleState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Start initializes and starts the engine. It blocks until the engine is
// running, has failed, or the lifecycle was disposed in the meantime. A
// failure is shown on the page and never retried.
func (l *Lifecycle) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.state != LifecycleUninitialized {
		state := l.state
		l.mu.Unlock()
		return fmt.Errorf("%w: cannot start from %s", measurement.ErrInvalidLifecycleState, state)
	}
	startCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.transition(LifecycleInitializing)
	l.mu.Unlock()
	defer cancel()

	l.log.Info("Initializing measurement engine")
	l.feedback.Handle(InitializationStarted{})

	started := time.Now()
	err := l.engine.InitializeAndStart(startCtx)
	metrics.RecordInitialization(time.Since(started), err == nil)

	l.mu.Lock()
	if l.state == LifecycleDisposed {
		l.mu.Unlock()
		l.log.Warn("Engine initialization settled after dispose, ignoring result")
		return measurement.ErrDisposedDuringStart
	}

	if err != nil {
		l.transition(LifecycleInitFailed)
		l.mu.Unlock()

		l.log.WithFields(log.Fields{
			"error": err.Error(),
		}).Error("Engine initialization failed")
		// The failure text is final: nothing the engine reports afterwards
		// may replace it.
		l.feedback.Handle(InitializationFailed{Err: err})
		l.feedback.Detach()
		return fmt.Errorf("failed to initialize measurement engine: %w", err)
	}

	l.transition(LifecycleRunning)
	l.mu.Unlock()

	l.log.Info("Measurement engine started")
	return nil
}

// Dispose tears the engine down. It may be called from any state and any
// number of times; only the first call has an effect.
func (l *Lifecycle) Dispose() {
	l.mu.Lock()
	if l.state == LifecycleDisposed {
		l.mu.Unlock()
		return
	}
	previous := l.state
	l.transition(LifecycleDisposed)
	if l.cancel != nil {
		l.cancel()
	}
	l.mu.Unlock()

	l.feedback.Detach()
	l.engine.Dispose()

	l.log.WithFields(log.Fields{
		"previous_state": previous.String(),
	}).Info("Measurement engine disposed")
}

func (l *Lifecycle) transition(next LifecycleState) {
	l.state = next
	metrics.RecordLifecycleTransition(next.String())
}
