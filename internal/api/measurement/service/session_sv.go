package measurementService

import (
	"context"
	"facemeasure/internal/api/measurement"
	contextPkg "facemeasure/pkg/context"
	"facemeasure/pkg/facesdk"
	"facemeasure/pkg/log"
	"facemeasure/pkg/metrics"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Session is one page's measurement run: the engine, its lifecycle and the
// feedback controller writing to the page.
type Session struct {
	id        string
	config    facesdk.Config
	engine    facesdk.Engine
	lifecycle *Lifecycle
	feedback  *FeedbackController
	log       *logrus.Entry

	releaseOnce sync.Once
	release     func()
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Config() facesdk.Config {
	return s.config
}

func (s *Session) Start(ctx context.Context) error {
	return s.lifecycle.Start(ctx)
}

func (s *Session) Dispose() {
	s.lifecycle.Dispose()
	s.releaseOnce.Do(func() {
		if s.release != nil {
			s.release()
		}
	})
}

func (s *Session) PushFrame(frame []byte) error {
	consumer, ok := s.engine.(facesdk.FrameConsumer)
	if !ok {
		return measurement.ErrFrameRelayUnsupported
	}
	return consumer.PushFrame(frame)
}

func (s *Session) Feedback() UIFeedbackState {
	return s.feedback.State()
}

func (s *Session) LifecycleState() LifecycleState {
	return s.lifecycle.State()
}

func (s *Session) Debug() measurement.DebugInfo {
	return measurement.DebugInfo{
		SessionID:    s.id,
		State:        s.engine.GetCurrentState(),
		FaceInCircle: s.engine.IsFaceInsideCircle(),
		Lifecycle:    s.lifecycle.State().String(),
		Feedback:     s.feedback.State().Payload(),
	}
}

func (ms *measurementService) Open(ctx context.Context, req measurement.LoadRequest, sink FeedbackSink) (*Session, error) {
	requestLog := ms.log.WithField("request_id", contextPkg.GetRequestID(ctx))

	platform := DetectPlatform(req.UserAgent)
	requestLog.WithFields(log.Fields{
		"is_ios":     platform.IsIOS,
		"is_android": platform.IsAndroid,
	}).Info("Detected client platform")

	binding, err := BindElements(NewPageDocument(req.Elements))
	if err != nil {
		metrics.SessionOpened("missing_element")
		requestLog.WithFields(log.Fields{
			"error": err.Error(),
		}).Error("Failed to bind page elements")
		return nil, err
	}

	id, err := ms.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		metrics.SessionOpened("error")
		return nil, fmt.Errorf("%w: failed to generate session id: %v", measurement.ErrInternalServerError, err)
	}

	sessionLog := requestLog.WithField("session_id", id)
	feedback := NewFeedbackController(sessionLog, sink, binding.HasGuideText)
	cfg := BuildConfiguration(platform, ms.opts.Debug, ms.opts.DataDownload, binding, ms.opts.ReadyToMeasuringDelay)

	engine, err := ms.factory(cfg, feedback.Callbacks())
	if err != nil {
		metrics.SessionOpened("error")
		sessionLog.WithFields(log.Fields{
			"error": err.Error(),
		}).Error("Failed to construct measurement engine")
		return nil, fmt.Errorf("%w: %v", measurement.ErrEngineConstruction, err)
	}

	session := &Session{
		id:        id,
		config:    cfg,
		engine:    engine,
		lifecycle: NewLifecycle(engine, feedback, sessionLog),
		feedback:  feedback,
		log:       sessionLog,
	}
	session.release = func() {
		ms.mu.Lock()
		delete(ms.sessions, id)
		ms.mu.Unlock()
		metrics.SessionClosed()
	}

	ms.mu.Lock()
	ms.sessions[id] = session
	ms.mu.Unlock()

	metrics.SessionOpened("ok")
	sessionLog.Info("Measurement session opened")

	return session, nil
}

func (ms *measurementService) Get(id string) (*Session, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	session, ok := ms.sessions[id]
	if !ok {
		return nil, measurement.ErrSessionNotFound
	}
	return session, nil
}

func (ms *measurementService) List() []string {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	ids := make([]string, 0, len(ms.sessions))
	for id := range ms.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (ms *measurementService) Dispose(id string) error {
	session, err := ms.Get(id)
	if err != nil {
		return err
	}
	session.Dispose()
	return nil
}
