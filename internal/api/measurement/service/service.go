package measurementService

import (
	"context"
	"facemeasure/internal/api/measurement"
	"facemeasure/pkg/facesdk"
	"facemeasure/pkg/utils"
	"sync"

	"github.com/sirupsen/logrus"
)

type IMeasurementService interface {
	Open(ctx context.Context, req measurement.LoadRequest, sink FeedbackSink) (*Session, error)
	Get(id string) (*Session, error)
	List() []string
	Dispose(id string) error
}

type measurementService struct {
	log     *logrus.Logger
	factory facesdk.Factory
	utils   utils.IUtils
	opts    Options

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMeasurementService(
	log *logrus.Logger,
	factory facesdk.Factory,
	utils utils.IUtils,
	opts Options,
) IMeasurementService {
	return &measurementService{
		log:      log,
		factory:  factory,
		utils:    utils,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}
