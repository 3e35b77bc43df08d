package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "facemeasure",
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Current number of open measurement sessions.",
		},
	)

	sessionsOpened = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "facemeasure",
			Subsystem: "sessions",
			Name:      "opened_total",
			Help:      "Total number of session open attempts.",
		},
		[]string{"outcome"},
	)

	feedbackEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "facemeasure",
			Subsystem: "feedback",
			Name:      "events_total",
			Help:      "Total number of engine events handled by the feedback controller.",
		},
		[]string{"event"},
	)

	lifecycleTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "facemeasure",
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Total number of lifecycle transitions by target state.",
		},
		[]string{"state"},
	)

	initDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "facemeasure",
			Subsystem: "lifecycle",
			Name:      "initialize_duration_seconds",
			Help:      "Duration of engine initialize-and-start calls.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"success"},
	)
)

func init() {
	Registry.MustRegister(
		sessionsActive,
		sessionsOpened,
		feedbackEvents,
		lifecycleTransitions,
		initDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func SessionOpened(outcome string) {
	sessionsOpened.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		sessionsActive.Inc()
	}
}

func SessionClosed() {
	sessionsActive.Dec()
}

func RecordFeedbackEvent(event string) {
	if event == "" {
		event = "unknown"
	}
	feedbackEvents.WithLabelValues(event).Inc()
}

func RecordLifecycleTransition(state string) {
	lifecycleTransitions.WithLabelValues(state).Inc()
}

func RecordInitialization(duration time.Duration, success bool) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	result := "false"
	if success {
		result = "true"
	}
	initDuration.WithLabelValues(result).Observe(duration.Seconds())
}
