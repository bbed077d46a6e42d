package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// ModelAttemptsTotal counts text-generation attempts per model and result.
	ModelAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "waterlog",
		Subsystem: "llm",
		Name:      "attempts_total",
		Help:      "Total number of text-generation attempts, labeled by source and result.",
	}, []string{"source", "result"})

	// ModerationVerdictsTotal counts moderator outcomes.
	// verdict is one of accepted, rejected, fail_open.
	ModerationVerdictsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "waterlog",
		Subsystem: "moderation",
		Name:      "verdicts_total",
		Help:      "Total number of moderation verdicts, labeled by verdict.",
	}, []string{"verdict"})

	// SubmissionsTotal counts submission pipeline outcomes.
	SubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "waterlog",
		Subsystem: "submission",
		Name:      "total",
		Help:      "Total number of report submissions, labeled by outcome.",
	}, []string{"outcome"})

	// SubmissionDurationSeconds is end-to-end pipeline time per submission.
	SubmissionDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "waterlog",
		Subsystem: "submission",
		Name:      "duration_seconds",
		Help:      "End-to-end time of the submission pipeline (moderation + duplicate check + insert).",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 60},
	}, []string{"outcome"})

	UploadCleanupErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "waterlog",
		Subsystem: "upload",
		Name:      "cleanup_error_total",
		Help:      "Total number of failures deleting uploads of rejected submissions.",
	})

	EventPublishErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "waterlog",
		Subsystem: "events",
		Name:      "publish_error_total",
		Help:      "Total number of report event publish errors.",
	})

	// WebsocketClients is the number of connected live-feed clients.
	WebsocketClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "waterlog",
		Subsystem: "events",
		Name:      "websocket_clients",
		Help:      "Current number of connected websocket clients.",
	})

	PredictionRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "waterlog",
		Subsystem: "prediction",
		Name:      "runs_total",
		Help:      "Total number of prediction script runs, labeled by result.",
	}, []string{"result"})
)

// Register registers service metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			ModelAttemptsTotal,
			ModerationVerdictsTotal,
			SubmissionsTotal,
			SubmissionDurationSeconds,
			UploadCleanupErrorsTotal,
			EventPublishErrorsTotal,
			WebsocketClients,
			PredictionRunsTotal,
		)
	})
}
