// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AutosaveTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admissions_autosave_total",
			Help: "Total number of autosave attempts by outcome",
		},
		[]string{"outcome"},
	)

	AutosaveFallbackHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "admissions_autosave_fallback_hits_total",
			Help: "Autosaves that landed in the local fallback store",
		},
	)

	DocumentOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admissions_document_operations_total",
			Help: "Document slot operations by slot, operation and outcome",
		},
		[]string{"slot", "operation", "outcome"},
	)

	DocumentUploadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "admissions_document_upload_bytes_total",
			Help: "Total bytes uploaded to blob storage",
		},
	)

	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admissions_submissions_total",
			Help: "Submission pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	SubmissionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "admissions_submission_duration_seconds",
			Help: "Duration of the submission pipeline in seconds",
		},
	)

	ActiveSubmissions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "admissions_submissions_active",
			Help: "Number of submission pipelines currently running",
		},
	)
)
