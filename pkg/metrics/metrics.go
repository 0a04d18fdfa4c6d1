// Package metrics exposes Prometheus collectors for the jobctl client.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	streamFramesTotal       *prometheus.CounterVec
	streamStateTransitions  *prometheus.CounterVec
	progressEventsTotal     *prometheus.CounterVec
	progressDecodeErrors    prometheus.Counter
	submissionsTotal        *prometheus.CounterVec
	submissionsInFlight     *prometheus.GaugeVec
	batchGaugePercentLatest prometheus.Gauge

	once sync.Once
)

// Init registers the collectors. It is safe to call multiple times, and every
// Observe function calls it.
func Init() {
	once.Do(func() {
		streamFramesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobctl_stream_frames_total",
				Help: "Server-sent events received, labeled by event name.",
			},
			[]string{"event"},
		)

		streamStateTransitions = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobctl_stream_state_transitions_total",
				Help: "Push stream connection state transitions, labeled by new state.",
			},
			[]string{"state"},
		)

		progressEventsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobctl_progress_events_total",
				Help: "Decoded progress updates, labeled by type.",
			},
			[]string{"type"},
		)

		progressDecodeErrors = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "jobctl_progress_decode_errors_total",
				Help: "Progress updates that could not be decoded.",
			},
		)

		submissionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobctl_submissions_total",
				Help: "Job submissions, labeled by job kind and outcome.",
			},
			[]string{"kind", "outcome"},
		)

		submissionsInFlight = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "jobctl_submissions_in_flight",
				Help: "Submissions currently waiting for the server, labeled by job kind.",
			},
			[]string{"kind"},
		)

		batchGaugePercentLatest = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "jobctl_batch_progress_percent",
				Help: "Latest batch progress percentage rendered by the client.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

func ObserveFrame(event string) {
	Init()
	streamFramesTotal.WithLabelValues(event).Inc()
}

func ObserveStreamState(state string) {
	Init()
	streamStateTransitions.WithLabelValues(state).Inc()
}

func ObserveProgress(typ string) {
	Init()
	progressEventsTotal.WithLabelValues(typ).Inc()
}

func ObserveProgressDecodeError() {
	Init()
	progressDecodeErrors.Inc()
}

// ObserveSubmission counts a settled submission.
func ObserveSubmission(kind, outcome string) {
	Init()
	submissionsTotal.WithLabelValues(kind, outcome).Inc()
}

func IncInFlight(kind string) {
	Init()
	submissionsInFlight.WithLabelValues(kind).Inc()
}

func DecInFlight(kind string) {
	Init()
	submissionsInFlight.WithLabelValues(kind).Dec()
}

func SetBatchPercent(percent float64) {
	Init()
	batchGaugePercentLatest.Set(percent)
}
