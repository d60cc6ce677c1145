package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	JobsSubmitted    = prometheus.NewCounter(prometheus.CounterOpts{Name: "clips_submitted_total", Help: "Jobs accepted at intake"})
	RendersSucceeded = prometheus.NewCounter(prometheus.CounterOpts{Name: "clips_rendered_total", Help: "Jobs that reached ready"})
	RendersFailed    = prometheus.NewCounter(prometheus.CounterOpts{Name: "clips_failed_total", Help: "Jobs that ended failed"})
	NotifyFailures   = prometheus.NewCounter(prometheus.CounterOpts{Name: "notify_failures_total", Help: "Best-effort notifications that errored"})
	AssetsArchived   = prometheus.NewCounter(prometheus.CounterOpts{Name: "assets_archived_total", Help: "Temporary assets reclaimed by the sweep"})
	WebhookEvents    = prometheus.NewCounter(prometheus.CounterOpts{Name: "webhook_events_total", Help: "Inbound share events accepted"})
	WebhookRejected  = prometheus.NewCounter(prometheus.CounterOpts{Name: "webhook_rejected_total", Help: "Inbound share events with a bad signature"})
	RateLimitRejects = prometheus.NewCounter(prometheus.CounterOpts{Name: "intake_rate_limit_rejects_total", Help: "Intake requests rejected by the rate limiter"})
	PendingGauge     = prometheus.NewGauge(prometheus.GaugeOpts{Name: "jobs_pending", Help: "Jobs currently waiting for a worker"})
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			JobsSubmitted,
			RendersSucceeded,
			RendersFailed,
			NotifyFailures,
			AssetsArchived,
			WebhookEvents,
			WebhookRejected,
			RateLimitRejects,
			PendingGauge,
		)
	})
	return promhttp.Handler()
}
