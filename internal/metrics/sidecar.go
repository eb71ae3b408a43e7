// Package metrics provides Prometheus metrics for the sidecar supervisor.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	sidecarUp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mixdeck",
		Subsystem: "sidecar",
		Name:      "up",
		Help:      "Whether the sidecar worker process is currently running (1 or 0)",
	})

	sidecarStarts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mixdeck",
		Subsystem: "sidecar",
		Name:      "starts_total",
		Help:      "Total number of successful worker starts",
	})

	sidecarCrashes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mixdeck",
		Subsystem: "sidecar",
		Name:      "crashes_total",
		Help:      "Total number of unexpected worker terminations",
	}, []string{"reason"})

	controlRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mixdeck",
		Subsystem: "control",
		Name:      "requests_total",
		Help:      "Control requests sent to the worker HTTP surface",
	}, []string{"operation", "outcome"})
)

// SetSidecarUp records whether the worker process is running.
func SetSidecarUp(up bool) {
	if up {
		sidecarUp.Set(1)
	} else {
		sidecarUp.Set(0)
	}
}

// IncSidecarStarts records a successful worker start.
func IncSidecarStarts() {
	sidecarStarts.Inc()
}

// IncSidecarCrashes records an unexpected worker termination.
// Reason is one of "abnormal_exit", "io_error" or "spawn_failed".
func IncSidecarCrashes(reason string) {
	sidecarCrashes.WithLabelValues(reason).Inc()
}

// IncControlRequests records a request against the worker control surface.
// Outcome is "ok" or "error".
func IncControlRequests(operation, outcome string) {
	controlRequests.WithLabelValues(operation, outcome).Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
// This collects all promauto-registered metrics automatically.
func Handler() http.Handler {
	return promhttp.Handler()
}
