// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sevasetu"

var (
	SessionsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rpa",
		Name:      "sessions_started_total",
		Help:      "Automation sessions accepted, by provider.",
	}, []string{"provider"})

	SessionsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rpa",
		Name:      "sessions_finished_total",
		Help:      "Automation runs that returned, by provider and final status.",
	}, []string{"provider", "status"})

	SessionsEvicted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_evicted_total",
		Help:      "Sessions dropped from the registry, by reason (capacity, retention).",
	}, []string{"reason"})

	RelaySubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "subscribers",
		Help:      "Open status relay channels.",
	})

	RelayMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "messages_total",
		Help:      "Messages pushed to subscribers, by kind (snapshot, delta, heartbeat).",
	}, []string{"kind"})

	RelaySendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "send_failures_total",
		Help:      "Deliveries that failed and deregistered the subscriber.",
	})

	Redirects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "redirects_total",
		Help:      "Portal redirects served, by supplier category and action.",
	}, []string{"category", "action"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
