// Package metrics exposes prometheus collectors for commits and the
// notification plumbing. Collectors live on a private registry so tests
// and embedders do not clash with the default one.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every livecoll collector.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	CommitsTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "livecoll_commits_total",
		Help: "Total number of committed write transactions",
	})

	CommitDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "livecoll_commit_duration_seconds",
		Help:    "Duration of commits including the durable log write",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	})

	// NotificationsDelivered is labelled by kind: initial, changes or empty.
	NotificationsDelivered = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "livecoll_notifications_delivered_total",
		Help: "Callbacks invoked for collection subscriptions",
	}, []string{"kind"})

	// NotificationsSuppressed is labelled by reason: root_deleted or suppress_next.
	NotificationsSuppressed = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "livecoll_notifications_suppressed_total",
		Help: "Deliveries dropped before reaching a callback",
	}, []string{"reason"})

	SessionsDetached = factory.NewCounter(prometheus.CounterOpts{
		Name: "livecoll_sessions_detached_total",
		Help: "Enumeration sessions converted to snapshots by their connection",
	})

	TokensInvalidated = factory.NewCounter(prometheus.CounterOpts{
		Name: "livecoll_tokens_invalidated_total",
		Help: "Notification tokens transitioned to invalidated",
	})

	// DeferredAttaches is labelled by outcome: attached, abandoned or failed.
	DeferredAttaches = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "livecoll_deferred_attaches_total",
		Help: "Cross-queue subscription attaches by outcome",
	}, []string{"outcome"})

	OpenConnections = factory.NewGauge(prometheus.GaugeOpts{
		Name: "livecoll_open_connections",
		Help: "Currently open connections",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
