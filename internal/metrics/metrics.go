// Package metrics instruments the server-side components (router, inbox,
// traversal, and the endpoint handlers themselves) with Prometheus
// counters, gauges, and histograms.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hyperborea"

// promRegistry is the Prometheus registry every metric in this package is
// bound to; a deployer scrapes it via promhttp.HandlerFor(promRegistry, ...).
var promRegistry = prometheus.NewRegistry()

// Handler returns the Prometheus scrape handler for this package's registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

var (
	requestsTotal = promauto.With(promRegistry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "requests",
			Name:      "total",
			Help:      "Total number of handled requests by endpoint and outcome (success or error).",
		},
		[]string{"endpoint", "status"},
	)

	requestDuration = promauto.With(promRegistry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "requests",
			Name:      "duration_seconds",
			Help:      "Request handling duration in seconds, by endpoint.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"endpoint"},
	)

	routingTableSize = promauto.With(promRegistry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "routing_table_size",
			Help:      "Number of entries currently held in the routing table.",
		},
	)

	knownServersSize = promauto.With(promRegistry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "known_servers_size",
			Help:      "Number of peer servers currently known.",
		},
	)

	localClientsSize = promauto.With(promRegistry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "local_clients_size",
			Help:      "Number of clients currently connected directly to this server.",
		},
	)

	inboxDepth = promauto.With(promRegistry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "inbox",
			Name:      "depth_total",
			Help:      "Aggregate number of messages queued across all inboxes.",
		},
	)

	traversalOutcomes = promauto.With(promRegistry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "traversal",
			Name:      "outcomes_total",
			Help:      "Lookup traversal outcomes by disposition.",
		},
		[]string{"disposition"},
	)

	traversalHops = promauto.With(promRegistry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "traversal",
			Name:      "hops",
			Help:      "Number of hops a completed lookup traversal took.",
			Buckets:   prometheus.LinearBuckets(0, 1, 8),
		},
	)
)

// Collector wraps the package-level vectors behind a small struct so
// server.Server can hold one without every call site importing this
// package's globals directly.
type Collector struct{}

// NewRegistry returns a handle onto the package-level Prometheus metrics.
func NewRegistry() *Collector { return &Collector{} }

// ObserveRequest records one handled request's outcome and latency.
func (*Collector) ObserveRequest(endpoint string, status int, d time.Duration) {
	requestsTotal.WithLabelValues(endpoint, statusLabel(status)).Inc()
	requestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// ObserveRouterStats publishes the router's table sizes as gauges.
func (*Collector) ObserveRouterStats(localClients, knownServers, routingTable int) {
	localClientsSize.Set(float64(localClients))
	knownServersSize.Set(float64(knownServers))
	routingTableSize.Set(float64(routingTable))
}

// ObserveInboxDepth publishes the inbox's aggregate depth.
func (*Collector) ObserveInboxDepth(depth int) {
	inboxDepth.Set(float64(depth))
}

// ObserveTraversal records a completed traversal's disposition and hop
// count.
func (*Collector) ObserveTraversal(disposition string, hops int) {
	traversalOutcomes.WithLabelValues(disposition).Inc()
	traversalHops.Observe(float64(hops))
}

func statusLabel(status int) string {
	switch {
	case status >= 100 && status < 200:
		return "success"
	default:
		return "error"
	}
}
