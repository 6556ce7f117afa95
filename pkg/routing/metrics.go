package routing

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("roadnet.routing")

var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roadnet_route_queries_total",
		Help: "Route queries by mode and result",
	}, []string{"mode", "result"})

	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "roadnet_route_duration_seconds",
		Help:    "Route query duration",
		Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"mode"})

	settledNodes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "roadnet_route_settled_nodes",
		Help:    "Nodes settled per point-to-point search",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})

	connectorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roadnet_route_connectors_total",
		Help: "Straight-line connectors inserted for unroutable legs",
	})

	resolveFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roadnet_route_unresolved_edges_total",
		Help: "Path edges whose geometry could not be resolved",
	})
)

// resultLabel maps a query error to a metric label.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoCandidates):
		return "no_candidates"
	case errors.Is(err, ErrDisconnected):
		return "disconnected"
	default:
		return "error"
	}
}
