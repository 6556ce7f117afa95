package network

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("roadnet.network")

var (
	loadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roadnet_network_loads_total",
		Help: "Network loads by origin (cache or build) and result",
	}, []string{"origin", "result"})

	loadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "roadnet_network_load_duration_seconds",
		Help:    "Network load duration",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
	}, []string{"origin"})

	networkNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "roadnet_network_nodes",
		Help: "Nodes in the current network",
	})

	networkEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "roadnet_network_edges",
		Help: "Directed edges in the current network",
	})
)
