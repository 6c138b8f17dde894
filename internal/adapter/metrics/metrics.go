package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// GatewayMetrics holds all Prometheus metrics for the realtime gateway.
type GatewayMetrics struct {
	RequestsTotal     *prometheus.CounterVec
	ActiveSessions    prometheus.Gauge
	ConversionSeconds prometheus.Histogram
	CopyCacheHits     prometheus.Counter
	CopyCacheMisses   prometheus.Counter
}

// NewGatewayMetrics initializes and registers the Prometheus metrics.
func NewGatewayMetrics() *GatewayMetrics {
	return &GatewayMetrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "distribution",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Total number of realtime requests by event and status.",
		}, []string{"event", "status"}), // status: ok, error
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "distribution",
			Subsystem: "gateway",
			Name:      "active_sessions",
			Help:      "Number of currently connected client sessions.",
		}),
		ConversionSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "distribution",
			Subsystem: "pdf",
			Name:      "conversion_seconds",
			Help:      "Duration of document conversions, staging included.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		CopyCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "distribution",
			Subsystem: "cache",
			Name:      "copy_cache_hits_total",
			Help:      "Total number of latest-copy cache hits.",
		}),
		CopyCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "distribution",
			Subsystem: "cache",
			Name:      "copy_cache_misses_total",
			Help:      "Total number of latest-copy cache misses.",
		}),
	}
}
