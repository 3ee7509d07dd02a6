// Package metrics provides Prometheus metrics for the engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	registry *prometheus.Registry

	// Catalog metrics
	MarketsIngested   prometheus.Gauge
	MarketsDropped    prometheus.Counter
	RelatednessEdges  prometheus.Gauge
	GraphBuildSeconds prometheus.Histogram

	// Streaming metrics
	TicksApplied      prometheus.Counter
	TicksIgnored      prometheus.Counter
	TickApplySeconds  prometheus.Histogram
	Opportunities     *prometheus.CounterVec
	OpportunityProfit *prometheus.HistogramVec
	FeedReconnects    prometheus.Counter

	// Sink metrics
	SinkErrors             *prometheus.CounterVec
	OpportunitiesDuplicate prometheus.Counter

	// Analysis metrics
	WalletsFlagged prometheus.Counter
}

// New creates a Metrics instance registered on its own registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "polyarb"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		MarketsIngested: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "markets",
			Help:      "Number of markets in the current catalog",
		}),
		MarketsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "markets_dropped_total",
			Help:      "Malformed catalog entries dropped at ingestion",
		}),
		RelatednessEdges: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "relatedness_edges",
			Help:      "Number of related market pairs",
		}),
		GraphBuildSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "graph_build_seconds",
			Help:      "Time to build the relatedness graph",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),

		TicksApplied: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "ticks_applied_total",
			Help:      "Ticks applied to a tracked condition",
		}),
		TicksIgnored: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "ticks_ignored_total",
			Help:      "Ticks for untracked assets",
		}),
		TickApplySeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "tick_apply_seconds",
			Help:      "Time holding the market table lock per tick",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		Opportunities: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "opportunities_total",
			Help:      "Opportunities emitted by kind",
		}, []string{"kind"}),
		OpportunityProfit: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "opportunity_profit",
			Help:      "Profit magnitude of emitted opportunities",
			Buckets:   []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5},
		}, []string{"kind"}),
		FeedReconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "feed_reconnects_total",
			Help:      "Tick feed reconnect attempts",
		}),

		SinkErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "sink_errors_total",
			Help:      "Failures delivering an opportunity to a sink",
		}, []string{"sink"}),
		OpportunitiesDuplicate: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "duplicate_opportunities_total",
			Help:      "Opportunities suppressed inside the dedup window",
		}),

		WalletsFlagged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "wallets_flagged_total",
			Help:      "Wallets flagged for multi-leg execution",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
