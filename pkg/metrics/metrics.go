// Package metrics exposes Prometheus instrumentation for the matching
// engine and the dissemination layer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marketwire/lob/pkg/lob"
)

// Metrics bundles the engine's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ordersProcessed prometheus.Counter
	ordersRejected  prometheus.Counter
	tradesExecuted  prometheus.Counter
	tradedVolume    prometheus.Counter
	bookDepth       *prometheus.GaugeVec
	restingOrders   *prometheus.GaugeVec
	matchingLatency prometheus.Histogram
	wsClients       prometheus.Gauge
	framesOut       prometheus.Counter

	// lastFrames mirrors the hub's monotonic frame counter between
	// ObserveSessions calls so it can be re-exported as a counter.
	lastFrames float64
}

// New creates the collector set under the given namespace.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		ordersProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_processed_total",
			Help:      "Total number of order intents applied to a book",
		}),
		ordersRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_rejected_total",
			Help:      "Total number of order intents rejected without state change",
		}),
		tradesExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_executed_total",
			Help:      "Total number of trades produced by matching",
		}),
		tradedVolume: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "traded_volume_total",
			Help:      "Total matched quantity across all trades",
		}),
		bookDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "orderbook_levels",
			Help:      "Number of populated price levels by symbol and side",
		}, []string{"symbol", "side"}),
		restingOrders: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resting_orders",
			Help:      "Number of resting orders by symbol",
		}, []string{"symbol"}),
		matchingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "matching_latency_nanoseconds",
			Help:      "Latency of one add/modify including matching",
			Buckets:   []float64{100, 250, 500, 1000, 2500, 5000, 10000, 25000, 50000, 100000},
		}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Connected dissemination sessions",
		}),
		framesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_frames_sent_total",
			Help:      "Frames written to dissemination sessions",
		}),
	}

	registry.MustRegister(
		m.ordersProcessed,
		m.ordersRejected,
		m.tradesExecuted,
		m.tradedVolume,
		m.bookDepth,
		m.restingOrders,
		m.matchingLatency,
		m.wsClients,
		m.framesOut,
	)
	return m
}

// Handler serves the registry in the standard exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveAdd records one applied order intent and its matching outcome.
func (m *Metrics) ObserveAdd(trades []lob.Trade, elapsed time.Duration) {
	m.ordersProcessed.Inc()
	m.matchingLatency.Observe(float64(elapsed.Nanoseconds()))
	if len(trades) == 0 {
		return
	}
	m.tradesExecuted.Add(float64(len(trades)))
	var volume uint64
	for _, trade := range trades {
		volume += uint64(trade.Bid.Quantity)
	}
	m.tradedVolume.Add(float64(volume))
}

// ObserveReject records a rejected order intent.
func (m *Metrics) ObserveReject() {
	m.ordersRejected.Inc()
}

// ObserveBook refreshes the per-symbol book gauges.
func (m *Metrics) ObserveBook(book *lob.OrderBook) {
	levels := book.Depth()
	m.bookDepth.WithLabelValues(book.Symbol(), "bid").Set(float64(len(levels.Bids)))
	m.bookDepth.WithLabelValues(book.Symbol(), "ask").Set(float64(len(levels.Asks)))
	m.restingOrders.WithLabelValues(book.Symbol()).Set(float64(book.Size()))
}

// ObserveSessions refreshes dissemination counters.
func (m *Metrics) ObserveSessions(clients int32, framesOut uint64) {
	m.wsClients.Set(float64(clients))
	// framesOut is monotonic; a counter cannot be set, so track the delta.
	if delta := float64(framesOut) - m.lastFrames; delta > 0 {
		m.framesOut.Add(delta)
		m.lastFrames = float64(framesOut)
	}
}
