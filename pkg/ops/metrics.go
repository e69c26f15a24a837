package ops

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the process counters exposed on /metrics.
type Metrics struct {
	TicksProcessed *prometheus.CounterVec
	BarsProcessed  *prometheus.CounterVec
	OrderEvents    *prometheus.CounterVec
	ViewerConns    prometheus.Gauge
	WSMessagesSent prometheus.Counter
}

// NewMetrics builds and registers the metric set on its own registry, so
// tests can hold several servers in one process.
func NewMetrics() (*Metrics, *prometheus.Registry) {
	m := &Metrics{
		TicksProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fxsim",
			Name:      "ticks_processed_total",
			Help:      "Ticks run through the engines.",
		}, []string{"symbol"}),
		BarsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fxsim",
			Name:      "bars_processed_total",
			Help:      "Bars finalized by the candle factories.",
		}, []string{"symbol", "timeframe"}),
		OrderEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fxsim",
			Name:      "order_events_total",
			Help:      "Order lifecycle events by action.",
		}, []string{"symbol", "action"}),
		ViewerConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fxsim",
			Name:      "viewer_connections",
			Help:      "Live viewer TCP connections.",
		}),
		WSMessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fxsim",
			Name:      "ws_messages_sent_total",
			Help:      "Messages broadcast to websocket subscribers.",
		}),
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		m.TicksProcessed,
		m.BarsProcessed,
		m.OrderEvents,
		m.ViewerConns,
		m.WSMessagesSent,
	)
	return m, reg
}
