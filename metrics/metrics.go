// Package metrics exposes Prometheus instruments for the engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var TicksApplied = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "margin",
		Subsystem: "engine",
		Name:      "ticks_applied_total",
		Help:      "Price ticks applied to the engine",
	},
	[]string{"symbol"},
)

var TicksStale = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "margin",
		Subsystem: "engine",
		Name:      "ticks_stale_total",
		Help:      "Out-of-order price ticks dropped",
	},
	[]string{"symbol"},
)

var OrdersPlaced = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "margin",
		Subsystem: "orders",
		Name:      "placed_total",
		Help:      "Orders accepted locally",
	},
	[]string{"side", "type"},
)

var OrdersRejected = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "margin",
		Subsystem: "orders",
		Name:      "rejected_total",
		Help:      "Orders refused locally or by the authority",
	},
	[]string{"source"},
)

var Fills = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "margin",
		Subsystem: "orders",
		Name:      "fills_total",
		Help:      "Resting orders that moved from PENDING to OPEN",
	},
	[]string{"symbol"},
)

var PositionsClosed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "margin",
		Subsystem: "positions",
		Name:      "closed_total",
		Help:      "Positions leaving the active set",
	},
	[]string{"status"},
)

var Alerts = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "margin",
		Subsystem: "positions",
		Name:      "alerts_total",
		Help:      "Stop-loss, take-profit and liquidation crossings",
	},
	[]string{"kind"},
)

var AvailableBalance = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "margin",
		Subsystem: "account",
		Name:      "available_balance",
		Help:      "Balance not committed as margin",
	},
)

var TickLatency = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "margin",
		Subsystem: "engine",
		Name:      "tick_apply_seconds",
		Help:      "Time to apply one price tick",
		Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
	},
)

func Handler() http.Handler {
	return promhttp.Handler()
}
