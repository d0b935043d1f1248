package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Store metrics
	StoreOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lounge_store_ops_total",
			Help: "Store operations by backend, operation and result",
		},
		[]string{"backend", "op", "result"},
	)

	// Binding metrics
	SnapshotsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lounge_snapshots_applied_total",
			Help: "Snapshots applied to live bindings",
		},
		[]string{"collection"},
	)

	BindingsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lounge_bindings_open",
			Help: "Live bindings currently open",
		},
		[]string{"collection"},
	)

	// Chat metrics
	ChatOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lounge_chat_ops_total",
			Help: "Chat controller operations by result",
		},
		[]string{"op", "result"},
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lounge_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lounge_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)

// Result labels an outcome as "ok" or "error".
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
