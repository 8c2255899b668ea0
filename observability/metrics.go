package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	MintRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chess_mint",
			Name:      "requests_total",
			Help:      "Mint requests by outcome (accepted or rejection reason).",
		},
		[]string{"outcome"},
	)

	MintDispatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chess_mint",
			Name:      "dispatches_total",
			Help:      "Dispatch attempts by result.",
		},
		[]string{"result"},
	)

	MintCompletionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chess_mint",
			Name:      "completions_total",
			Help:      "Completion reports by outcome.",
		},
		[]string{"outcome"},
	)

	MintActionableListed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chess_mint",
			Name:      "actionable_listed_total",
			Help:      "Tasks returned to reconnecting players by the reclaimer.",
		},
	)

	LiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "chess_mint",
			Name:      "live_connections",
			Help:      "Connections currently joined to a room.",
		},
		[]string{"kind"},
	)
)

// RegisterMetrics is called once from main; tests use the unregistered collectors directly.
func RegisterMetrics() {
	prometheus.MustRegister(
		MintRequestsTotal,
		MintDispatchesTotal,
		MintCompletionsTotal,
		MintActionableListed,
		LiveConnections,
	)
}
