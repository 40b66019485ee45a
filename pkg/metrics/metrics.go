package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectedClients tracks live websocket connections.
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "retroboard_connected_clients",
			Help: "Number of live websocket connections",
		},
	)

	// ActiveSessions tracks retrospective sessions with in-memory state.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "retroboard_active_sessions",
			Help: "Number of retrospective sessions with live state",
		},
	)

	// Broadcasts counts events fanned out to sessions, by event name.
	Broadcasts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retroboard_broadcasts_total",
			Help: "Total events broadcast to session subscribers",
		},
		[]string{"event"},
	)

	// RejectedUpdates counts state mutations dropped by conflict resolution
	// or validation (stale_grouping|vote_budget|duplicate_action|not_found).
	RejectedUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retroboard_rejected_updates_total",
			Help: "Total state updates rejected before mutation",
		},
		[]string{"reason"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "retroboard_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
