// Package metrics exposes Prometheus collectors for sessions and the leaderboard.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "speedtype_sessions_started_total",
		Help: "Sessions moved from idle to running",
	})

	SessionsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speedtype_sessions_finished_total",
		Help: "Finished sessions by reason",
	}, []string{"reason"})

	SessionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speedtype_sessions_rejected_total",
		Help: "Start requests rejected by validation",
	}, []string{"cause"})

	FinalWPM = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "speedtype_final_wpm",
		Help:    "Final words per minute of finished sessions",
		Buckets: []float64{10, 20, 30, 40, 50, 60, 80, 100, 120, 150},
	})

	SinkFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "speedtype_result_sink_failures_total",
		Help: "Results that could not be persisted",
	})

	ActiveConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "speedtype_ws_connections_active",
		Help: "Open WebSocket connections by endpoint",
	}, []string{"endpoint"})

	LeaderboardSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "speedtype_leaderboard_subscribers",
		Help: "Live leaderboard subscriptions",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speedtype_http_requests_total",
		Help: "HTTP requests by route and status",
	}, []string{"method", "route", "status"})
)
