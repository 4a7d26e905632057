// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JoinsTotal counts join attempts by path (code, id) and result
	JoinsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discussions_joins_total",
		Help: "Join attempts by path and result",
	}, []string{"path", "result"})

	// LeavesTotal counts successful leaves
	LeavesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "discussions_leaves_total",
		Help: "Memberships that transitioned to left",
	})

	// MessagesSentTotal counts messages appended by members, by message type
	MessagesSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discussions_messages_sent_total",
		Help: "Messages appended by members by message type",
	}, []string{"type"})

	// PollDuration tracks poll latency
	PollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "discussions_poll_duration_seconds",
		Help:    "Poll request duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
	})

	// PollBatchSize tracks how many messages each poll returns
	PollBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "discussions_poll_messages",
		Help:    "Messages returned per poll",
		Buckets: []float64{0, 1, 5, 10, 50, 100, 500},
	})

	// OutboxEventsTotal counts outbox deliveries by event type and result
	OutboxEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discussions_outbox_events_total",
		Help: "Outbox event deliveries by type and result",
	}, []string{"type", "result"})

	// WebSocketConnections is the number of open WebSocket clients on this instance
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "discussions_websocket_connections",
		Help: "Open WebSocket connections",
	})

	// HTTPRequestsTotal counts handled requests by route, method and status
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discussions_http_requests_total",
		Help: "HTTP requests by route, method and status",
	}, []string{"route", "method", "status"})

	// HTTPRequestDuration tracks request latency by route
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "discussions_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})
)
