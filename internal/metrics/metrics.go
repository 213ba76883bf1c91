package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_connections_active",
			Help: "Number of authenticated websocket connections",
		},
	)

	HandshakeRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_handshake_rejected_total",
			Help: "Websocket handshakes rejected before upgrade",
		},
		[]string{"reason"},
	)

	MessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Messages stored and broadcast",
		},
	)

	SendErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_send_errors_total",
			Help: "Rejected or failed sends by error code",
		},
		[]string{"code"},
	)

	SlowConsumerEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_slow_consumer_evictions_total",
			Help: "Clients disconnected because their event queue overflowed",
		},
	)

	HistoryFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_history_failures_total",
			Help: "History loads that failed",
		},
	)

	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
