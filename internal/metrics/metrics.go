package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     prometheus.CounterVec
	HTTPRequestDuration   prometheus.HistogramVec
	HTTPRequestSize       prometheus.HistogramVec
	HTTPResponseSize      prometheus.HistogramVec
	HTTPActiveConnections prometheus.GaugeVec

	// Rate limiting metrics
	RateLimitExceededTotal prometheus.CounterVec

	// Database metrics
	DatabaseQueryDuration   prometheus.HistogramVec
	DatabaseQueriesTotal    prometheus.CounterVec
	DatabaseConnectionsOpen prometheus.GaugeVec

	// Redis metrics
	RedisOperationDuration prometheus.HistogramVec
	RedisOperationsTotal   prometheus.CounterVec

	// Feed metrics
	FeedGenerationTime prometheus.HistogramVec

	// Notification metrics
	NotificationsCreatedTotal prometheus.CounterVec
	NotificationsPushedTotal  prometheus.CounterVec

	// WebSocket metrics
	WebSocketConnections   prometheus.GaugeVec
	WebSocketMessagesTotal prometheus.CounterVec

	// Error metrics
	ErrorsTotal prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			HTTPRequestsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestSize: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_size_bytes",
					Help:    "HTTP request body size in bytes",
					Buckets: prometheus.ExponentialBuckets(100, 10, 7),
				},
				[]string{"method", "path"},
			),
			HTTPResponseSize: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_response_size_bytes",
					Help:    "HTTP response size in bytes",
					Buckets: prometheus.ExponentialBuckets(100, 10, 7),
				},
				[]string{"method", "path", "status"},
			),
			HTTPActiveConnections: *promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "http_active_connections",
					Help: "Number of currently active HTTP connections",
				},
				[]string{"method", "path"},
			),

			RateLimitExceededTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rate_limit_exceeded_total",
					Help: "Total number of rate limit violations",
				},
				[]string{"endpoint", "method"},
			),

			DatabaseQueryDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "database_query_duration_seconds",
					Help:    "Database query latency in seconds",
					Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"query_type", "table"},
			),
			DatabaseQueriesTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "database_queries_total",
					Help: "Total number of database queries",
				},
				[]string{"query_type", "table", "status"},
			),
			DatabaseConnectionsOpen: *promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "database_connections_open",
					Help: "Number of currently open database connections",
				},
				[]string{"database"},
			),

			RedisOperationDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "redis_operation_duration_seconds",
					Help:    "Redis operation latency in seconds",
					Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
				},
				[]string{"operation", "key_pattern"},
			),
			RedisOperationsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "redis_operations_total",
					Help: "Total number of Redis operations",
				},
				[]string{"operation", "status"},
			),

			FeedGenerationTime: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "feed_generation_duration_seconds",
					Help:    "Time to generate feed in seconds",
					Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"feed_type"},
			),

			NotificationsCreatedTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "notifications_created_total",
					Help: "Total number of notifications persisted",
				},
				[]string{"type"},
			),
			NotificationsPushedTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "notifications_pushed_total",
					Help: "Total number of notifications pushed over the live channel",
				},
				[]string{"type", "delivered"},
			),

			WebSocketConnections: *promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "websocket_connections",
					Help: "Number of currently connected websocket clients",
				},
				[]string{"state"},
			),
			WebSocketMessagesTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "websocket_messages_total",
					Help: "Total number of websocket messages",
				},
				[]string{"direction", "type"},
			),

			ErrorsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "errors_total",
					Help: "Total number of errors by type",
				},
				[]string{"error_type", "endpoint"},
			),
		}
	})
	return instance
}

// Get returns the global metrics instance
func Get() *Metrics {
	if instance == nil {
		return Initialize()
	}
	return instance
}
