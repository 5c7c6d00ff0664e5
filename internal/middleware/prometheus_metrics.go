package middleware

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/socialfeed/backend/internal/metrics"
)

// MetricsMiddleware collects HTTP metrics for Prometheus
func MetricsMiddleware() gin.HandlerFunc {
	m := metrics.Get()

	return func(c *gin.Context) {
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		m.HTTPActiveConnections.WithLabelValues(method, path).Inc()
		defer m.HTTPActiveConnections.WithLabelValues(method, path).Dec()

		contentLength := c.Request.ContentLength
		if contentLength > 0 {
			m.HTTPRequestSize.WithLabelValues(method, path).Observe(float64(contentLength))
		}

		writer := &metricsResponseWriter{
			ResponseWriter: c.Writer,
			statusCode:     http.StatusOK,
			body:           &bytes.Buffer{},
		}
		c.Writer = writer

		startTime := time.Now()

		c.Next()

		duration := time.Since(startTime).Seconds()
		// Numeric status as string so dashboards can match status=~"5.."
		statusStr := strconv.Itoa(c.Writer.Status())

		m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, path, statusStr).Observe(duration)

		if responseSize := writer.body.Len(); responseSize > 0 {
			m.HTTPResponseSize.WithLabelValues(method, path, statusStr).Observe(float64(responseSize))
		}
	}
}

// RecordRateLimitExceeded records a rate limit violation
func RecordRateLimitExceeded(endpoint, method string) {
	m := metrics.Get()
	m.RateLimitExceededTotal.WithLabelValues(endpoint, method).Inc()
}

// RecordDatabaseQuery records a database operation
func RecordDatabaseQuery(queryType, table string, duration time.Duration, err error) {
	m := metrics.Get()
	status := "success"
	if err != nil {
		status = "error"
	}
	m.DatabaseQueryDuration.WithLabelValues(queryType, table).Observe(duration.Seconds())
	m.DatabaseQueriesTotal.WithLabelValues(queryType, table, status).Inc()
}

// RecordRedisOperation records a Redis operation
func RecordRedisOperation(operation, keyPattern string, duration time.Duration, err error) {
	m := metrics.Get()
	status := "success"
	if err != nil {
		status = "error"
	}
	m.RedisOperationDuration.WithLabelValues(operation, keyPattern).Observe(duration.Seconds())
	m.RedisOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordFeedGeneration records feed composition latency
func RecordFeedGeneration(feedType string, duration time.Duration) {
	m := metrics.Get()
	m.FeedGenerationTime.WithLabelValues(feedType).Observe(duration.Seconds())
}

// RecordError records an error by type and endpoint
func RecordError(errorType, endpoint string) {
	m := metrics.Get()
	m.ErrorsTotal.WithLabelValues(errorType, endpoint).Inc()
}

// metricsResponseWriter intercepts response writes to capture size and status
type metricsResponseWriter struct {
	gin.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (w *metricsResponseWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *metricsResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
