package ginmiddleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soko_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "soko_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "path", "status"},
	)

	checkoutTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soko_checkouts_total",
			Help: "Checkout attempts by outcome",
		},
		[]string{"outcome"},
	)

	paymentCallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soko_payment_callbacks_total",
			Help: "Payment gateway callbacks by result",
		},
		[]string{"result"},
	)
)

// Metrics records request counts and latencies per route. Unmatched paths
// fall back to the raw URL so 404 floods stay visible.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path, status).
			Observe(time.Since(start).Seconds())
	}
}

// RecordCheckout counts one checkout attempt.
func RecordCheckout(ok bool) {
	outcome := "success"
	if !ok {
		outcome = "error"
	}
	checkoutTotal.WithLabelValues(outcome).Inc()
}

// RecordPaymentCallback counts one gateway callback.
func RecordPaymentCallback(result string) {
	paymentCallbacksTotal.WithLabelValues(result).Inc()
}
