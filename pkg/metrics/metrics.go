package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestCounter counts all HTTP requests with labels.
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	// RequestDurationHistogram records request duration in seconds.
	RequestDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)

	// PricingFlushCounter counts pricing aggregator flush cycles by outcome.
	PricingFlushCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricing_flush_total",
			Help: "Total number of pricing batch flushes",
		},
		[]string{"outcome"},
	)
)

// HTTPMetrics holds configuration for HTTP metrics collection.
type HTTPMetrics struct {
	ServiceName string
}

// New creates the metrics collector for a service and registers the
// collectors with the default prometheus registry.
func New(serviceName string) *HTTPMetrics {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDurationHistogram)
	prometheus.MustRegister(PricingFlushCounter)
	return &HTTPMetrics{ServiceName: serviceName}
}

// Middleware returns a Fiber middleware recording request count and duration.
// The route pattern is used as the path label so ids do not explode the
// cardinality.
func (m *HTTPMetrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := c.Route().Path
		status := strconv.Itoa(c.Response().StatusCode())
		RequestCounter.WithLabelValues(m.ServiceName, c.Method(), path, status).Inc()
		RequestDurationHistogram.WithLabelValues(m.ServiceName, c.Method(), path, status).
			Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler exposes the prometheus scrape endpoint as a Fiber handler.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
