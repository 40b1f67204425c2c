package centerline

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "centerline",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "centerline",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	conversionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "centerline",
		Subsystem: "convert",
		Name:      "conversions_total",
		Help:      "Total conversion requests by outcome",
	}, []string{"mode", "profile", "status"})

	coordinatesExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "centerline",
		Subsystem: "convert",
		Name:      "coordinates_extracted_total",
		Help:      "Total coordinates kept across all conversions",
	})
)

func recordConversion(mode SelectionMode, profile ExportProfile, status string) {
	conversionsTotal.WithLabelValues(mode.String(), profile.String(), status).Inc()
}

// MetricsMiddleware records request count and latency per route.
func MetricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)

		return err
	}
}

// MetricsHandler returns a Fiber handler serving the Prometheus scrape
// endpoint.
func MetricsHandler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}
