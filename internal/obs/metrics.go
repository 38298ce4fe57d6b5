// Package obs exposes Prometheus metrics for the HTTP surface and the
// message-turn pipeline.
package obs

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_turns_total",
			Help: "Inbound message turns by outcome.",
		},
		[]string{"outcome"},
	)

	ingestedDocsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coach_ingested_documents_total",
			Help: "Ingested attachments by result.",
		},
		[]string{"result"},
	)
)

// Init registers the metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		turnsTotal,
		ingestedDocsTotal,
	)
}

// Handler serves the Prometheus scrape endpoint.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

// Middleware measures request counts, latencies, and in-flight requests.
// The route template keeps path cardinality bounded.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			httpInFlight.Inc()
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			labels := []string{c.Request().Method, path, strconv.Itoa(status)}
			httpRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
			httpRequestsTotal.WithLabelValues(labels...).Inc()
			httpInFlight.Dec()
			return err
		}
	}
}

// CountTurn records the outcome of one dispatched message turn.
func CountTurn(outcome string) {
	turnsTotal.WithLabelValues(outcome).Inc()
}

// CountIngestedDocument records one attachment ingestion result.
func CountIngestedDocument(result string) {
	ingestedDocsTotal.WithLabelValues(result).Inc()
}
