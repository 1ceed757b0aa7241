package metrics

import (
	"strconv"
	"time"

	"github.com/Caia-Tech/caia-scribe/pkg/recognition"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics of the service
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Recognition metrics
	recognitionsTotal   *prometheus.CounterVec
	recognitionDuration *prometheus.HistogramVec
	engineFailuresTotal *prometheus.CounterVec
	engineAvailable     *prometheus.GaugeVec
	historyEntries      prometheus.Gauge
}

// NewMetrics creates the metrics on a private registry, so several
// instances can coexist in tests.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry: registry,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scribe_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		httpRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "scribe_http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
		),

		recognitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_recognitions_total",
				Help: "Successful recognitions by provenance",
			},
			[]string{"provenance"},
		),
		recognitionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scribe_recognition_duration_seconds",
				Help:    "End to end recognition latency in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"provenance"},
		),
		engineFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_engine_failures_total",
				Help: "Per request engine failures",
			},
			[]string{"engine"},
		),
		engineAvailable: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scribe_engine_available",
				Help: "1 when the engine initialized, 0 otherwise",
			},
			[]string{"engine"},
		),
		historyEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "scribe_history_entries",
				Help: "Entries in the in-memory recognition history",
			},
		),
	}

	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRecognition implements recognition.Observer
func (m *Metrics) ObserveRecognition(provenance recognition.Provenance, duration time.Duration) {
	m.recognitionsTotal.WithLabelValues(string(provenance)).Inc()
	m.recognitionDuration.WithLabelValues(string(provenance)).Observe(duration.Seconds())
}

// ObserveEngineFailure implements recognition.Observer
func (m *Metrics) ObserveEngineFailure(engine string) {
	m.engineFailuresTotal.WithLabelValues(engine).Inc()
}

// ObserveAvailability implements recognition.Observer
func (m *Metrics) ObserveAvailability(availability recognition.Availability) {
	m.engineAvailable.WithLabelValues(recognition.EngineBaseline).Set(boolToFloat(availability.BaselineLoaded))
	m.engineAvailable.WithLabelValues(recognition.EngineLearned).Set(boolToFloat(availability.LearnedLoaded))
}

// SetHistoryEntries records the current history size
func (m *Metrics) SetHistoryEntries(n int) {
	m.historyEntries.Set(float64(n))
}

// MetricsMiddleware records request counts and latency
func (m *Metrics) MetricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		m.httpRequestsInFlight.Inc()
		defer m.httpRequestsInFlight.Dec()

		err := c.Next()

		// the route pattern keeps label cardinality bounded
		path := c.Route().Path
		status := c.Response().StatusCode()
		if err != nil {
			if e, ok := err.(*fiber.Error); ok {
				status = e.Code
			}
		}

		m.httpRequestsTotal.WithLabelValues(c.Method(), path, strconv.Itoa(status)).Inc()
		m.httpRequestDuration.WithLabelValues(c.Method(), path).Observe(time.Since(start).Seconds())

		return err
	}
}

// Handler returns a Fiber handler that exposes Prometheus metrics
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
