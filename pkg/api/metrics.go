package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ssargent/mb2/pkg/inspect"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds all Prometheus metrics for the API
type Metrics struct {
	// HTTP request metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec

	// Parse metrics
	parseResultsTotal *prometheus.CounterVec
	parseDuration     *prometheus.HistogramVec
	tagsDecodedTotal  *prometheus.CounterVec
	inputSizeBytes    *prometheus.HistogramVec

	// Archive metrics
	dumpOperationsTotal *prometheus.CounterVec
	dumpsStored         prometheus.Gauge

	authRequestsTotal *prometheus.CounterVec
	healthChecksTotal *prometheus.CounterVec
}

// NewMetrics creates all Prometheus metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mb2_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mb2_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		httpRequestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mb2_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"method", "endpoint"},
		),

		parseResultsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mb2_parse_results_total",
				Help: "Parse attempts by format and failure cause",
			},
			[]string{"format", "cause"},
		),

		parseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mb2_parse_duration_seconds",
				Help:    "Time spent validating and reporting one input",
				Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
			},
			[]string{"format"},
		),

		tagsDecodedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mb2_tags_decoded_total",
				Help: "Tags seen in successfully parsed inputs",
			},
			[]string{"format", "tag"},
		),

		inputSizeBytes: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mb2_input_size_bytes",
				Help:    "Size of submitted inputs",
				Buckets: prometheus.ExponentialBuckets(64, 4, 8),
			},
			[]string{"format"},
		),

		dumpOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mb2_dump_operations_total",
				Help: "Total number of archive operations",
			},
			[]string{"operation", "status"},
		),

		dumpsStored: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mb2_dumps_stored",
				Help: "Number of dumps in the archive at the last listing",
			},
		),

		authRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mb2_auth_requests_total",
				Help: "Total number of authentication requests",
			},
			[]string{"status"},
		),

		healthChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mb2_health_checks_total",
				Help: "Total number of health checks",
			},
			[]string{"status"},
		),
	}

	return m
}

func statusLabel(success bool) string {
	if success {
		return statusSuccess
	}
	return statusError
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordParse records one parse attempt. cause is empty on success.
func (m *Metrics) RecordParse(format string, size int, cause string, duration time.Duration) {
	if cause == "" {
		cause = "ok"
	}
	m.parseResultsTotal.WithLabelValues(format, cause).Inc()
	m.parseDuration.WithLabelValues(format).Observe(duration.Seconds())
	m.inputSizeBytes.WithLabelValues(format).Observe(float64(size))
}

// RecordReport counts the tags of a parsed input by name.
func (m *Metrics) RecordReport(format string, r *inspect.Report) {
	for _, t := range r.Tags {
		m.tagsDecodedTotal.WithLabelValues(format, t.Name).Inc()
	}
}

// RecordDumpOperation records an archive operation
func (m *Metrics) RecordDumpOperation(operation string, success bool) {
	m.dumpOperationsTotal.WithLabelValues(operation, statusLabel(success)).Inc()
}

// SetDumpsStored updates the archive size gauge.
func (m *Metrics) SetDumpsStored(n int) {
	m.dumpsStored.Set(float64(n))
}

// RecordAuthRequest records an authentication request
func (m *Metrics) RecordAuthRequest(success bool) {
	m.authRequestsTotal.WithLabelValues(statusLabel(success)).Inc()
}

// RecordHealthCheck records a health check
func (m *Metrics) RecordHealthCheck(success bool) {
	m.healthChecksTotal.WithLabelValues(statusLabel(success)).Inc()
}

// InstrumentHandler instruments an HTTP handler with metrics
func (m *Metrics) InstrumentHandler(method, endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		gauge := m.httpRequestsInFlight.WithLabelValues(method, endpoint)
		gauge.Inc()
		defer gauge.Dec()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(rw, r)

		m.RecordHTTPRequest(method, endpoint, rw.statusCode, time.Since(start))
	}
}

// InstrumentAuthMiddleware instruments the authentication middleware
func (m *Metrics) InstrumentAuthMiddleware(next func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hasAPIKey := r.Header.Get("X-API-Key") != ""

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next(h).ServeHTTP(rw, r)

			if hasAPIKey {
				m.RecordAuthRequest(rw.statusCode != http.StatusUnauthorized)
			}
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
