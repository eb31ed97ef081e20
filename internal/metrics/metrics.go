package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"perfdash/internal/telemetry"
)

// Metrics represents the dashboard's Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	PlotDuration        *prometheus.HistogramVec
	PlotFailures        *prometheus.CounterVec
	ResultFiles         prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// uses a fresh registry, which keeps tests independent of the global one.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{}
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfdash_http_requests_total",
			Help: "Total number of HTTP requests by route kind and status code",
		},
		[]string{"method", "route", "status"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "perfdash_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.PlotDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "perfdash_plot_duration_seconds",
			Help:    "Time spent in the plotting engine per operation",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"engine", "operation"},
	)

	m.PlotFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "perfdash_plot_failures_total",
			Help: "Plotting engine calls that returned an error",
		},
		[]string{"engine", "operation"},
	)

	m.ResultFiles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "perfdash_result_files",
			Help: "Number of result files found on the last index listing",
		},
	)

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PlotDuration,
		m.PlotFailures,
		m.ResultFiles,
	)

	return m
}

// RouteLabeler maps a request to a bounded route label.
type RouteLabeler func(r *http.Request) string

// RequestTrackingMiddleware counts and times requests. Paths embed result file
// names, so requests are labelled by route kind instead of raw path.
func (m *Metrics) RequestTrackingMiddleware(label RouteLabeler, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &telemetry.StatusRecorder{ResponseWriter: w, Status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := label(r)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.Status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// ObservePlot records the outcome of one plotting engine call.
func (m *Metrics) ObservePlot(engine, operation string, elapsed time.Duration, err error) {
	m.PlotDuration.WithLabelValues(engine, operation).Observe(elapsed.Seconds())
	if err != nil {
		m.PlotFailures.WithLabelValues(engine, operation).Inc()
	}
}

// SetResultFiles updates the result file gauge.
func (m *Metrics) SetResultFiles(n int) {
	m.ResultFiles.Set(float64(n))
}

// Handler returns the Prometheus HTTP handler for the registry the metrics
// were registered with.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
