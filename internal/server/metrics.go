package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tartampluch/go-fiscalcode/internal/config"
)

type metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	computedTotal   *prometheus.CounterVec
	tableSize       prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: config.MetricRequestsTotal,
				Help: "Total number of HTTP requests",
			},
			[]string{config.MetricLabelMethod, config.MetricLabelRoute, config.MetricLabelStatus},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    config.MetricRequestDuration,
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{config.MetricLabelMethod, config.MetricLabelRoute},
		),
		computedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: config.MetricComputedTotal,
				Help: "Fiscal code computations by outcome",
			},
			[]string{config.MetricLabelOutcome},
		),
		tableSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: config.MetricTableSize,
				Help: "Number of municipalities in the loaded table",
			},
		),
	}
}

// instrument records request count and latency per chi route pattern, so
// query strings never become label values.
func (m *metrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (m *metrics) recordOutcome(outcome string) {
	m.computedTotal.WithLabelValues(outcome).Inc()
}
