// Package metrics exposes Prometheus counters for the credentials service.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	codesIssued   *prometheus.CounterVec
	codesConsumed *prometheus.CounterVec
	deliveries    *prometheus.CounterVec
	authz         *prometheus.CounterVec
	purged        prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpInflight prometheus.Gauge
}

// New registers every collector on a fresh registry, along with the Go
// runtime and process collectors.
func New() (*Metrics, error) {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		codesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "credentials_codes_issued_total",
			Help: "Verification records issued, by purpose.",
		}, []string{"purpose"}),
		codesConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "credentials_codes_consumed_total",
			Help: "Consume attempts, by purpose and result.",
		}, []string{"purpose", "result"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "credentials_deliveries_total",
			Help: "Notification deliveries, by channel and outcome.",
		}, []string{"channel", "outcome"}),
		authz: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "credentials_authz_decisions_total",
			Help: "Authorization gate decisions, by outcome.",
		}, []string{"decision"}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "credentials_records_purged_total",
			Help: "Stale verification records removed by housekeeping.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests processed.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Requests currently being served.",
		}),
	}

	err := errors.Join(
		reg.Register(collectors.NewGoCollector()),
		reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})),
		reg.Register(m.codesIssued),
		reg.Register(m.codesConsumed),
		reg.Register(m.deliveries),
		reg.Register(m.authz),
		reg.Register(m.purged),
		reg.Register(m.httpRequests),
		reg.Register(m.httpDuration),
		reg.Register(m.httpInflight),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) CodeIssued(purpose string) {
	if m == nil {
		return
	}
	m.codesIssued.WithLabelValues(purpose).Inc()
}

func (m *Metrics) CodeConsumed(purpose, result string) {
	if m == nil {
		return
	}
	m.codesConsumed.WithLabelValues(purpose, result).Inc()
}

func (m *Metrics) Delivery(channel string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	m.deliveries.WithLabelValues(channel, outcome).Inc()
}

func (m *Metrics) AuthzDecision(decision string) {
	if m == nil {
		return
	}
	m.authz.WithLabelValues(decision).Inc()
}

func (m *Metrics) RecordsPurged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.purged.Add(float64(n))
}

// Middleware counts requests by the matched ServeMux pattern so label
// cardinality stays bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInflight.Inc()
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			m.httpInflight.Dec()
			path := r.Pattern
			if path == "" {
				path = "unmatched"
			}
			m.httpDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
			m.httpRequests.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		}()

		next.ServeHTTP(rec, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }
