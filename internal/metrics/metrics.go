package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hearkenhq/hearken/internal/connector"
)

// Collector exposes Prometheus metrics for inbound HTTP requests and
// outbound connector calls. It implements connector.Observer.
type Collector struct {
	registry         *prometheus.Registry
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	outboundDuration *prometheus.HistogramVec
	outboundTotal    *prometheus.CounterVec
	retryTotal       *prometheus.CounterVec
	rateLimitWaits   *prometheus.CounterVec
	vaultTotal       *prometheus.CounterVec
}

// NewCollector constructs a collector with default histograms/counters.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hearken",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for inbound HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hearken",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of inbound HTTP requests.",
	}, []string{"method", "path", "status"})

	outboundDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hearken",
		Subsystem: "connector",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for outbound provider calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider", "operation"})

	outboundTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hearken",
		Subsystem: "connector",
		Name:      "requests_total",
		Help:      "Total number of outbound provider calls by outcome.",
	}, []string{"provider", "operation", "outcome"})

	retryTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hearken",
		Subsystem: "connector",
		Name:      "retries_total",
		Help:      "Total number of retried outbound provider calls.",
	}, []string{"provider", "operation"})

	rateLimitWaits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hearken",
		Subsystem: "connector",
		Name:      "rate_limit_waits_total",
		Help:      "Total number of outbound calls delayed by provider rate limits.",
	}, []string{"provider"})

	vaultTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hearken",
		Subsystem: "vault",
		Name:      "operations_total",
		Help:      "Total number of credential vault operations by outcome.",
	}, []string{"operation", "outcome"})

	collectors := []prometheus.Collector{
		requestDuration, requestTotal,
		outboundDuration, outboundTotal, retryTotal,
		rateLimitWaits, vaultTotal,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Collector{
		registry:         registry,
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		outboundDuration: outboundDuration,
		outboundTotal:    outboundTotal,
		retryTotal:       retryTotal,
		rateLimitWaits:   rateLimitWaits,
		vaultTotal:       vaultTotal,
	}, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

// ObserveRequest records one outbound provider call attempt.
func (c *Collector) ObserveRequest(provider, operation string, err error, elapsed time.Duration) {
	outcome := outcomeLabel(err)
	c.outboundTotal.WithLabelValues(provider, operation, outcome).Inc()
	c.outboundDuration.WithLabelValues(provider, operation).Observe(elapsed.Seconds())
	if outcome == "rate_limited" {
		c.rateLimitWaits.WithLabelValues(provider).Inc()
	}
}

// ObserveRetry records one retried outbound provider call.
func (c *Collector) ObserveRetry(provider, operation string) {
	c.retryTotal.WithLabelValues(provider, operation).Inc()
}

// ObserveVaultOperation records one credential vault operation.
func (c *Collector) ObserveVaultOperation(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.vaultTotal.WithLabelValues(operation, outcome).Inc()
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}

	var authErr *connector.AuthenticationError
	var apiErr *connector.ProviderAPIError
	switch {
	case connector.IsRateLimit(err):
		return "rate_limited"
	case connector.IsTransport(err):
		return "transport"
	case errors.As(err, &authErr):
		return "auth_failed"
	case errors.As(err, &apiErr):
		return "provider_error"
	}
	return "error"
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
