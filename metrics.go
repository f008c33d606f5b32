package eduapi

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the request lifecycle
// and reliability layers. It is safe for concurrent use.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	retriesTotal *prometheus.CounterVec

	circuitBreakerState *prometheus.GaugeVec

	tokenRefreshesTotal *prometheus.CounterVec

	rateLimiterTokens prometheus.Gauge

	notificationsTotal *prometheus.CounterVec

	errorsTotal *prometheus.CounterVec
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using the supplied
// registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	return &MetricsCollector{
		requestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "eduapi_requests_total",
				Help: "Total number of API requests made",
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eduapi_request_duration_seconds",
				Help:    "Duration of API requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestsInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "eduapi_requests_in_flight",
				Help: "Number of API requests currently in flight",
			},
			[]string{"method", "endpoint"},
		),
		retriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "eduapi_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"attempt"},
		),
		circuitBreakerState: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "eduapi_circuit_breaker_state",
				Help: "Current state of circuit breaker (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
		tokenRefreshesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "eduapi_token_refreshes_total",
				Help: "Total number of credential refresh attempts",
			},
			[]string{"outcome"},
		),
		rateLimiterTokens: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "eduapi_rate_limiter_tokens",
				Help: "Current number of available rate limiter tokens",
			},
		),
		notificationsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "eduapi_notifications_total",
				Help: "Total number of user-facing notifications emitted",
			},
			[]string{"severity", "kind"},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "eduapi_errors_total",
				Help: "Total number of errors surfaced to callers",
			},
			[]string{"kind", "method", "endpoint"},
		),
	}
}

// RecordRequest records request count and duration.
func (mc *MetricsCollector) RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}
	status := strconv.Itoa(statusCode)
	mc.requestsTotal.WithLabelValues(method, status, endpoint).Inc()
	mc.requestDuration.WithLabelValues(method, status, endpoint).Observe(duration.Seconds())
}

// RecordRequestStart increments the in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(method, endpoint string) {
	if mc == nil {
		return
	}
	mc.requestsInFlight.WithLabelValues(method, endpoint).Inc()
}

// RecordRequestEnd decrements the in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(method, endpoint string) {
	if mc == nil {
		return
	}
	mc.requestsInFlight.WithLabelValues(method, endpoint).Dec()
}

// RecordRetry increments the retry counter for an attempt.
func (mc *MetricsCollector) RecordRetry(attempt int) {
	if mc == nil {
		return
	}
	mc.retriesTotal.WithLabelValues(strconv.Itoa(attempt)).Inc()
}

// RecordCircuitBreakerState sets the gauge to the breaker state.
func (mc *MetricsCollector) RecordCircuitBreakerState(name string, state CircuitState) {
	if mc == nil {
		return
	}
	mc.circuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordTokenRefresh counts a refresh attempt by outcome.
func (mc *MetricsCollector) RecordTokenRefresh(outcome string) {
	if mc == nil {
		return
	}
	mc.tokenRefreshesTotal.WithLabelValues(outcome).Inc()
}

// RecordRateLimiterTokens sets the available token gauge.
func (mc *MetricsCollector) RecordRateLimiterTokens(tokens int) {
	if mc == nil {
		return
	}
	mc.rateLimiterTokens.Set(float64(tokens))
}

// RecordNotification counts an emitted user notification.
func (mc *MetricsCollector) RecordNotification(severity, kind string) {
	if mc == nil {
		return
	}
	mc.notificationsTotal.WithLabelValues(severity, kind).Inc()
}

// RecordError increments the error counter by kind.
func (mc *MetricsCollector) RecordError(kind, method, endpoint string) {
	if mc == nil {
		return
	}
	mc.errorsTotal.WithLabelValues(kind, method, endpoint).Inc()
}
