package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gatewaysync"

// GatewayMetrics records outbound gateway traffic.
type GatewayMetrics struct {
	duration   *prometheus.HistogramVec
	failures   *prometheus.CounterVec
	retries    *prometheus.CounterVec
	authAlerts prometheus.Counter
}

// NewGatewayMetrics registers the gateway metrics on the provided registerer.
func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	if reg == nil {
		return &GatewayMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "gateway_request_duration_seconds",
		Help:      "Duration of payment gateway requests in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"resource", "method", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_failures_total",
		Help:      "Payment gateway failures by error code.",
	}, []string{"resource", "code"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_retries_total",
		Help:      "Payment gateway requests retried at the transport boundary.",
	}, []string{"resource"})
	authAlerts := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_auth_misconfigured_total",
		Help:      "Gateway responses rejecting the configured credentials.",
	})
	reg.MustRegister(duration, failures, retries, authAlerts)
	return &GatewayMetrics{
		duration:   duration,
		failures:   failures,
		retries:    retries,
		authAlerts: authAlerts,
	}
}

// ObserveRequest records one completed HTTP exchange. status is 0 for transport failures.
func (g *GatewayMetrics) ObserveRequest(resource, method string, status int, duration time.Duration) {
	if g == nil || g.duration == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	g.duration.WithLabelValues(normalizeLabel(resource), method, label).Observe(duration.Seconds())
}

// IncFailure counts a typed gateway failure.
func (g *GatewayMetrics) IncFailure(resource, code string) {
	if g == nil || g.failures == nil {
		return
	}
	g.failures.WithLabelValues(normalizeLabel(resource), code).Inc()
}

// IncRetry counts a transport-level retry.
func (g *GatewayMetrics) IncRetry(resource string) {
	if g == nil || g.retries == nil {
		return
	}
	g.retries.WithLabelValues(normalizeLabel(resource)).Inc()
}

// IncAuthAlert counts a credential rejection.
func (g *GatewayMetrics) IncAuthAlert() {
	if g == nil || g.authAlerts == nil {
		return
	}
	g.authAlerts.Inc()
}
