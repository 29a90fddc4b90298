package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestGatewayMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewGatewayMetrics(reg)

	m.IncFailure("charges", "PAYMENT_DECLINED")
	m.IncFailure("charges", "PAYMENT_DECLINED")
	m.IncRetry("customers")
	m.IncAuthAlert()
	m.ObserveRequest("charges", "POST", 402, 120*time.Millisecond)
	m.ObserveRequest("charges", "GET", 0, time.Second)

	if got := testutil.ToFloat64(m.failures.WithLabelValues("charges", "PAYMENT_DECLINED")); got != 2 {
		t.Fatalf("expected 2 declined failures, got %f", got)
	}
	if got := testutil.ToFloat64(m.retries.WithLabelValues("customers")); got != 1 {
		t.Fatalf("expected 1 retry, got %f", got)
	}
	if got := testutil.ToFloat64(m.authAlerts); got != 1 {
		t.Fatalf("expected 1 auth alert, got %f", got)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchHistogramSum(mfs, "gatewaysync_gateway_request_duration_seconds", "status", "error"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got != 1 {
		t.Fatalf("expected transport failure duration 1s, got %f", got)
	}
}

func TestGatewayMetricsNilSafe(t *testing.T) {
	var m *GatewayMetrics
	m.IncFailure("charges", "X")
	m.IncRetry("charges")
	m.IncAuthAlert()
	m.ObserveRequest("charges", "GET", 200, time.Millisecond)

	empty := NewGatewayMetrics(nil)
	empty.IncFailure("charges", "X")
}
