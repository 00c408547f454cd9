package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountersAndHandler(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveHTTP("GET", "/deliveries", 200, 5*time.Millisecond)
	m.ObserveHTTP("GET", "/deliveries", 200, 5*time.Millisecond)
	m.DeliveryCreated()
	m.DeliveryTransition("Accepted")
	m.AuthAttempt("login", false)

	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/deliveries", "200")); got != 2 {
		t.Fatalf("http_requests_total=%v, want 2", got)
	}
	if got := testutil.ToFloat64(m.deliveriesCreated); got != 1 {
		t.Fatalf("deliveries_created_total=%v, want 1", got)
	}
	if got := testutil.ToFloat64(m.authAttempts.WithLabelValues("login", "failure")); got != 1 {
		t.Fatalf("auth_attempts_total=%v, want 1", got)
	}

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rr.Body)
	if !strings.Contains(string(body), `delivery_transitions_total{to="Accepted"} 1`) {
		t.Fatalf("metrics output missing transition counter:\n%s", body)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveHTTP("GET", "/", 200, time.Millisecond)
	m.DeliveryCreated()
	m.DeliveryTransition("Delivered")
	m.AuthAttempt("register", true)
}
