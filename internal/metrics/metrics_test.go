package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRequestCountsByOutcome(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	r.ObserveRequest("events", OutcomeSuccess, 20*time.Millisecond)
	r.ObserveRequest("events", OutcomeSuccess, 30*time.Millisecond)
	r.ObserveRequest("events", OutcomeStatusError, time.Millisecond)

	if got := testutil.ToFloat64(r.Requests().WithLabelValues("events", OutcomeSuccess)); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(r.Requests().WithLabelValues("events", OutcomeStatusError)); got != 1 {
		t.Fatalf("expected 1 status error, got %v", got)
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.ObserveRequest("events", OutcomeSuccess, time.Second)
}

func TestOptionsApply(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := New(WithRegistry(reg), WithNamespace("test"), WithSubsystem("gw"), WithHistogramBuckets([]float64{1}))
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	r.ObserveRequest("results", OutcomeTimeout, time.Second)

	count, err := testutil.GatherAndCount(reg, "test_gw_requests_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one series, got %d", count)
	}
	if _, err := New(WithRegistry(reg)); err != nil {
		t.Fatalf("default names should not collide: %v", err)
	}
	_, err = New(WithRegistry(reg), WithNamespace("test"), WithSubsystem("gw"))
	var dup prometheus.AlreadyRegisteredError
	if !errors.As(err, &dup) {
		t.Fatalf("expected duplicate registration error, got %v", err)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	r.ObserveRequest("occurrences", OutcomeSuccess, time.Millisecond)

	srv := httptest.NewServer(r.Handler())
	t.Cleanup(srv.Close)
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(body), `parkdash_gateway_requests_total{endpoint="occurrences",outcome="success"} 1`) {
		t.Fatalf("metric missing from output:\n%s", body)
	}
}
