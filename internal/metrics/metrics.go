// Package metrics records gateway traffic as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess     = "success"
	OutcomeStatusError = "status_error"
	OutcomeTransport   = "transport_error"
	OutcomeDecode      = "decode_error"
	OutcomeTimeout     = "timeout"
)

const (
	defaultNamespace = "parkdash"
	defaultSubsystem = "gateway"
	shutdownTimeout  = 5 * time.Second
)

var defaultBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Recorder holds the gateway collectors. A nil Recorder records nothing.
type Recorder struct {
	namespace string
	subsystem string
	buckets   []float64
	registry  *prometheus.Registry

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// New builds a Recorder registered on its own registry unless WithRegistry
// supplies one.
func New(opts ...Option) (*Recorder, error) {
	r := &Recorder{
		namespace: defaultNamespace,
		subsystem: defaultSubsystem,
		buckets:   defaultBuckets,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = prometheus.NewRegistry()
	}

	r.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "requests_total",
		Help:      "Gateway requests by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})
	r.latency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "request_duration_seconds",
		Help:      "Gateway request latency by endpoint.",
		Buckets:   r.buckets,
	}, []string{"endpoint"})

	for _, c := range []prometheus.Collector{r.requests, r.latency} {
		if err := r.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ObserveRequest counts one request and its latency.
func (r *Recorder) ObserveRequest(endpoint, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(endpoint, outcome).Inc()
	r.latency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// Requests exposes the request counter so callers and tests can inspect
// per-outcome counts.
func (r *Recorder) Requests() *prometheus.CounterVec {
	return r.requests
}

// Handler serves the recorder's registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
