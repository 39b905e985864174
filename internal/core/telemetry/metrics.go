// Package telemetry exposes Prometheus metrics for the binding service and
// serves them, with a health endpoint, on a side HTTP listener.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Resolution outcome labels.
const (
	OutcomeResolved = "resolved"
	OutcomeBypassed = "bypassed"
	OutcomeDenied   = "denied"
	OutcomeFailed   = "failed"
)

// Metrics owns a private registry so tests and multiple servers in one
// process do not collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	rpcReqs     *prometheus.CounterVec
	rpcDur      *prometheus.HistogramVec
	resolutions *prometheus.CounterVec
	configErrs  prometheus.Counter
	cacheSize   prometheus.Gauge
}

// New creates and registers the service metrics plus Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		rpcReqs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rolebind_rpc_requests_total",
				Help: "Total gRPC requests by method and status code",
			},
			[]string{"method", "code"},
		),
		rpcDur: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rolebind_rpc_duration_seconds",
				Help:    "gRPC request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rolebind_resolutions_total",
				Help: "Member resolutions by outcome",
			},
			[]string{"outcome"},
		),
		configErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rolebind_config_errors_total",
			Help: "Deny-list expressions that failed during resolution",
		}),
		cacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rolebind_expression_cache_entries",
			Help: "Parsed expressions currently memoized",
		}),
	}
	m.registry.MustRegister(
		m.rpcReqs, m.rpcDur, m.resolutions, m.configErrs, m.cacheSize,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing these metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveResolution counts one resolution and the configuration errors it surfaced.
func (m *Metrics) ObserveResolution(outcome string, configErrors int) {
	m.resolutions.WithLabelValues(outcome).Inc()
	if configErrors > 0 {
		m.configErrs.Add(float64(configErrors))
	}
}

// SetCacheSize records the expression cache population.
func (m *Metrics) SetCacheSize(n int) { m.cacheSize.Set(float64(n)) }

// UnaryInterceptor records request counts and latency per method.
func (m *Metrics) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		m.rpcReqs.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
		m.rpcDur.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())
		return resp, err
	}
}

// Router serves /metrics and /healthz. ready reports whether the service can
// take traffic; a nil ready always reports healthy.
func (m *Metrics) Router(ready func(context.Context) error) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if ready != nil {
			if err := ready(req.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry}))

	return r
}
