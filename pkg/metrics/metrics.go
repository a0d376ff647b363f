// Package metrics owns the Prometheus registry and the HTTP listener that
// exposes it together with any extra routes such as health probes.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lewisedginton/contextmemory/pkg/httpmiddleware"
	"github.com/lewisedginton/contextmemory/pkg/logger"
)

const subsystem = "http"

// Metrics wraps a private Prometheus registry and counts the requests served
// by its own listener.
type Metrics struct {
	reg *prometheus.Registry
	log logger.Logger

	requests *prometheus.CounterVec
	duration prometheus.Histogram

	routes []func(chi.Router)
	stack  httpmiddleware.Config
}

// NewMetrics creates a registry with request metrics and, when runtime is
// true, the Go and process collectors.
func NewMetrics(runtime bool, l logger.Logger) *Metrics {
	if l == nil {
		l = logger.NewDiscardLogger()
	}
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		log: l,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: subsystem,
			Name:      "requests_total",
			Help:      "HTTP requests served by the metrics listener, by status code.",
		}, []string{"code"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Subsystem: subsystem,
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		stack: httpmiddleware.DefaultConfig(),
	}
	m.stack.Logger = l
	m.reg.MustRegister(m.requests, m.duration)
	if runtime {
		m.reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Register adds collectors to the registry.
func (m *Metrics) Register(cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := m.reg.Register(c); err != nil {
			return fmt.Errorf("failed to register collector: %w", err)
		}
	}
	return nil
}

// Mount adds routes served next to /metrics.
func (m *Metrics) Mount(fn func(chi.Router)) {
	m.routes = append(m.routes, fn)
}

// AllowOrigins enables CORS on the listener for the given origins.
func (m *Metrics) AllowOrigins(origins ...string) {
	m.stack.CORSOrigins = append(m.stack.CORSOrigins, origins...)
}

// Handler returns the router serving /metrics and every mounted route.
func (m *Metrics) Handler() http.Handler {
	r := chi.NewRouter()
	httpmiddleware.ApplyToRouter(r, m.stack)
	r.Use(m.HTTPMiddleware())
	r.Handle("/metrics", promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg}))
	for _, fn := range m.routes {
		fn(r)
	}
	return r
}

// Listen serves Handler on port until ctx is done. It returns nil after a
// clean shutdown.
func (m *Metrics) Listen(ctx context.Context, port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", port, err)
	}
	return m.Serve(ctx, ln)
}

// Serve is Listen on an existing listener.
func (m *Metrics) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()
	m.log.Info("Metrics listener started", logger.StringField("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics listener failed: %w", err)
	case <-ctx.Done():
	}

	m.log.Info("Stopping metrics listener")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop metrics listener: %w", err)
	}
	return nil
}

// HTTPMiddleware counts requests by status code and observes their duration.
func (m *Metrics) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			code := ww.Status()
			if code == 0 {
				code = http.StatusOK
			}
			m.requests.WithLabelValues(strconv.Itoa(code)).Inc()
			m.duration.Observe(time.Since(start).Seconds())
		})
	}
}
