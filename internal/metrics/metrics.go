// Package metrics holds the Prometheus collectors for the storefront.
//
// Collectors live in a package-level registry so tests can read them back
// with testutil without touching the global default registry.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var Registry = prometheus.NewRegistry()

var (
	OrderTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chopnow",
			Subsystem: "order",
			Name:      "transitions_total",
			Help:      "Order status transition attempts.",
		},
		[]string{"from", "to", "result"}, // result: ok | invalid | terminal | forbidden | error
	)

	DashboardCompositions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chopnow",
			Subsystem: "dashboard",
			Name:      "compositions_total",
			Help:      "Dashboard compositions by role and outcome.",
		},
		[]string{"role", "result"}, // result: ok | degraded | error
	)

	Checkouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chopnow",
			Subsystem: "order",
			Name:      "checkouts_total",
			Help:      "Checkout attempts by outcome.",
		},
		[]string{"result"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chopnow",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		OrderTransitions,
		DashboardCompositions,
		Checkouts,
		RequestDuration,
	)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request duration labelled by the chi route pattern, so
// /api/orders/{id} is one series rather than one per id.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		RequestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack passes through so websocket upgrades work behind the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
