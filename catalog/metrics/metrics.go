// Package metrics exposes Prometheus collectors for the catalog wizard.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/facetbot/core/logger"
)

const namespace = "facetbot"

// Metrics groups the wizard collectors with their registry.
type Metrics struct {
	registry       *prometheus.Registry
	actions        *prometheus.CounterVec
	queryDuration  *prometheus.HistogramVec
	viewIncrements *prometheus.CounterVec
	sessions       prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Wizard actions handled, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Catalog query latency by target step.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"position", "outcome"}),
		viewIncrements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "view_increments_total",
			Help:      "Leaf view counter increments by outcome.",
		}, []string{"outcome"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Wizard sessions currently held in memory.",
		}),
	}
	m.registry.MustRegister(
		m.actions,
		m.queryDuration,
		m.viewIncrements,
		m.sessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func outcome(err error) string {
	if err != nil {
		return "fail"
	}
	return "ok"
}

// ObserveAction counts one handled action.
func (m *Metrics) ObserveAction(kind, result string) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(kind, result).Inc()
}

// ObserveQuery records one executor call.
func (m *Metrics) ObserveQuery(position int, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.queryDuration.WithLabelValues(strconv.Itoa(position), outcome(err)).Observe(took.Seconds())
}

// ObserveView counts one view increment.
func (m *Metrics) ObserveView(err error) {
	if m == nil {
		return
	}
	m.viewIncrements.WithLabelValues(outcome(err)).Inc()
}

// SetSessions reports the number of live sessions.
func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, m *Metrics) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info(ctx, logger.CompApp, "metrics.listen", slog.String("listen", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics: serve %s: %w", addr, err)
	}
	return nil
}
