// Package metrics holds the client's prometheus counters. Everything lives on
// a private registry so tests and multiple clients never collide.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector groups the counters updated by the API client, the router and
// the session store. A nil *Collector is valid and records nothing.
type Collector struct {
	registry    *prometheus.Registry
	apiRequests *prometheus.CounterVec
	navigations *prometheus.CounterVec
	session     *prometheus.CounterVec
}

// New creates a Collector with its own registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scoutme",
			Name:      "api_requests_total",
			Help:      "Backend API requests by method and outcome.",
		}, []string{"method", "outcome"}),
		navigations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scoutme",
			Name:      "navigations_total",
			Help:      "Navigation attempts by guard decision.",
		}, []string{"decision"}),
		session: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scoutme",
			Name:      "session_events_total",
			Help:      "Session store events (login, register, logout, cleared...).",
		}, []string{"event"}),
	}
	c.registry.MustRegister(c.apiRequests, c.navigations, c.session)
	return c
}

// APIRequest counts one backend call. outcome is "ok" or an error kind.
func (c *Collector) APIRequest(method, outcome string) {
	if c == nil {
		return
	}
	c.apiRequests.WithLabelValues(method, outcome).Inc()
}

// Navigation counts one guard decision.
func (c *Collector) Navigation(decision string) {
	if c == nil {
		return
	}
	c.navigations.WithLabelValues(decision).Inc()
}

// SessionEvent counts one session store event.
func (c *Collector) SessionEvent(event string) {
	if c == nil {
		return
	}
	c.session.WithLabelValues(event).Inc()
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
