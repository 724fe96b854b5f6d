// Copyright 2024-2026 Aiku AI

// Package metrics instruments dispatch with Prometheus counters and serves
// them on the profile's telemetry address.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/aiku/chatbridge/pkg/ids"
)

// Collector implements bridge.DispatchMetrics.
type Collector struct {
	registry *prometheus.Registry

	messagesDispatched *prometheus.CounterVec
	messagesDropped    *prometheus.CounterVec
	statusesDispatched *prometheus.CounterVec
	statusesDropped    *prometheus.CounterVec
	dispatchFailures   *prometheus.CounterVec
}

// NewCollector creates and registers the dispatch counters on a private
// Prometheus registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		messagesDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatbridge",
			Name:      "messages_dispatched_total",
			Help:      "Messages delivered to a destination channel.",
		}, []string{"destination"}),
		messagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatbridge",
			Name:      "messages_dropped_total",
			Help:      "Messages consumed by a middleware.",
		}, []string{"middleware"}),
		statusesDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatbridge",
			Name:      "statuses_dispatched_total",
			Help:      "Statuses delivered to a destination channel.",
		}, []string{"destination"}),
		statusesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatbridge",
			Name:      "statuses_dropped_total",
			Help:      "Statuses consumed by a middleware.",
		}, []string{"middleware"}),
		dispatchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatbridge",
			Name:      "dispatch_failures_total",
			Help:      "Dispatch failures by error kind.",
		}, []string{"kind"}),
	}
	c.registry.MustRegister(
		c.messagesDispatched, c.messagesDropped,
		c.statusesDispatched, c.statusesDropped,
		c.dispatchFailures,
	)
	return c
}

func (c *Collector) MessageDispatched(destination ids.ModuleID) {
	c.messagesDispatched.WithLabelValues(string(destination)).Inc()
}

func (c *Collector) MessageDropped(middleware ids.ModuleID) {
	c.messagesDropped.WithLabelValues(string(middleware)).Inc()
}

func (c *Collector) StatusDispatched(destination ids.ModuleID) {
	c.statusesDispatched.WithLabelValues(string(destination)).Inc()
}

func (c *Collector) StatusDropped(middleware ids.ModuleID) {
	c.statusesDropped.WithLabelValues(string(middleware)).Inc()
}

func (c *Collector) DispatchFailed(kind string) {
	c.dispatchFailures.WithLabelValues(kind).Inc()
}

// Gather exposes the private registry, for tests.
func (c *Collector) Gather() prometheus.Gatherer {
	return c.registry
}

// Serve exposes /metrics on addr in a background goroutine. Errors are
// logged, not fatal; the telemetry surface never takes the bridge down.
func (c *Collector) Serve(addr string, log zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info().Str("addr", addr).Msg("Starting telemetry endpoint")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Telemetry endpoint error")
		}
	}()
	return server
}
