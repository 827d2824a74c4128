// Copyright 2025 Author(s) of airlock
// SPDX-License-Identifier: Apache-2.0

// Package metrics is a thin layer over armon/go-metrics with a Prometheus
// sink. Until Initialize is called every emitter is a no-op.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/armon/go-metrics"
	"github.com/armon/go-metrics/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServiceName prefixes every emitted metric.
const ServiceName = "airlock"

// Label is a metric dimension.
type Label = metrics.Label

// NewPrometheusSink creates a new Prometheus sink.
func NewPrometheusSink() (*prometheus.PrometheusSink, error) {
	return prometheus.NewPrometheusSink()
}

var initOnce sync.Once

// Initialize installs the global metrics collector backed by Prometheus. It is
// safe to call more than once; only the first call has an effect.
func Initialize() error {
	var err error
	initOnce.Do(func() {
		var sink *prometheus.PrometheusSink
		sink, err = NewPrometheusSink()
		if err != nil {
			return
		}

		conf := metrics.DefaultConfig(ServiceName)
		conf.EnableHostname = false
		conf.EnableRuntimeMetrics = false

		_, err = metrics.NewGlobal(conf, sink)
	})
	return err
}

// Handler returns an http.Handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartServer serves /metrics on addr until ctx is cancelled.
func StartServer(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return Serve(ctx, ln)
}

// Serve serves /metrics on ln until ctx is cancelled. A clean shutdown
// returns nil.
func Serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return ServeHandler(ctx, ln, mux)
}

// ServeHandler runs h on ln with conservative timeouts until ctx is
// cancelled.
func ServeHandler(ctx context.Context, ln net.Listener, h http.Handler) error {
	server := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 3 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// IncrCounter increments a counter.
func IncrCounter(name []string, val float32) {
	metrics.IncrCounter(name, val)
}

// IncrCounterWithLabels increments a labelled counter.
func IncrCounterWithLabels(name []string, val float32, labels []Label) {
	metrics.IncrCounterWithLabels(name, val, labels)
}

// SetGauge sets a gauge.
func SetGauge(name []string, val float32) {
	metrics.SetGauge(name, val)
}

// MeasureSince records the time elapsed since start.
func MeasureSince(name []string, start time.Time) {
	metrics.MeasureSince(name, start)
}

// MeasureSinceWithLabels records the time elapsed since start with labels.
func MeasureSinceWithLabels(name []string, start time.Time, labels []Label) {
	metrics.MeasureSinceWithLabels(name, start, labels)
}
