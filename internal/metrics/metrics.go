// SPDX-License-Identifier: MIT
//
// Package metrics exports tracker readings as Prometheus metrics.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"tempo/internal/beat"
	applog "tempo/internal/log"
	"tempo/internal/transport"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter is a transport that records readings into Prometheus collectors.
type Exporter struct {
	registry *prometheus.Registry

	bpm      prometheus.Gauge
	loudness prometheus.Gauge
	beats    prometheus.Counter
	readings prometheus.Counter

	mu     sync.Mutex
	server *http.Server
}

var _ transport.Transport = (*Exporter)(nil)

// NewExporter creates the collectors and registers them with registry. A nil
// registry gets a fresh one.
func NewExporter(registry *prometheus.Registry) (*Exporter, error) {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &Exporter{
		registry: registry,
		bpm: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tempo_bpm",
			Help: "Latest tempo estimate in beats per minute, 0 until two beats were seen",
		}),
		loudness: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tempo_loudness_rms",
			Help: "RMS loudness of the most recent analysis frame",
		}),
		beats: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tempo_beats_total",
			Help: "Total number of detected beats",
		}),
		readings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tempo_readings_total",
			Help: "Total number of readings polled from the tracker",
		}),
	}

	for _, c := range []prometheus.Collector{e.bpm, e.loudness, e.beats, e.readings} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register tempo metrics: %w", err)
		}
	}
	return e, nil
}

// Send records one reading.
func (e *Exporter) Send(r beat.Reading) error {
	e.bpm.Set(r.BPM)
	e.loudness.Set(r.Loudness)
	e.beats.Add(float64(r.Beats))
	e.readings.Inc()
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// Serve starts an HTTP server exposing /metrics on addr.
func (e *Exporter) Serve(addr string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.server != nil {
		return errors.New("metrics server already running")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	e.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	server := e.server
	go func() {
		applog.Infof("Metrics: Serving Prometheus metrics on %s/metrics", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Errorf("Metrics: Server error: %v", err)
		}
	}()
	return nil
}

// Close shuts down the metrics server if one is running.
func (e *Exporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.server == nil {
		return nil
	}
	err := e.server.Close()
	e.server = nil
	return err
}
