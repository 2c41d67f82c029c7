// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package metrics exports render cycle statistics to Prometheus.
//
// A Collector implements mapcompose.Metrics:
//
//	c := metrics.NewCollector(prometheus.DefaultRegisterer)
//	job := mapcompose.NewJob(settings, mapcompose.WithMetrics(c))
//
// Exported series:
//
//	mapcompose_render_cycles_total{result}
//	mapcompose_render_cycle_seconds
//	mapcompose_layer_render_seconds{pass}
//	mapcompose_cache_lookups_total{result}
//	mapcompose_render_errors_total{kind}
//	mapcompose_second_pass_jobs
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gogpu/mapcompose"
)

const namespace = "mapcompose"

// Collector records render statistics.
type Collector struct {
	cycles       *prometheus.CounterVec
	cycleTime    prometheus.Histogram
	layerTime    *prometheus.HistogramVec
	cacheLookups *prometheus.CounterVec
	errors       *prometheus.CounterVec
	secondPass   prometheus.Gauge
}

var _ mapcompose.Metrics = (*Collector)(nil)

// NewCollector creates a collector and registers it with reg. A nil reg
// leaves the metrics unregistered.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_cycles_total",
			Help:      "Render cycles by result (ok, cancelled, error).",
		}, []string{"result"}),
		cycleTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_cycle_seconds",
			Help:      "Duration of a render cycle up to composition.",
			Buckets:   prometheus.DefBuckets,
		}),
		layerTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "layer_render_seconds",
			Help:      "Time spent in one layer renderer or the labeling engine.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"pass"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Render cache lookups by result (hit, miss).",
		}, []string{"result"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_errors_total",
			Help:      "Per-layer render errors by kind.",
		}, []string{"kind"}),
		secondPass: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "second_pass_jobs",
			Help:      "Second-pass jobs planned by the last render cycle.",
		}),
	}
	if reg != nil {
		reg.MustRegister(c.cycles, c.cycleTime, c.layerTime, c.cacheLookups, c.errors, c.secondPass)
	}
	return c
}

// RenderCycle records a finished cycle.
func (c *Collector) RenderCycle(result string, d time.Duration) {
	c.cycles.WithLabelValues(result).Inc()
	c.cycleTime.Observe(d.Seconds())
}

// LayerRendered records the time of one renderer run.
func (c *Collector) LayerRendered(pass string, d time.Duration) {
	c.layerTime.WithLabelValues(pass).Observe(d.Seconds())
}

// CacheLookup records a render cache lookup.
func (c *Collector) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

// RenderError records a per-layer error.
func (c *Collector) RenderError(kind string) {
	c.errors.WithLabelValues(kind).Inc()
}

// SecondPassJobs records the size of the second pass.
func (c *Collector) SecondPassJobs(n int) {
	c.secondPass.Set(float64(n))
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
