// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "imu"

// Metrics holds the pipeline collectors on a private registry so several
// monitors (and tests) never collide on the default one.
type Metrics struct {
	registry *prometheus.Registry

	lines          *prometheus.CounterVec
	decodeFailures prometheus.Counter
	linkEvents     *prometheus.CounterVec
	portsVisible   prometheus.Gauge
	connected      prometheus.Gauge
	windowSamples  *prometheus.GaugeVec
	saveLatency    prometheus.Histogram
	published      *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		lines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_total",
			Help:      "Lines received from the serial link, by line kind.",
		}, []string{"kind"}),
		decodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_failures_total",
			Help:      "Lines tagged as IMU telemetry that did not match the telemetry pattern.",
		}),
		linkEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_events_total",
			Help:      "Serial link log notifications, by cause.",
		}, []string{"cause"}),
		portsVisible: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ports_visible",
			Help:      "Serial devices seen by the last port scan.",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "link_connected",
			Help:      "1 while the serial link holds an open device.",
		}),
		windowSamples: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "window_samples",
			Help:      "Samples currently held per window.",
		}, []string{"group"}),
		saveLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recording_save_seconds",
			Help:      "Time spent writing a recording to its sinks.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_published_total",
			Help:      "Messages handed to the MQTT client, by topic.",
		}, []string{"topic"}),
	}

	m.registry.MustRegister(
		m.lines, m.decodeFailures, m.linkEvents, m.portsVisible,
		m.connected, m.windowSamples, m.saveLatency, m.published,
	)
	return m
}

// RegisterRestarts exposes a crash counter owned elsewhere, such as
// link.Link.Restarts.
func (m *Metrics) RegisterRestarts(restarts func() int64) {
	m.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "read_loop_restarts_total",
		Help:      "Read loop crashes followed by a supervised restart attempt.",
	}, func() float64 { return float64(restarts()) }))
}

func (m *Metrics) Line(kind string) { m.lines.WithLabelValues(kind).Inc() }
func (m *Metrics) DecodeFailure() { m.decodeFailures.Inc() }
func (m *Metrics) LinkEvent(cause string) { m.linkEvents.WithLabelValues(cause).Inc() }
func (m *Metrics) PortsVisible(n int) { m.portsVisible.Set(float64(n)) }
func (m *Metrics) Published(topic string) { m.published.WithLabelValues(topic).Inc() }
func (m *Metrics) SaveDuration(s float64) { m.saveLatency.Observe(s) }
func (m *Metrics) WindowSize(g string, n int) { m.windowSamples.WithLabelValues(g).Set(float64(n)) }

func (m *Metrics) Connected(up bool) {
	if up {
		m.connected.Set(1)
		return
	}
	m.connected.Set(0)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests and for embedding extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
