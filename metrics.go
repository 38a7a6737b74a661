// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package agent

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes the agent's own operational counters on a private registry,
// so the agent never pollutes (or clashes with) the default global registry.
type Metrics struct {
	registry *prometheus.Registry

	// GetsTotal counts Get RPCs served, by result
	GetsTotal *prometheus.CounterVec

	// SetsTotal counts Set RPCs served, by result
	SetsTotal *prometheus.CounterVec

	// ReloadSeconds observes the time spent waiting for reload confirmation
	ReloadSeconds prometheus.Histogram

	// LastCommitTimestamp is the Unix time of the last successful replace
	LastCommitTimestamp prometheus.Gauge

	// ExternalEdits counts config file modifications not made by the agent
	ExternalEdits prometheus.Counter
}

// NewMetrics creates and registers the agent metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		GetsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gnmi_agent_gets_total",
			Help: "Number of gNMI Get RPCs served, by result.",
		}, []string{"result"}),
		SetsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gnmi_agent_sets_total",
			Help: "Number of gNMI Set RPCs served, by result.",
		}, []string{"result"}),
		ReloadSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gnmi_agent_reload_seconds",
			Help:    "Time spent waiting for the daemon to confirm a reload.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		LastCommitTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gnmi_agent_last_commit_timestamp_seconds",
			Help: "Unix time of the last successful configuration replace.",
		}),
		ExternalEdits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gnmi_agent_external_edits_total",
			Help: "Configuration file modifications not made by the agent.",
		}),
	}

	registry.MustRegister(
		m.GetsTotal,
		m.SetsTotal,
		m.ReloadSeconds,
		m.LastCommitTimestamp,
		m.ExternalEdits,
	)

	return m
}

// Handler returns an HTTP handler serving the agent metrics in Prometheus
// text exposition format.
//
// Example:
//
//	http.Handle("/metrics", metrics.Handler())
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
