// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes the daemon's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all daemon Prometheus metrics.
type Metrics struct {
	// Link events received from the monitor, by direction.
	LinkEvents *prometheus.CounterVec
	// Applies attempted, by outcome ("ok", "error").
	Applies *prometheus.CounterVec
	// Verification failures after otherwise successful applies.
	VerifyFailures prometheus.Counter
	// Reverts generated after failed applies.
	Reverts prometheus.Counter
	// ApplyDuration observes end-to-end apply latency.
	ApplyDuration prometheus.Histogram
	// WatchedIfaces is the current carrier watch-set size.
	WatchedIfaces prometheus.Gauge
}

// New creates the daemon metrics.
func New() *Metrics {
	return &Metrics{
		LinkEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netstate_link_events_total",
			Help: "Link events received from the monitor",
		}, []string{"direction"}),
		Applies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netstate_applies_total",
			Help: "State applies attempted",
		}, []string{"outcome"}),
		VerifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netstate_verify_failures_total",
			Help: "Post-apply verification failures",
		}),
		Reverts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netstate_reverts_total",
			Help: "Revert states generated after failed applies",
		}),
		ApplyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "netstate_apply_duration_seconds",
			Help:    "End-to-end apply latency",
			Buckets: prometheus.DefBuckets,
		}),
		WatchedIfaces: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netstate_watched_ifaces",
			Help: "Interfaces currently watched for carrier changes",
		}),
	}
}

// Register registers every metric with the given registerer.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.LinkEvents, m.Applies, m.VerifyFailures,
		m.Reverts, m.ApplyDuration, m.WatchedIfaces,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
