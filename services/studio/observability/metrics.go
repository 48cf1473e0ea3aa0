// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the studio service.
//
// # Description
//
// Metrics cover the generation lifecycle end to end: lyrics pipeline calls,
// status updates applied or dropped by the synchronizer, push-channel
// reconnects, watchdog timeouts, quota denials, and primary-variation
// switches.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "aleutian"

const studioSubsystem = "studio"

// StudioMetrics holds all Prometheus metrics for the studio service.
// Initialize once at startup via InitMetrics().
type StudioMetrics struct {
	// LyricsRequestsTotal counts pipeline calls by kind and status.
	// Labels: kind (generation, regeneration), status (success, error)
	LyricsRequestsTotal *prometheus.CounterVec

	// UpdatesAppliedTotal counts status updates accepted into task state.
	// Labels: source (push, poll)
	UpdatesAppliedTotal *prometheus.CounterVec

	// UpdatesDroppedTotal counts updates rejected by the ordering rule.
	// Labels: source (push, poll), reason (terminal, lower_rank, stale, wrong_task)
	UpdatesDroppedTotal *prometheus.CounterVec

	// ReconnectsTotal counts push-channel reconnect attempts.
	ReconnectsTotal prometheus.Counter

	// WatchdogTimeoutsTotal counts tasks that exceeded the terminal-state
	// watchdog without completing.
	WatchdogTimeoutsTotal prometheus.Counter

	// ActiveSubscriptions tracks tasks currently being tracked.
	ActiveSubscriptions prometheus.Gauge

	// QuotaDeniedTotal counts requests refused by the local rate gate.
	// Labels: counter (generation, regeneration)
	QuotaDeniedTotal *prometheus.CounterVec

	// PrimarySwitchesTotal counts variation primary switches.
	// Labels: status (success, error, superseded)
	PrimarySwitchesTotal *prometheus.CounterVec

	// TaskDurationSeconds measures submit-to-terminal latency.
	// Labels: status (completed, failed, expired)
	TaskDurationSeconds *prometheus.HistogramVec
}

// DefaultMetrics is the singleton instance, set by InitMetrics().
var DefaultMetrics *StudioMetrics

// InitMetrics creates and registers all studio metrics. Call once at
// startup; a second call panics on duplicate registration.
func InitMetrics() *StudioMetrics {
	DefaultMetrics = &StudioMetrics{
		LyricsRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: studioSubsystem,
				Name:      "lyrics_requests_total",
				Help:      "Lyrics pipeline calls by kind and status",
			},
			[]string{"kind", "status"},
		),

		UpdatesAppliedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: studioSubsystem,
				Name:      "updates_applied_total",
				Help:      "Task status updates accepted, by source",
			},
			[]string{"source"},
		),

		UpdatesDroppedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: studioSubsystem,
				Name:      "updates_dropped_total",
				Help:      "Task status updates rejected by the ordering rule",
			},
			[]string{"source", "reason"},
		),

		ReconnectsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: studioSubsystem,
				Name:      "reconnects_total",
				Help:      "Push-channel reconnect attempts",
			},
		),

		WatchdogTimeoutsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: studioSubsystem,
				Name:      "watchdog_timeouts_total",
				Help:      "Tasks that hit the terminal-state watchdog",
			},
		),

		ActiveSubscriptions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: studioSubsystem,
				Name:      "active_subscriptions",
				Help:      "Generation tasks currently tracked",
			},
		),

		QuotaDeniedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: studioSubsystem,
				Name:      "quota_denied_total",
				Help:      "Requests refused by the local rate gate",
			},
			[]string{"counter"},
		),

		PrimarySwitchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: studioSubsystem,
				Name:      "primary_switches_total",
				Help:      "Primary variation switches by outcome",
			},
			[]string{"status"},
		),

		TaskDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: studioSubsystem,
				Name:      "task_duration_seconds",
				Help:      "Submit-to-terminal latency by terminal status",
				Buckets:   []float64{5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),
	}

	return DefaultMetrics
}

// RecordLyricsRequest records one pipeline call.
func (m *StudioMetrics) RecordLyricsRequest(kind string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.LyricsRequestsTotal.WithLabelValues(kind, status).Inc()
}

// RecordApplied records an accepted status update.
func (m *StudioMetrics) RecordApplied(source string) {
	m.UpdatesAppliedTotal.WithLabelValues(source).Inc()
}

// RecordDropped records a rejected status update.
func (m *StudioMetrics) RecordDropped(source, reason string) {
	m.UpdatesDroppedTotal.WithLabelValues(source, reason).Inc()
}

// RecordQuotaDenied records a rate-gate refusal.
func (m *StudioMetrics) RecordQuotaDenied(counter string) {
	m.QuotaDeniedTotal.WithLabelValues(counter).Inc()
}

// RecordPrimarySwitch records a primary-variation switch outcome.
func (m *StudioMetrics) RecordPrimarySwitch(status string) {
	m.PrimarySwitchesTotal.WithLabelValues(status).Inc()
}
