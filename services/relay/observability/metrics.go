// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the relay.
//
// # Description
//
// Metrics cover the connection lifecycle, the auth funnel, message
// traffic by kind, and the two drop reasons (rate limiting and slow
// consumers). Exposed on /metrics for Prometheus scraping.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all relay metrics.
const metricsNamespace = "adak"

// Subsystem for relay metrics.
const relaySubsystem = "relay"

// RelayMetrics holds all Prometheus metrics for the chat relay.
//
// # Fields
//
//   - ConnectionsActive: Gauge of currently connected chat sessions
//   - ConnectionsTotal: Counter of sessions ever joined
//   - AuthTotal: Counter of auth attempts by action and status
//   - MessagesTotal: Counter of accepted messages by kind
//   - MessagesDroppedTotal: Counter of discarded messages by reason
//   - BroadcastFanout: Histogram of clients reached per broadcast
//   - SendErrorsTotal: Counter of failed socket writes
type RelayMetrics struct {
	// ConnectionsActive tracks currently connected chat sessions.
	ConnectionsActive prometheus.Gauge

	// ConnectionsTotal counts sessions ever joined.
	ConnectionsTotal prometheus.Counter

	// AuthTotal counts auth attempts.
	// Labels: action (login, register), status (success, error)
	AuthTotal *prometheus.CounterVec

	// MessagesTotal counts accepted messages.
	// Labels: kind (broadcast, private, command)
	MessagesTotal *prometheus.CounterVec

	// MessagesDroppedTotal counts discarded messages.
	// Labels: reason (rate_limit, slow_consumer)
	MessagesDroppedTotal *prometheus.CounterVec

	// BroadcastFanout measures clients reached per broadcast.
	BroadcastFanout prometheus.Histogram

	// SendErrorsTotal counts failed socket writes.
	SendErrorsTotal prometheus.Counter
}

// DefaultMetrics is the singleton instance of RelayMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *RelayMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Call once at startup;
// a second call panics on duplicate registration.
//
// # Outputs
//
//   - *RelayMetrics: The initialized metrics instance.
func InitMetrics() *RelayMetrics {
	DefaultMetrics = &RelayMetrics{
		ConnectionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: relaySubsystem,
				Name:      "connections_active",
				Help:      "Number of currently connected chat sessions",
			},
		),

		ConnectionsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: relaySubsystem,
				Name:      "connections_total",
				Help:      "Total chat sessions ever joined",
			},
		),

		AuthTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: relaySubsystem,
				Name:      "auth_total",
				Help:      "Total auth attempts by action and status",
			},
			[]string{"action", "status"},
		),

		MessagesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: relaySubsystem,
				Name:      "messages_total",
				Help:      "Total accepted messages by kind",
			},
			[]string{"kind"},
		),

		MessagesDroppedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: relaySubsystem,
				Name:      "messages_dropped_total",
				Help:      "Total discarded messages by reason",
			},
			[]string{"reason"},
		),

		BroadcastFanout: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: relaySubsystem,
				Name:      "broadcast_fanout",
				Help:      "Clients reached per broadcast",
				Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
			},
		),

		SendErrorsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: relaySubsystem,
				Name:      "send_errors_total",
				Help:      "Total failed socket writes",
			},
		),
	}

	return DefaultMetrics
}

// NewTestMetrics creates an unregistered metrics instance for tests, so
// parallel test packages do not fight over the default registry.
func NewTestMetrics() *RelayMetrics {
	return &RelayMetrics{
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_connections_active"}),
		ConnectionsTotal:  prometheus.NewCounter(prometheus.CounterOpts{Name: "test_connections_total"}),
		AuthTotal: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_auth_total"},
			[]string{"action", "status"}),
		MessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_messages_total"},
			[]string{"kind"}),
		MessagesDroppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_messages_dropped_total"},
			[]string{"reason"}),
		BroadcastFanout: prometheus.NewHistogram(prometheus.HistogramOpts{Name: "test_broadcast_fanout"}),
		SendErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{Name: "test_send_errors_total"}),
	}
}

// =============================================================================
// Label Values
// =============================================================================

// MessageKind labels accepted messages.
type MessageKind string

const (
	// KindBroadcast is a room message fanned out to everyone else.
	KindBroadcast MessageKind = "broadcast"

	// KindPrivate is a /pm delivery.
	KindPrivate MessageKind = "private"

	// KindCommand is a /users style request answered to the sender only.
	KindCommand MessageKind = "command"
)

// DropReason labels discarded messages.
type DropReason string

const (
	// DropRateLimit means the sender exceeded the flood limit.
	DropRateLimit DropReason = "rate_limit"

	// DropSlowConsumer means the receiver's send buffer was full.
	DropSlowConsumer DropReason = "slow_consumer"
)

// =============================================================================
// Helper Methods
// =============================================================================

// ClientJoined records a session join.
func (m *RelayMetrics) ClientJoined() {
	m.ConnectionsActive.Inc()
	m.ConnectionsTotal.Inc()
}

// ClientLeft records a session leave.
func (m *RelayMetrics) ClientLeft() {
	m.ConnectionsActive.Dec()
}

// RecordAuth records an auth attempt.
func (m *RelayMetrics) RecordAuth(action string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.AuthTotal.WithLabelValues(action, status).Inc()
}

// RecordMessage records an accepted message.
func (m *RelayMetrics) RecordMessage(kind MessageKind) {
	m.MessagesTotal.WithLabelValues(string(kind)).Inc()
}

// MessageDropped records a discarded message.
func (m *RelayMetrics) MessageDropped(reason DropReason) {
	m.MessagesDroppedTotal.WithLabelValues(string(reason)).Inc()
}

// RecordFanout records how many clients a broadcast reached.
func (m *RelayMetrics) RecordFanout(reached int) {
	m.BroadcastFanout.Observe(float64(reached))
}

// SendError records a failed socket write.
func (m *RelayMetrics) SendError() {
	m.SendErrorsTotal.Inc()
}
