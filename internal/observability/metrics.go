// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/formdeck/formdeck/internal/auth"
)

// Metrics holds the FormDeck collectors.
type Metrics struct {
	AuthEvents      *prometheus.CounterVec
	AccountLockouts prometheus.Counter
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

// NewMetrics creates the FormDeck collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formdeck_auth_events_total",
				Help: "Authentication operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		AccountLockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formdeck_account_lockouts_total",
			Help: "Accounts locked after too many failed logins",
		}),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formdeck_http_requests_total",
				Help: "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "formdeck_http_request_duration_seconds",
				Help:    "HTTP request latency by method and route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	reg.MustRegister(m.AuthEvents, m.AccountLockouts, m.HTTPRequests, m.HTTPDuration)
	return m
}

// RecordAuthEvent implements auth.EventRecorder.
func (m *Metrics) RecordAuthEvent(operation, outcome string) {
	m.AuthEvents.WithLabelValues(operation, outcome).Inc()
}

// RecordLockout implements auth.EventRecorder.
func (m *Metrics) RecordLockout() {
	m.AccountLockouts.Inc()
}

// ObserveHTTP records one finished request. Unmatched routes should be
// passed as "unmatched" so path cardinality stays bounded.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

var _ auth.EventRecorder = (*Metrics)(nil)
