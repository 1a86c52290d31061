// Package metrics holds the Prometheus collectors of the editor.
package metrics

import (
	"errors"
	"time"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors. Use New to register them.
type Metrics struct {
	storeOps      *prometheus.CounterVec
	storeDuration *prometheus.HistogramVec
	editOps       *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		storeOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strata_store_operations_total",
				Help: "Total number of pipeline store calls",
			},
			[]string{"op", "result"},
		),
		storeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "strata_store_duration_seconds",
				Help:    "Duration of pipeline store calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		editOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strata_edit_operations_total",
				Help: "Total number of pipeline edits by operation and outcome",
			},
			[]string{"op", "result"},
		),
	}
	reg.MustRegister(m.storeOps, m.storeDuration, m.editOps)
	return m
}

// ObserveStore records one store call.
func (m *Metrics) ObserveStore(op string, d time.Duration, err error) {
	m.storeOps.WithLabelValues(op, result(err)).Inc()
	m.storeDuration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveEdit records one edit operation.
func (m *Metrics) ObserveEdit(op string, err error) {
	m.editOps.WithLabelValues(op, result(err)).Inc()
}

// result labels an outcome: "ok", or the error kind in lower case.
func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrInvalidOperation):
		return "invalid_operation"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidState):
		return "invalid_state"
	}
	return "error"
}
