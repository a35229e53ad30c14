/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package repository

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

// Metrics holds the Prometheus collectors shared by every repository built
// with it. Labels are the entity type and the operation name.
type Metrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	items      *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. Collectors
// already registered under the same names are reused, so repositories for
// several entity types can share one registry.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "repository",
			Name:      "operations_total",
			Help:      "Repository operations by entity type, operation and outcome.",
		}, []string{"entity", "operation", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "repository",
			Name:      "operation_duration_seconds",
			Help:      "Time from issuing an operation to its result handle resolving.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"entity", "operation"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "repository",
			Name:      "items_emitted_total",
			Help:      "Entities emitted by sequence operations.",
		}, []string{"entity", "operation"}),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.operations, err = register(reg, m.operations); err != nil {
		return nil, err
	}
	if m.latency, err = register(reg, m.latency); err != nil {
		return nil, err
	}
	if m.items, err = register(reg, m.items); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return c, nil
}

func (m *Metrics) observe(entity, op string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := outcomeOK
	if err != nil {
		outcome = outcomeError
	}
	m.operations.WithLabelValues(entity, op, outcome).Inc()
	m.latency.WithLabelValues(entity, op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) emitted(entity, op string) {
	if m == nil {
		return
	}
	m.items.WithLabelValues(entity, op).Inc()
}
