/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package repository

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/suparena/reactiverepo/query"
	"github.com/suparena/reactiverepo/storagemodels"
)

const (
	// DefaultConcurrency bounds the per-entity driver calls of one bulk
	// operation.
	DefaultConcurrency = 8
	// DefaultBufferSize is how far a sequence runs ahead of its consumer.
	DefaultBufferSize = 16

	tracerName = "github.com/suparena/reactiverepo/repository"
)

// Option configures a Repository.
type Option func(*options)

type options struct {
	logger      *zap.Logger
	queries     []query.Declaration
	concurrency int
	bufferSize  int
	metrics     *Metrics
	tracer      trace.Tracer
	stream      []storagemodels.StreamOption
}

func defaultOptions() options {
	return options{
		logger:      zap.NewNop(),
		concurrency: DefaultConcurrency,
		bufferSize:  DefaultBufferSize,
		tracer:      otel.Tracer(tracerName),
	}
}

// WithLogger sets the logger. Operations log at debug, failures at warn.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithQueries declares the derived queries the repository answers. They are
// derived when the repository is built.
func WithQueries(decls ...query.Declaration) Option {
	return func(o *options) {
		o.queries = append(o.queries, decls...)
	}
}

// WithConcurrency bounds the driver calls SaveAll, DeleteBy and DeleteAll
// keep in flight. Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n >= 1 {
			o.concurrency = n
		}
	}
}

// WithBufferSize sets how many items a sequence buffers ahead of its
// consumer. Zero makes every emission wait for the consumer.
func WithBufferSize(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.bufferSize = n
		}
	}
}

// WithMetrics records operation counts and latencies.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithTracer replaces the tracer from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithStreamOptions passes paging options to every driver scan.
func WithStreamOptions(opts ...storagemodels.StreamOption) Option {
	return func(o *options) {
		o.stream = append(o.stream, opts...)
	}
}
