/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package repository

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/suparena/reactiverepo/datastore"
	"github.com/suparena/reactiverepo/entity"
	"github.com/suparena/reactiverepo/errors"
	"github.com/suparena/reactiverepo/query"
	"github.com/suparena/reactiverepo/storagemodels"
)

// Operation names, as used in errors, logs, metrics and spans.
const (
	OpSave      = "save"
	OpSaveAll   = "saveAll"
	OpFindByID  = "findById"
	OpFindAll   = "findAll"
	OpFind      = "find"
	OpFindOne   = "findOne"
	OpDelete    = "delete"
	OpDeleteBy  = "deleteBy"
	OpDeleteAll = "deleteAll"
	OpCount     = "count"
	OpExists    = "existsById"
)

// Repository is the reactive CRUD and derived-query surface for entity
// type T. Every method returns a result handle immediately and does its
// driver work on other goroutines. A Repository holds no state besides its
// derived query table and is safe for concurrent use.
type Repository[T any] struct {
	driver      datastore.Driver[T]
	schema      *entity.Schema
	queries     *query.Table
	logger      *zap.Logger
	metrics     *Metrics
	tracer      trace.Tracer
	concurrency int
	bufferSize  int
	stream      []storagemodels.StreamOption
}

// New builds a repository over driver. Every query declared with
// WithQueries is derived here; a malformed declaration fails construction
// with a QueryDerivationError.
func New[T any](driver datastore.Driver[T], opts ...Option) (*Repository[T], error) {
	if driver == nil {
		return nil, errors.NewValidationError("driver", "driver is required")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	schema, err := entity.SchemaOf[T]()
	if err != nil {
		return nil, err
	}
	table, err := query.NewTable(schema, o.queries...)
	if err != nil {
		return nil, err
	}

	r := &Repository[T]{
		driver:      driver,
		schema:      schema,
		queries:     table,
		logger:      o.logger.With(zap.String("entity_type", schema.TypeName())),
		metrics:     o.metrics,
		tracer:      o.tracer,
		concurrency: o.concurrency,
		bufferSize:  o.bufferSize,
		stream:      o.stream,
	}
	r.logger.Debug("repository ready", zap.Strings("queries", table.Names()))
	return r, nil
}

// Schema returns the reflected entity schema.
func (r *Repository[T]) Schema() *entity.Schema {
	return r.schema
}

// Queries returns the names of the declared queries, sorted.
func (r *Repository[T]) Queries() []string {
	return r.queries.Names()
}

// Descriptor returns the derived form of a declared query.
func (r *Repository[T]) Descriptor(name string) (*query.Descriptor, bool) {
	return r.queries.Lookup(name)
}

// begin opens the span for one operation and returns the function that
// closes it, recording metrics and logging the outcome.
func (r *Repository[T]) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "repository."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("entity.type", r.schema.TypeName())),
		trace.WithAttributes(attrs...),
	)

	fields := make([]zap.Field, 0, len(attrs)+1)
	fields = append(fields, zap.String("op", op))
	for _, a := range attrs {
		fields = append(fields, zap.String(string(a.Key), a.Value.Emit()))
	}
	log := r.logger.With(fields...)
	log.Debug("operation started")

	return ctx, func(err error) {
		r.metrics.observe(r.schema.TypeName(), op, start, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			log.Warn("operation failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		} else {
			log.Debug("operation finished", zap.Duration("elapsed", time.Since(start)))
		}
		span.End()
	}
}

// descriptor resolves a declared query and checks it is called through the
// entry point matching its cardinality.
func (r *Repository[T]) descriptor(name string, want query.Cardinality, args []any) (*query.Descriptor, *storagemodels.Predicate, error) {
	d, ok := r.queries.Lookup(name)
	if !ok {
		return nil, nil, errors.NewValidationError("query", fmt.Sprintf("%s declares no query %q", r.schema.TypeName(), name))
	}
	if d.Cardinality() != want {
		return nil, nil, errors.NewValidationError("query", fmt.Sprintf("query %q yields %s, not %s", name, d.Cardinality(), want))
	}
	p, err := d.Bind(args...)
	if err != nil {
		return nil, nil, err
	}
	return d, p, nil
}
