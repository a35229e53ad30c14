/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package repository

import (
	"context"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/suparena/reactiverepo/datastore"
	"github.com/suparena/reactiverepo/entity"
	"github.com/suparena/reactiverepo/errors"
	"github.com/suparena/reactiverepo/reactive"
	"github.com/suparena/reactiverepo/storagemodels"
)

// Save inserts or replaces e and resolves to the stored entity, with any
// driver-assigned fields merged in. An entity without an id fails with a
// validation error before the driver is called.
func (r *Repository[T]) Save(ctx context.Context, e T) *reactive.Future[T] {
	id := r.schema.ID(e)
	if err := entity.Validate(r.schema, e); err != nil {
		return reactive.Failed[T](err)
	}
	return reactive.Go(ctx, func(ctx context.Context) (T, bool, error) {
		ctx, end := r.begin(ctx, OpSave, attribute.String("entity.id", id))
		saved, err := r.put(ctx, OpSave, e)
		end(err)
		return saved, err == nil, err
	})
}

func (r *Repository[T]) put(ctx context.Context, op string, e T) (T, error) {
	if err := entity.Validate(r.schema, e); err != nil {
		var zero T
		return zero, err
	}
	saved, err := r.driver.Put(ctx, e)
	if err != nil {
		var zero T
		return zero, errors.NewStoreError(op, r.schema.ID(e), err)
	}
	return saved, nil
}

// SaveAll saves every entity, keeping up to the configured concurrency of
// writes in flight, and emits each stored entity as its write completes.
// Emission order is completion order. The first failure stops new writes;
// writes already in flight finish and their entities are still emitted
// before the sequence fails.
func (r *Repository[T]) SaveAll(ctx context.Context, entities []T) *reactive.Sequence[T] {
	return reactive.Stream(ctx, r.bufferSize, func(ctx context.Context, emit reactive.Emit[T]) error {
		ctx, end := r.begin(ctx, OpSaveAll, attribute.Int("entity.count", len(entities)))

		var stop atomic.Bool
		p := pool.New().WithErrors().WithFirstError().WithMaxGoroutines(r.concurrency)
		for _, e := range entities {
			if stop.Load() {
				break
			}
			p.Go(func() error {
				if stop.Load() {
					return nil
				}
				saved, err := r.put(ctx, OpSaveAll, e)
				if err != nil {
					stop.Store(true)
					return err
				}
				if !emit(saved) {
					stop.Store(true)
					return nil
				}
				r.metrics.emitted(r.schema.TypeName(), OpSaveAll)
				return nil
			})
		}
		err := p.Wait()
		end(err)
		return err
	})
}

// FindByID resolves to the entity stored under id, or to absent. Absence is
// not an error. For types with their own partition key the partition is
// unknown, so the lookup becomes a query on the id attribute; use
// FindByIDInPartition when the partition key is at hand.
func (r *Repository[T]) FindByID(ctx context.Context, id string) *reactive.Future[T] {
	return r.FindByIDInPartition(ctx, id, "")
}

// FindByIDInPartition is FindByID with a partition-key hint. An empty
// partitionKey behaves like FindByID.
func (r *Repository[T]) FindByIDInPartition(ctx context.Context, id, partitionKey string) *reactive.Future[T] {
	if id == "" {
		return reactive.Failed[T](errors.NewValidationError(r.schema.IDAttribute().Name, "id is required"))
	}
	return reactive.Go(ctx, func(ctx context.Context) (T, bool, error) {
		ctx, end := r.begin(ctx, OpFindByID, attribute.String("entity.id", id))
		found, ok, err := r.get(ctx, id, partitionKey)
		end(err)
		return found, ok, err
	})
}

func (r *Repository[T]) get(ctx context.Context, id, partitionKey string) (T, bool, error) {
	var zero T
	if partitionKey == "" && !r.schema.HasPartitionKey() {
		partitionKey = id
	}
	if partitionKey != "" {
		found, err := r.driver.Get(ctx, id, partitionKey)
		if err != nil {
			return zero, false, errors.NewStoreError(OpFindByID, id, err)
		}
		if found == nil {
			return zero, false, nil
		}
		return *found, true, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	byID := &storagemodels.Predicate{
		Combinator: storagemodels.And,
		Clauses: []storagemodels.Clause{{
			Key:        r.schema.IDAttribute().Key,
			Comparator: storagemodels.Equal,
			Value:      id,
		}},
	}
	for res := range r.driver.Query(ctx, byID, r.stream...) {
		if res.Error != nil {
			return zero, false, errors.NewStoreError(OpFindByID, id, res.Error)
		}
		return res.Item, true, nil
	}
	return zero, false, nil
}

// ExistsByID resolves to whether an entity is stored under id.
func (r *Repository[T]) ExistsByID(ctx context.Context, id string) *reactive.Future[bool] {
	if id == "" {
		return reactive.Failed[bool](errors.NewValidationError(r.schema.IDAttribute().Name, "id is required"))
	}
	return reactive.Go(ctx, func(ctx context.Context) (bool, bool, error) {
		ctx, end := r.begin(ctx, OpExists, attribute.String("entity.id", id))
		_, ok, err := r.get(ctx, id, "")
		end(err)
		return ok, err == nil, err
	})
}

// FindAll streams every stored entity of the type in driver order.
func (r *Repository[T]) FindAll(ctx context.Context) *reactive.Sequence[T] {
	return reactive.Stream(ctx, r.bufferSize, func(ctx context.Context, emit reactive.Emit[T]) error {
		ctx, end := r.begin(ctx, OpFindAll)
		_, err := r.forward(OpFindAll, r.driver.ScanAll(ctx, r.stream...), emit)
		end(err)
		return err
	})
}

// forward relays a driver stream into emit and reports how many items the
// consumer took. It returns when the stream ends, fails, or the consumer
// goes away; the driver stops on its own once the shared context is done.
func (r *Repository[T]) forward(op string, results <-chan storagemodels.StreamResult[T], emit reactive.Emit[T]) (int, error) {
	n := 0
	for res := range results {
		if res.Error != nil {
			return n, errors.NewStoreError(op, "", res.Error)
		}
		if !emit(res.Item) {
			return n, nil
		}
		n++
		r.metrics.emitted(r.schema.TypeName(), op)
	}
	return n, nil
}

// Delete removes e. The future resolves once the driver acknowledged the
// delete, and fails with a StoreError wrapping ErrNotFound when nothing was
// stored under e's key.
func (r *Repository[T]) Delete(ctx context.Context, e T) *reactive.Future[struct{}] {
	if err := entity.Validate(r.schema, e); err != nil {
		return reactive.Failed[struct{}](err)
	}
	return r.DeleteByID(ctx, r.schema.ID(e), r.schema.PartitionKey(e))
}

// DeleteByID removes the entity stored under id in partitionKey. An empty
// partitionKey means the id is its own partition.
func (r *Repository[T]) DeleteByID(ctx context.Context, id, partitionKey string) *reactive.Future[struct{}] {
	if id == "" {
		return reactive.Failed[struct{}](errors.NewValidationError(r.schema.IDAttribute().Name, "id is required"))
	}
	if partitionKey == "" {
		partitionKey = id
	}
	return reactive.Go(ctx, func(ctx context.Context) (struct{}, bool, error) {
		ctx, end := r.begin(ctx, OpDelete, attribute.String("entity.id", id))
		err := errors.NewStoreError(OpDelete, id, r.driver.Delete(ctx, id, partitionKey))
		end(err)
		return struct{}{}, err == nil, err
	})
}

// DeleteAll removes every stored entity of the type. Drivers that can drop
// a whole type at once do so; otherwise every entity is scanned and deleted
// with bounded concurrency. Entities removed concurrently by someone else
// are not an error.
func (r *Repository[T]) DeleteAll(ctx context.Context) *reactive.Future[struct{}] {
	return reactive.Go(ctx, func(ctx context.Context) (struct{}, bool, error) {
		ctx, end := r.begin(ctx, OpDeleteAll)
		err := r.deleteAll(ctx)
		end(err)
		return struct{}{}, err == nil, err
	})
}

func (r *Repository[T]) deleteAll(ctx context.Context) error {
	if t, ok := r.driver.(datastore.Truncater); ok {
		return errors.NewStoreError(OpDeleteAll, "", t.Truncate(ctx))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := pool.New().WithErrors().WithFirstError().WithMaxGoroutines(r.concurrency)
	var stop atomic.Bool
	for res := range r.driver.ScanAll(ctx, r.stream...) {
		if res.Error != nil {
			p.Go(func() error { return errors.NewStoreError(OpDeleteAll, "", res.Error) })
			break
		}
		if stop.Load() {
			break
		}
		item := res.Item
		p.Go(func() error {
			id := r.schema.ID(item)
			err := r.driver.Delete(ctx, id, r.schema.PartitionKey(item))
			if err == nil || errors.IsNotFound(err) {
				return nil
			}
			stop.Store(true)
			return errors.NewStoreError(OpDeleteAll, id, err)
		})
	}
	return p.Wait()
}

// Count resolves to the number of stored entities of the type.
func (r *Repository[T]) Count(ctx context.Context) *reactive.Future[int64] {
	return reactive.Go(ctx, func(ctx context.Context) (int64, bool, error) {
		ctx, end := r.begin(ctx, OpCount)
		n, err := r.count(ctx)
		if err == nil {
			r.logger.Debug("counted", zap.Int64("count", n))
		}
		end(err)
		return n, err == nil, err
	})
}

func (r *Repository[T]) count(ctx context.Context) (int64, error) {
	if c, ok := r.driver.(datastore.Counter); ok {
		n, err := c.Count(ctx)
		return n, errors.NewStoreError(OpCount, "", err)
	}
	var n int64
	for res := range r.driver.ScanAll(ctx, r.stream...) {
		if res.Error != nil {
			return 0, errors.NewStoreError(OpCount, "", res.Error)
		}
		n++
	}
	return n, nil
}
