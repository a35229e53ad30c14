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

	"github.com/suparena/reactiverepo/errors"
	"github.com/suparena/reactiverepo/query"
	"github.com/suparena/reactiverepo/reactive"
)

// Find runs the declared many-result query name with positional args and
// streams every match in driver order.
func (r *Repository[T]) Find(ctx context.Context, name string, args ...any) *reactive.Sequence[T] {
	_, p, err := r.descriptor(name, query.Many, args)
	if err != nil {
		return reactive.Fail[T](err)
	}
	return reactive.Stream(ctx, r.bufferSize, func(ctx context.Context, emit reactive.Emit[T]) error {
		ctx, end := r.begin(ctx, OpFind, attribute.String("query", name))
		_, err := r.forward(OpFind, r.driver.Query(ctx, p, r.stream...), emit)
		end(err)
		return err
	})
}

// FindOne runs the declared single-result query name and resolves to the
// first match, or to absent.
func (r *Repository[T]) FindOne(ctx context.Context, name string, args ...any) *reactive.Future[T] {
	_, p, err := r.descriptor(name, query.Single, args)
	if err != nil {
		return reactive.Failed[T](err)
	}
	return reactive.Go(ctx, func(ctx context.Context) (T, bool, error) {
		ctx, end := r.begin(ctx, OpFindOne, attribute.String("query", name))
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		var zero T
		for res := range r.driver.Query(ctx, p, r.stream...) {
			if res.Error != nil {
				err := errors.NewStoreError(OpFindOne, name, res.Error)
				end(err)
				return zero, false, err
			}
			end(nil)
			return res.Item, true, nil
		}
		end(nil)
		return zero, false, nil
	})
}

// DeleteBy runs the declared delete query name: every entity matching args
// is deleted and emitted once its delete was acknowledged, so the sequence
// never reports an entity that is still stored. Entities that vanish between
// the read and the delete are skipped. The first failed delete stops new
// deletes and fails the sequence after the in-flight ones finish.
func (r *Repository[T]) DeleteBy(ctx context.Context, name string, args ...any) *reactive.Sequence[T] {
	_, p, err := r.descriptor(name, query.DeleteMany, args)
	if err != nil {
		return reactive.Fail[T](err)
	}
	return reactive.Stream(ctx, r.bufferSize, func(ctx context.Context, emit reactive.Emit[T]) error {
		ctx, end := r.begin(ctx, OpDeleteBy, attribute.String("query", name))

		scanCtx, cancelScan := context.WithCancel(ctx)
		defer cancelScan()

		var (
			stop    atomic.Bool
			deleted atomic.Int64
		)
		workers := pool.New().WithErrors().WithFirstError().WithMaxGoroutines(r.concurrency)
		for res := range r.driver.Query(scanCtx, p, r.stream...) {
			if res.Error != nil {
				workers.Go(func() error { return errors.NewStoreError(OpDeleteBy, name, res.Error) })
				break
			}
			if stop.Load() {
				break
			}
			item := res.Item
			workers.Go(func() error {
				if stop.Load() {
					return nil
				}
				id := r.schema.ID(item)
				if err := r.driver.Delete(ctx, id, r.schema.PartitionKey(item)); err != nil {
					if errors.IsNotFound(err) {
						r.logger.Debug("matched entity already gone", zap.String("query", name), zap.String("id", id))
						return nil
					}
					stop.Store(true)
					return errors.NewStoreError(OpDeleteBy, id, err)
				}
				deleted.Add(1)
				if !emit(item) {
					stop.Store(true)
					return nil
				}
				r.metrics.emitted(r.schema.TypeName(), OpDeleteBy)
				return nil
			})
		}
		cancelScan()
		err := workers.Wait()
		if err == nil {
			r.logger.Debug("derived delete finished", zap.String("query", name), zap.Int64("deleted", deleted.Load()))
		}
		end(err)
		return err
	})
}
