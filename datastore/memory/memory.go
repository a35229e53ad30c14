/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package memory provides an in-process datastore.Driver backed by maps.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/suparena/reactiverepo/entity"
	"github.com/suparena/reactiverepo/errors"
	"github.com/suparena/reactiverepo/storagemodels"
)

type key struct {
	partition string
	id        string
}

// Store is an in-memory driver for entity type T. Entities are kept in
// document form, so reads never alias caller-owned values.
type Store[T any] struct {
	schema *entity.Schema

	mu   sync.RWMutex
	data map[key]storagemodels.Document
	// order keeps insertion order so scans are repeatable in tests.
	order []key

	putFunc     func(e T) error
	getError    error
	deleteError error
	streamAfter int
	streamError error
}

// New creates an empty store for T.
func New[T any]() (*Store[T], error) {
	schema, err := entity.SchemaOf[T]()
	if err != nil {
		return nil, err
	}
	return &Store[T]{
		schema: schema,
		data:   make(map[key]storagemodels.Document),
	}, nil
}

// WithPutError makes every Put fail with err.
func (m *Store[T]) WithPutError(err error) *Store[T] {
	return m.WithPutFunc(func(T) error { return err })
}

// WithPutFunc runs f before every Put; a non-nil result fails that Put.
func (m *Store[T]) WithPutFunc(f func(e T) error) *Store[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putFunc = f
	return m
}

// WithGetError makes every Get fail with err.
func (m *Store[T]) WithGetError(err error) *Store[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getError = err
	return m
}

// WithDeleteError makes every Delete fail with err.
func (m *Store[T]) WithDeleteError(err error) *Store[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteError = err
	return m
}

// WithStreamError makes scans fail with err after delivering n items.
func (m *Store[T]) WithStreamError(n int, err error) *Store[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamAfter, m.streamError = n, err
	return m
}

// Put stores e, replacing any entity with the same id and partition key.
func (m *Store[T]) Put(ctx context.Context, e T) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if err := entity.Validate(m.schema, e); err != nil {
		return zero, err
	}

	m.mu.RLock()
	putFunc := m.putFunc
	m.mu.RUnlock()
	if putFunc != nil {
		if err := putFunc(e); err != nil {
			return zero, err
		}
	}

	stored := e
	entity.Stamp(&stored, uuid.NewString(), time.Now())
	doc, err := storagemodels.Encode(stored)
	if err != nil {
		return zero, errors.NewValidationError("", err.Error())
	}

	k := key{partition: m.schema.PartitionKey(e), id: m.schema.ID(e)}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.data[k]; !exists {
		m.order = append(m.order, k)
	}
	m.data[k] = doc
	return stored, nil
}

// Get returns the entity stored under id and partitionKey, or nil.
func (m *Store[T]) Get(ctx context.Context, id, partitionKey string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	if m.getError != nil {
		defer m.mu.RUnlock()
		return nil, m.getError
	}
	doc, ok := m.data[key{partition: partitionKey, id: id}]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	out, err := storagemodels.Decode[T](doc)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes the entity stored under id and partitionKey.
func (m *Store[T]) Delete(ctx context.Context, id, partitionKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteError != nil {
		return m.deleteError
	}

	k := key{partition: partitionKey, id: id}
	if _, exists := m.data[k]; !exists {
		return errors.NewNotFoundError(m.schema.TypeName(), id)
	}
	delete(m.data, k)
	for i, o := range m.order {
		if o == k {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// Query streams the entities whose documents match p.
func (m *Store[T]) Query(ctx context.Context, p *storagemodels.Predicate, opts ...storagemodels.StreamOption) <-chan storagemodels.StreamResult[T] {
	return m.stream(ctx, p, storagemodels.ApplyStreamOptions(opts...))
}

// ScanAll streams every stored entity.
func (m *Store[T]) ScanAll(ctx context.Context, opts ...storagemodels.StreamOption) <-chan storagemodels.StreamResult[T] {
	return m.stream(ctx, nil, storagemodels.ApplyStreamOptions(opts...))
}

// stream works on a snapshot so concurrent writes, including deletes issued
// by the consumer, never block on the scan.
func (m *Store[T]) stream(ctx context.Context, p *storagemodels.Predicate, options storagemodels.StreamOptions) <-chan storagemodels.StreamResult[T] {
	resultChan := make(chan storagemodels.StreamResult[T], options.BufferSize)

	m.mu.RLock()
	snapshot := make([]storagemodels.Document, 0, len(m.order))
	for _, k := range m.order {
		snapshot = append(snapshot, m.data[k])
	}
	failAfter, failErr := m.streamAfter, m.streamError
	m.mu.RUnlock()

	go func() {
		defer close(resultChan)

		send := func(r storagemodels.StreamResult[T]) bool {
			select {
			case resultChan <- r:
				return true
			case <-ctx.Done():
				return false
			}
		}

		start := time.Now()
		var index int64
		for _, doc := range snapshot {
			if !p.Match(doc) {
				continue
			}
			if failErr != nil && index >= int64(failAfter) {
				send(storagemodels.StreamResult[T]{Error: failErr})
				return
			}
			item, err := storagemodels.Decode[T](doc)
			if err != nil {
				send(storagemodels.StreamResult[T]{Error: err})
				return
			}
			if !send(storagemodels.StreamResult[T]{
				Item: item,
				Raw:  doc,
				Meta: storagemodels.StreamMeta{
					Index:      index,
					PageNumber: 1,
					Timestamp:  time.Now(),
				},
			}) {
				return
			}
			index++
		}
		if failErr != nil {
			send(storagemodels.StreamResult[T]{Error: failErr})
			return
		}
		options.Progress(index, 1, start)
	}()

	return resultChan
}

// Truncate removes every entity.
func (m *Store[T]) Truncate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[key]storagemodels.Document)
	m.order = nil
	return nil
}

// Count returns the number of stored entities.
func (m *Store[T]) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.data)), nil
}

// Len reports the number of stored entities without a context.
func (m *Store[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Documents returns a copy of the stored documents, in insertion order.
func (m *Store[T]) Documents() []storagemodels.Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]storagemodels.Document, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, m.data[k].Clone())
	}
	return out
}
