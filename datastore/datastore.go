/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datastore

import (
	"context"

	"github.com/suparena/reactiverepo/storagemodels"
)

// Driver is the partition-keyed document store a repository runs on. Every
// method is safe for concurrent use.
type Driver[T any] interface {
	// Put stores e under its id and partition key, replacing any prior
	// version, and returns the entity as stored.
	Put(ctx context.Context, e T) (T, error)

	// Get reads one entity. A missing entity is (nil, nil), never an error.
	Get(ctx context.Context, id, partitionKey string) (*T, error)

	// Delete removes one entity. It returns a NotFoundError when nothing
	// was stored under the key.
	Delete(ctx context.Context, id, partitionKey string) error

	// Query streams every entity matching p across all partitions. The
	// channel is closed when the scan ends; a failure is sent as the last
	// result. Cancelling ctx stops the scan.
	Query(ctx context.Context, p *storagemodels.Predicate, opts ...storagemodels.StreamOption) <-chan storagemodels.StreamResult[T]

	// ScanAll streams every stored entity of the type.
	ScanAll(ctx context.Context, opts ...storagemodels.StreamOption) <-chan storagemodels.StreamResult[T]
}

// Truncater is implemented by drivers that can drop every entity of the type
// in one request.
type Truncater interface {
	Truncate(ctx context.Context) error
}

// Counter is implemented by drivers that can count entities without
// streaming them.
type Counter interface {
	Count(ctx context.Context) (int64, error)
}
