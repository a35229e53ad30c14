/*
Package datastore defines the storage contract a repository is built on.

Driver[T] is a partition-keyed document store for entity type T:

	type Driver[T any] interface {
	    Put(ctx context.Context, e T) (T, error)
	    Get(ctx context.Context, id, partitionKey string) (*T, error)
	    Delete(ctx context.Context, id, partitionKey string) error
	    Query(ctx context.Context, p *storagemodels.Predicate, opts ...storagemodels.StreamOption) <-chan storagemodels.StreamResult[T]
	    ScanAll(ctx context.Context, opts ...storagemodels.StreamOption) <-chan storagemodels.StreamResult[T]
	}

Drivers may also implement Truncater and Counter when the backend
has a cheaper native form of those operations.

Implementations:
  - memory: in-process maps, for tests and demos
  - ddb: DynamoDB single-table layout
  - mongodb: one MongoDB collection per entity type
  - redis: one Redis hash per entity type
  - factory: builds any of the above from configuration
*/
package datastore
