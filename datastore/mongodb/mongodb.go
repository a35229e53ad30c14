/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package mongodb provides a MongoDB implementation of datastore.Driver.
// Each entity type lives in its own collection, named by
// registry.StorageName. Documents are keyed by a compound _id of partition
// key and id, so the same id may exist once per partition.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/suparena/reactiverepo/entity"
	storeerrors "github.com/suparena/reactiverepo/errors"
	"github.com/suparena/reactiverepo/registry"
	"github.com/suparena/reactiverepo/storagemodels"
)

const (
	fieldID        = "_id"
	fieldPartition = "p"
	fieldEntityID  = "i"
)

// Config holds MongoDB connection configuration.
type Config struct {
	URL            string
	Database       string
	ConnectTimeout time.Duration
}

// Connect opens a client and verifies connectivity with a ping.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("mongodb URL is required")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return client, nil
}

// Store implements datastore.Driver[T] on one MongoDB collection.
type Store[T any] struct {
	collection *mongo.Collection
	schema     *entity.Schema
	logger     *zap.Logger
}

// New constructs a Store for T in db. A nil logger disables logging.
func New[T any](db *mongo.Database, logger *zap.Logger) (*Store[T], error) {
	if db == nil {
		return nil, fmt.Errorf("mongodb database is required")
	}
	schema, err := entity.SchemaOf[T]()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	name := registry.StorageName[T]()
	return &Store[T]{
		collection: db.Collection(name),
		schema:     schema,
		logger:     logger.With(zap.String("collection", name)),
	}, nil
}

func documentKey(id, partitionKey string) bson.D {
	return bson.D{
		{Key: fieldPartition, Value: partitionKey},
		{Key: fieldEntityID, Value: id},
	}
}

func keyFilter(id, partitionKey string) bson.D {
	return bson.D{{Key: fieldID, Value: documentKey(id, partitionKey)}}
}

// Put replaces the document stored under e's key, inserting it if absent.
func (s *Store[T]) Put(ctx context.Context, e T) (T, error) {
	var zero T
	if err := entity.Validate(s.schema, e); err != nil {
		return zero, err
	}

	stored := e
	entity.Stamp(&stored, uuid.NewString(), time.Now())
	doc, err := storagemodels.Encode(stored)
	if err != nil {
		return zero, storeerrors.NewValidationError("", err.Error())
	}

	id, pk := s.schema.ID(e), s.schema.PartitionKey(e)
	replacement := bson.M(doc.Clone())
	replacement[fieldID] = documentKey(id, pk)

	_, err = s.collection.ReplaceOne(ctx, keyFilter(id, pk), replacement, options.Replace().SetUpsert(true))
	if err != nil {
		return zero, fmt.Errorf("mongodb replace failed: %w", err)
	}
	return stored, nil
}

// Get returns the document stored under id and partitionKey, or nil.
func (s *Store[T]) Get(ctx context.Context, id, partitionKey string) (*T, error) {
	var raw bson.M
	err := s.collection.FindOne(ctx, keyFilter(id, partitionKey)).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb find failed: %w", err)
	}
	out, _, err := decode[T](raw)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes the document stored under id and partitionKey.
func (s *Store[T]) Delete(ctx context.Context, id, partitionKey string) error {
	res, err := s.collection.DeleteOne(ctx, keyFilter(id, partitionKey))
	if err != nil {
		return fmt.Errorf("mongodb delete failed: %w", err)
	}
	if res.DeletedCount == 0 {
		return storeerrors.NewNotFoundError(s.schema.TypeName(), id)
	}
	return nil
}

// Query streams the documents matching p.
func (s *Store[T]) Query(ctx context.Context, p *storagemodels.Predicate, opts ...storagemodels.StreamOption) <-chan storagemodels.StreamResult[T] {
	return s.stream(ctx, filterFor(p), storagemodels.ApplyStreamOptions(opts...))
}

// ScanAll streams every document of the collection.
func (s *Store[T]) ScanAll(ctx context.Context, opts ...storagemodels.StreamOption) <-chan storagemodels.StreamResult[T] {
	return s.stream(ctx, bson.D{}, storagemodels.ApplyStreamOptions(opts...))
}

func (s *Store[T]) stream(ctx context.Context, filter any, options storagemodels.StreamOptions) <-chan storagemodels.StreamResult[T] {
	resultCh := make(chan storagemodels.StreamResult[T], options.BufferSize)

	go func() {
		defer close(resultCh)

		send := func(r storagemodels.StreamResult[T]) bool {
			select {
			case <-ctx.Done():
				return false
			case resultCh <- r:
				return true
			}
		}

		cursor, err := s.collection.Find(ctx, filter, findOptions(options))
		if err != nil {
			send(storagemodels.StreamResult[T]{Error: fmt.Errorf("mongodb find failed: %w", err)})
			return
		}
		defer cursor.Close(context.Background())

		start := time.Now()
		var index int64
		for cursor.Next(ctx) {
			meta := storagemodels.StreamMeta{
				Index:      index,
				PageNumber: int(index/int64(options.PageSize)) + 1,
				Timestamp:  time.Now(),
			}
			var raw bson.M
			if err := cursor.Decode(&raw); err != nil {
				send(storagemodels.StreamResult[T]{Error: fmt.Errorf("mongodb decode failed: %w", err), Meta: meta})
				return
			}
			item, doc, err := decode[T](raw)
			if err != nil {
				send(storagemodels.StreamResult[T]{Error: err, Meta: meta})
				return
			}
			if !send(storagemodels.StreamResult[T]{Item: item, Raw: doc, Meta: meta}) {
				return
			}
			index++
			if index%int64(options.PageSize) == 0 {
				options.Progress(index, int(index/int64(options.PageSize)), start)
			}
		}
		if err := cursor.Err(); err != nil && ctx.Err() == nil {
			send(storagemodels.StreamResult[T]{Error: fmt.Errorf("mongodb cursor failed: %w", err)})
			return
		}
		s.logger.Debug("mongodb stream finished", zap.Int64("items", index))
	}()

	return resultCh
}

func findOptions(o storagemodels.StreamOptions) *options.FindOptions {
	return options.Find().
		SetBatchSize(o.PageSize).
		SetSort(bson.D{{Key: fieldID, Value: 1}})
}

// Truncate removes every document of the collection.
func (s *Store[T]) Truncate(ctx context.Context) error {
	if _, err := s.collection.DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("mongodb delete many failed: %w", err)
	}
	return nil
}

// Count returns the number of documents in the collection.
func (s *Store[T]) Count(ctx context.Context) (int64, error) {
	n, err := s.collection.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("mongodb count failed: %w", err)
	}
	return n, nil
}

// filterFor renders a predicate as a query filter. A predicate without
// clauses matches every document.
func filterFor(p *storagemodels.Predicate) bson.D {
	if p == nil || len(p.Clauses) == 0 {
		return bson.D{}
	}
	clauses := make(bson.A, len(p.Clauses))
	for i, c := range p.Clauses {
		clauses[i] = bson.D{{Key: c.Key, Value: bson.D{{Key: "$eq", Value: c.Value}}}}
	}
	op := "$and"
	if p.Combinator == storagemodels.Or {
		op = "$or"
	}
	return bson.D{{Key: op, Value: clauses}}
}

// decode drops the compound key and converts the rest into an entity.
func decode[T any](raw bson.M) (T, storagemodels.Document, error) {
	delete(raw, fieldID)
	doc := storagemodels.Document(raw)
	out, err := storagemodels.Decode[T](doc)
	return out, doc, err
}
