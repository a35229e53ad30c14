/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package redis provides a Redis implementation of datastore.Driver. Each
// entity type is one hash; fields address an entity by partition key and id
// and hold its JSON document. Derived queries scan the hash and match in
// process.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/suparena/reactiverepo/entity"
	storeerrors "github.com/suparena/reactiverepo/errors"
	"github.com/suparena/reactiverepo/registry"
	"github.com/suparena/reactiverepo/storagemodels"
)

// DefaultPrefix namespaces the hashes written by the store.
const DefaultPrefix = "reactiverepo"

// fieldSeparator cannot appear in a printable partition key.
const fieldSeparator = "\x1f"

// Client is the subset of the go-redis API the store uses.
type Client interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
	HScan(ctx context.Context, key string, cursor uint64, match string, count int64) *redis.ScanCmd
	HLen(ctx context.Context, key string) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Config holds Redis connection configuration.
type Config struct {
	URL              string
	MaxConns         int
	OperationTimeout time.Duration
}

// Connect parses cfg.URL, opens a pooled client and pings it.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		opts.PoolSize = cfg.MaxConns
	}
	if cfg.OperationTimeout > 0 {
		opts.ReadTimeout = cfg.OperationTimeout
		opts.WriteTimeout = cfg.OperationTimeout
	}
	opts.DialTimeout = 5 * time.Second

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// Store implements datastore.Driver[T] on one Redis hash.
type Store[T any] struct {
	client Client
	key    string
	schema *entity.Schema
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*options)

type options struct {
	prefix string
	logger *zap.Logger
}

// WithPrefix replaces DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithLogger sets the store's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New constructs a Store for T. The hash is <prefix>:<storage name>.
func New[T any](client Client, opts ...Option) (*Store[T], error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	o := options{prefix: DefaultPrefix, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	schema, err := entity.SchemaOf[T]()
	if err != nil {
		return nil, err
	}

	key := registry.StorageName[T]()
	if o.prefix != "" {
		key = o.prefix + ":" + key
	}
	return &Store[T]{
		client: client,
		key:    key,
		schema: schema,
		logger: o.logger.With(zap.String("hash", key)),
	}, nil
}

// Key returns the hash the store writes to.
func (s *Store[T]) Key() string {
	return s.key
}

func field(id, partitionKey string) string {
	return partitionKey + fieldSeparator + id
}

// Put writes e's document, replacing any prior version.
func (s *Store[T]) Put(ctx context.Context, e T) (T, error) {
	var zero T
	if err := entity.Validate(s.schema, e); err != nil {
		return zero, err
	}

	stored := e
	entity.Stamp(&stored, uuid.NewString(), time.Now())
	raw, err := json.Marshal(stored)
	if err != nil {
		return zero, storeerrors.NewValidationError("", err.Error())
	}

	f := field(s.schema.ID(e), s.schema.PartitionKey(e))
	if err := s.client.HSet(ctx, s.key, f, raw).Err(); err != nil {
		return zero, fmt.Errorf("redis HSET failed: %w", err)
	}
	return stored, nil
}

// Get returns the entity stored under id and partitionKey, or nil.
func (s *Store[T]) Get(ctx context.Context, id, partitionKey string) (*T, error) {
	raw, err := s.client.HGet(ctx, s.key, field(id, partitionKey)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis HGET failed: %w", err)
	}
	out, _, err := decode[T](raw)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes the entity stored under id and partitionKey.
func (s *Store[T]) Delete(ctx context.Context, id, partitionKey string) error {
	n, err := s.client.HDel(ctx, s.key, field(id, partitionKey)).Result()
	if err != nil {
		return fmt.Errorf("redis HDEL failed: %w", err)
	}
	if n == 0 {
		return storeerrors.NewNotFoundError(s.schema.TypeName(), id)
	}
	return nil
}

// Query streams the entities whose documents match p.
func (s *Store[T]) Query(ctx context.Context, p *storagemodels.Predicate, opts ...storagemodels.StreamOption) <-chan storagemodels.StreamResult[T] {
	return s.stream(ctx, p, storagemodels.ApplyStreamOptions(opts...))
}

// ScanAll streams every entity in the hash.
func (s *Store[T]) ScanAll(ctx context.Context, opts ...storagemodels.StreamOption) <-chan storagemodels.StreamResult[T] {
	return s.stream(ctx, nil, storagemodels.ApplyStreamOptions(opts...))
}

func (s *Store[T]) stream(ctx context.Context, p *storagemodels.Predicate, options storagemodels.StreamOptions) <-chan storagemodels.StreamResult[T] {
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

		start := time.Now()
		// HSCAN may return a field more than once while the hash rehashes.
		seen := make(map[string]struct{})
		var (
			cursor     uint64
			index      int64
			pageNumber int
		)
		for {
			if ctx.Err() != nil {
				return
			}
			pairs, next, err := s.client.HScan(ctx, s.key, cursor, "", int64(options.PageSize)).Result()
			if err != nil {
				send(storagemodels.StreamResult[T]{Error: fmt.Errorf("redis HSCAN failed: %w", err)})
				return
			}
			pageNumber++

			for i := 0; i+1 < len(pairs); i += 2 {
				f, raw := pairs[i], pairs[i+1]
				if _, dup := seen[f]; dup {
					continue
				}
				seen[f] = struct{}{}

				meta := storagemodels.StreamMeta{Index: index, PageNumber: pageNumber, Timestamp: time.Now()}
				item, doc, err := decode[T](raw)
				if err != nil {
					send(storagemodels.StreamResult[T]{Error: fmt.Errorf("field %q: %w", strings.ReplaceAll(f, fieldSeparator, "/"), err), Meta: meta})
					return
				}
				if !p.Match(doc) {
					continue
				}
				if !send(storagemodels.StreamResult[T]{Item: item, Raw: doc, Meta: meta}) {
					return
				}
				index++
			}

			options.Progress(index, pageNumber, start)
			if next == 0 {
				s.logger.Debug("redis scan finished", zap.Int64("items", index), zap.Int("pages", pageNumber))
				return
			}
			cursor = next
		}
	}()

	return resultCh
}

// Truncate drops the hash.
func (s *Store[T]) Truncate(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis DEL failed: %w", err)
	}
	return nil
}

// Count returns the number of fields in the hash.
func (s *Store[T]) Count(ctx context.Context) (int64, error) {
	n, err := s.client.HLen(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis HLEN failed: %w", err)
	}
	return n, nil
}

func decode[T any](raw string) (T, storagemodels.Document, error) {
	var zero T
	var doc storagemodels.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return zero, nil, fmt.Errorf("failed to decode stored document: %w", err)
	}
	out, err := storagemodels.Decode[T](doc)
	if err != nil {
		return zero, nil, err
	}
	return out, doc, nil
}
