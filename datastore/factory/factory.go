/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package factory opens the backend named by configuration and builds typed
// drivers on it.
package factory

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	goredis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/suparena/reactiverepo/config"
	"github.com/suparena/reactiverepo/datastore"
	"github.com/suparena/reactiverepo/datastore/ddb"
	"github.com/suparena/reactiverepo/datastore/memory"
	"github.com/suparena/reactiverepo/datastore/mongodb"
	"github.com/suparena/reactiverepo/datastore/redis"
)

// Backend is an open connection to the configured store. Drivers for any
// number of entity types share it.
type Backend struct {
	cfg    config.StoreConfig
	logger *zap.Logger

	dynamo *sdk.Client
	mongo  *mongo.Client
	redis  *goredis.Client

	// memory stores are kept per entity type so every driver for a type
	// sees the same data.
	memory sync.Map // reflect.Type -> any (*memory.Store[T])
}

// Open connects to the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Backend{cfg: cfg, logger: logger}

	var err error
	switch b.Kind() {
	case config.DriverMemory:
	case config.DriverDynamoDB:
		b.dynamo, err = ddb.NewClient(ctx, ddb.ClientConfig{
			Region:    cfg.DynamoDB.Region,
			AccessKey: cfg.DynamoDB.AccessKey,
			SecretKey: cfg.DynamoDB.SecretKey,
			Endpoint:  cfg.DynamoDB.Endpoint,
		})
	case config.DriverMongoDB:
		b.mongo, err = mongodb.Connect(ctx, mongodb.Config{
			URL:            cfg.MongoDB.URL,
			Database:       cfg.MongoDB.Database,
			ConnectTimeout: cfg.MongoDB.ConnectTimeout,
		})
	case config.DriverRedis:
		b.redis, err = redis.Connect(ctx, redis.Config{
			URL:              cfg.Redis.URL,
			MaxConns:         cfg.Redis.MaxConns,
			OperationTimeout: cfg.Redis.OperationTimeout,
		})
	default:
		return nil, fmt.Errorf("unsupported store.driver %q (supported: memory, dynamodb, mongodb, redis)", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("store backend opened", zap.String("driver", b.Kind()))
	return b, nil
}

// Kind returns the normalized driver name.
func (b *Backend) Kind() string {
	return strings.ToLower(strings.TrimSpace(b.cfg.Driver))
}

// Driver builds the driver for entity type T on b.
func Driver[T any](b *Backend) (datastore.Driver[T], error) {
	switch b.Kind() {
	case config.DriverMemory:
		t := reflect.TypeFor[T]()
		if existing, ok := b.memory.Load(t); ok {
			return existing.(*memory.Store[T]), nil
		}
		store, err := memory.New[T]()
		if err != nil {
			return nil, err
		}
		actual, _ := b.memory.LoadOrStore(t, store)
		return actual.(*memory.Store[T]), nil
	case config.DriverDynamoDB:
		return ddb.New[T](b.dynamo, b.cfg.DynamoDB.Table, ddb.WithLogger(b.logger))
	case config.DriverMongoDB:
		return mongodb.New[T](b.mongo.Database(b.cfg.MongoDB.Database), b.logger)
	case config.DriverRedis:
		return redis.New[T](b.redis, redis.WithPrefix(b.cfg.Redis.Prefix), redis.WithLogger(b.logger))
	default:
		return nil, fmt.Errorf("unsupported store.driver %q", b.cfg.Driver)
	}
}

// Close releases the backend's connections.
func (b *Backend) Close(ctx context.Context) error {
	switch {
	case b.mongo != nil:
		if err := b.mongo.Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to close mongodb connection: %w", err)
		}
	case b.redis != nil:
		if err := b.redis.Close(); err != nil {
			return fmt.Errorf("failed to close redis connection: %w", err)
		}
	}
	return nil
}
