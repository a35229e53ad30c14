/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package config loads repository and driver settings with the precedence
// environment > config file > defaults. An optional .env file is read into
// the environment first.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "REACTIVEREPO"

// Driver kinds.
const (
	DriverMemory   = "memory"
	DriverDynamoDB = "dynamodb"
	DriverMongoDB  = "mongodb"
	DriverRedis    = "redis"
)

// Config is the full configuration of a repository deployment.
type Config struct {
	Store      StoreConfig      `mapstructure:"store"`
	Repository RepositoryConfig `mapstructure:"repository"`
	Log        LogConfig        `mapstructure:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// StoreConfig selects and configures the driver.
type StoreConfig struct {
	Driver   string         `mapstructure:"driver"`
	DynamoDB DynamoDBConfig `mapstructure:"dynamodb"`
	MongoDB  MongoDBConfig  `mapstructure:"mongodb"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type DynamoDBConfig struct {
	Table     string `mapstructure:"table"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

type MongoDBConfig struct {
	URL            string        `mapstructure:"url"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type RedisConfig struct {
	URL              string        `mapstructure:"url"`
	Prefix           string        `mapstructure:"prefix"`
	MaxConns         int           `mapstructure:"max_conns"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
}

// RepositoryConfig tunes the reactive repository.
type RepositoryConfig struct {
	// Concurrency bounds the driver calls one bulk operation runs at once.
	Concurrency int `mapstructure:"concurrency"`
	// BufferSize is how many items a result sequence buffers ahead of its
	// consumer.
	BufferSize int `mapstructure:"buffer_size"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// DefaultConfig returns the configuration used when nothing is set: an
// in-memory store with info-level JSON logs.
func DefaultConfig() Config {
	return Config{
		Store: StoreConfig{
			Driver: DriverMemory,
			DynamoDB: DynamoDBConfig{
				Region: "us-east-1",
			},
			MongoDB: MongoDBConfig{
				Database:       "reactiverepo",
				ConnectTimeout: 5 * time.Second,
			},
			Redis: RedisConfig{
				Prefix:           "reactiverepo",
				MaxConns:         10,
				OperationTimeout: 5 * time.Second,
			},
		},
		Repository: RepositoryConfig{
			Concurrency: 8,
			BufferSize:  16,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Namespace: "reactiverepo",
		},
	}
}

// Load reads envFiles (".env" when none is given; missing files are
// skipped), then configFile when set, then REACTIVEREPO_* variables such
// as REACTIVEREPO_STORE_DRIVER or REACTIVEREPO_STORE_DYNAMODB_TABLE.
func Load(configFile string, envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}
	return nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.dynamodb.table", d.Store.DynamoDB.Table)
	v.SetDefault("store.dynamodb.region", d.Store.DynamoDB.Region)
	v.SetDefault("store.dynamodb.endpoint", d.Store.DynamoDB.Endpoint)
	v.SetDefault("store.dynamodb.access_key", d.Store.DynamoDB.AccessKey)
	v.SetDefault("store.dynamodb.secret_key", d.Store.DynamoDB.SecretKey)
	v.SetDefault("store.mongodb.url", d.Store.MongoDB.URL)
	v.SetDefault("store.mongodb.database", d.Store.MongoDB.Database)
	v.SetDefault("store.mongodb.connect_timeout", d.Store.MongoDB.ConnectTimeout)
	v.SetDefault("store.redis.url", d.Store.Redis.URL)
	v.SetDefault("store.redis.prefix", d.Store.Redis.Prefix)
	v.SetDefault("store.redis.max_conns", d.Store.Redis.MaxConns)
	v.SetDefault("store.redis.operation_timeout", d.Store.Redis.OperationTimeout)
	v.SetDefault("repository.concurrency", d.Repository.Concurrency)
	v.SetDefault("repository.buffer_size", d.Repository.BufferSize)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)
}

// Validate reports the first setting that cannot work.
func Validate(cfg *Config) error {
	switch cfg.Store.Driver {
	case DriverMemory:
	case DriverDynamoDB:
		if cfg.Store.DynamoDB.Table == "" {
			return errors.New("store.dynamodb.table is required for the dynamodb driver")
		}
	case DriverMongoDB:
		if cfg.Store.MongoDB.URL == "" || cfg.Store.MongoDB.Database == "" {
			return errors.New("store.mongodb.url and store.mongodb.database are required for the mongodb driver")
		}
	case DriverRedis:
		if cfg.Store.Redis.URL == "" {
			return errors.New("store.redis.url is required for the redis driver")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", cfg.Store.Driver)
	}

	if cfg.Repository.Concurrency < 1 {
		return fmt.Errorf("repository.concurrency must be at least 1, got %d", cfg.Repository.Concurrency)
	}
	if cfg.Repository.BufferSize < 0 {
		return fmt.Errorf("repository.buffer_size must not be negative, got %d", cfg.Repository.BufferSize)
	}
	switch cfg.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", cfg.Log.Format)
	}
	return nil
}
