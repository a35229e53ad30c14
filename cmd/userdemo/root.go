/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/suparena/reactiverepo"
	"github.com/suparena/reactiverepo/config"
	"github.com/suparena/reactiverepo/datastore/factory"
	"github.com/suparena/reactiverepo/logging"
	"github.com/suparena/reactiverepo/repository"
	"github.com/suparena/reactiverepo/sample/users"
)

type runFlags struct {
	configFile string
	envFiles   []string
	driver     string
	keep       bool
	timeout    time.Duration
}

func newRootCommand() *cobra.Command {
	flags := &runFlags{}

	root := &cobra.Command{
		Use:           "userdemo",
		Short:         "Walk through the reactive user repository",
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd, flags)
		},
	}
	root.PersistentFlags().StringVarP(&flags.configFile, "config-file", "c", "", "config file path")
	root.PersistentFlags().StringSliceVar(&flags.envFiles, "env-file", []string{".env"}, "dotenv files loaded before the environment is read")
	root.Flags().StringVar(&flags.driver, "driver", "", "store driver override (memory, dynamodb, mongodb, redis)")
	root.Flags().BoolVar(&flags.keep, "keep", false, "leave the demo users in the store on exit")
	root.Flags().DurationVar(&flags.timeout, "timeout", 2*time.Minute, "overall time limit")

	root.AddCommand(newVersionCommand(), newConfigCommand(flags))
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := json.MarshalIndent(reactiverepo.GetVersionInfo(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func newConfigCommand(flags *runFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			cfg.Store.DynamoDB.SecretKey = redact(cfg.Store.DynamoDB.SecretKey)
			out, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

func loadConfig(flags *runFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configFile, flags.envFiles...)
	if err != nil {
		return nil, err
	}
	if flags.driver != "" {
		cfg.Store.Driver = flags.driver
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func run(ctx context.Context, cmd *cobra.Command, flags *runFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	logger := logging.New(logging.Config{
		Level:  logging.Level(cfg.Log.Level),
		Format: logging.Format(cfg.Log.Format),
		Output: cmd.OutOrStdout(),
	})
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, flags.timeout)
	defer cancel()

	backend, err := factory.Open(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := backend.Close(closeCtx); err != nil {
			logger.Warn("closing store failed", zap.Error(err))
		}
	}()

	opts := []repository.Option{
		repository.WithConcurrency(cfg.Repository.Concurrency),
		repository.WithBufferSize(cfg.Repository.BufferSize),
	}
	registry := prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		metrics, err := repository.NewMetrics(cfg.Metrics.Namespace, registry)
		if err != nil {
			return err
		}
		opts = append(opts, repository.WithMetrics(metrics))
	}

	catalog := reactiverepo.NewCatalog()
	repo, err := reactiverepo.Register(catalog, "users", func() (*users.UserRepository, error) {
		driver, err := factory.Driver[users.User](backend)
		if err != nil {
			return nil, err
		}
		return users.NewUserRepository(driver, logger, opts...)
	})
	if err != nil {
		return err
	}

	logger.Info("starting demo", zap.String("driver", backend.Kind()), zap.Strings("repositories", catalog.Names()))
	if err := repo.Setup(ctx); err != nil {
		return fmt.Errorf("setup: %w", err)
	}

	report, runErr := users.Run(ctx, repo, logger)
	if runErr == nil {
		logger.Info("demo finished", zap.Int("remaining", len(report.Remaining)))
	}

	if !flags.keep {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := repo.Cleanup(cleanupCtx); err != nil {
			logger.Error("cleanup failed", zap.Error(err))
		}
	}

	if cfg.Metrics.Enabled {
		logMetrics(logger, registry)
	}
	return runErr
}

func logMetrics(logger *zap.Logger, g prometheus.Gatherer) {
	families, err := g.Gather()
	if err != nil {
		logger.Warn("gathering metrics failed", zap.Error(err))
		return
	}
	for _, mf := range families {
		logger.Info("metric", zap.String("name", mf.GetName()), zap.Int("series", len(mf.GetMetric())))
	}
}
