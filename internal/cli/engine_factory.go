package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/covidash"
	"github.com/aretw0/covidash/internal/config"
	"github.com/aretw0/covidash/pkg/adapters/csv"
	"github.com/aretw0/covidash/pkg/adapters/file"
	"github.com/aretw0/covidash/pkg/adapters/redis"
	"github.com/aretw0/covidash/pkg/ports"
)

// Stack is an Engine wired from a configuration, with the resources it
// holds.
type Stack struct {
	Engine  *covidash.Engine
	Source  *csv.Source
	Store   ports.SelectionStore
	closers []func() error
}

// Close shuts every session down and releases the store connection.
func (s *Stack) Close() error {
	errs := []error{s.Engine.Shutdown(context.Background())}
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// OpenStore selects the selection store: redis when configured (with a
// distributed locker on the same connection), otherwise files under the
// sessions directory. The returned function releases the store.
func OpenStore(ctx context.Context, cfg config.Config) (ports.SelectionStore, ports.DistributedLocker, func() error, error) {
	if cfg.Redis.Addr == "" {
		return file.New(cfg.Sessions.Dir), nil, func() error { return nil }, nil
	}

	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = redis.DefaultPrefix
	}
	opts := []redis.Option{redis.WithPrefix(prefix)}
	if cfg.Redis.TTL > 0 {
		opts = append(opts, redis.WithTTL(cfg.Redis.TTL))
	}
	store := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, opts...)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		_ = store.Close()
		return nil, nil, nil, fmt.Errorf("redis %s unreachable: %w", cfg.Redis.Addr, err)
	}
	return store, redis.NewLocker(store.Client(), prefix), store.Close, nil
}

// NewSource builds the CSV data source of the configuration.
func NewSource(cfg config.Config, logger *slog.Logger) *csv.Source {
	client := &http.Client{Timeout: cfg.Data.Timeout}
	opts := []csv.Option{csv.WithLogger(logger)}
	if cfg.Data.Timeout > 0 {
		opts = append(opts, csv.WithFetchTimeout(cfg.Data.Timeout))
	}
	return csv.New(
		csv.Locate(cfg.Data.Series, client),
		csv.Locate(cfg.Data.Population, client),
		opts...,
	)
}

// Build initializes an Engine with standard CLI conventions.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...covidash.Option) (*Stack, error) {
	store, locker, closeStore, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	source := NewSource(cfg, logger)
	engineOpts := []covidash.Option{
		covidash.WithLogger(logger),
		covidash.WithStore(store),
		covidash.WithLockTTL(cfg.Sessions.LockTTL),
	}
	if locker != nil {
		engineOpts = append(engineOpts, covidash.WithLocker(locker))
	}
	engine, err := covidash.New(source, append(engineOpts, opts...)...)
	if err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}

	return &Stack{
		Engine:  engine,
		Source:  source,
		Store:   store,
		closers: []func() error{closeStore},
	}, nil
}
