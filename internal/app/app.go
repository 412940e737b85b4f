// Package app assembles the simulator's collaborators from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iwvelando/credit-simulator/internal/amqp"
	"github.com/iwvelando/credit-simulator/internal/config"
	"github.com/iwvelando/credit-simulator/internal/message"
	"github.com/iwvelando/credit-simulator/internal/notify"
	"github.com/iwvelando/credit-simulator/internal/settings"
	"github.com/iwvelando/credit-simulator/internal/simulation"
	"github.com/iwvelando/credit-simulator/internal/storage"
	"github.com/iwvelando/credit-simulator/internal/storage/postgres"
	"github.com/iwvelando/credit-simulator/internal/storage/sqlite"
	"github.com/iwvelando/credit-simulator/pkg/adapters"
	"github.com/iwvelando/credit-simulator/pkg/datetime"
	"go.uber.org/zap"
)

// App holds the wired collaborators shared by the CLI, the server and the worker.
type App struct {
	Config     *config.Configuration
	Logger     *zap.Logger
	Repository storage.Repository
	Settings   *settings.Provider
	Calculator simulation.Calculator
	Renderer   message.Renderer
	Sender     notify.Sender
	Location   *time.Location

	closers []func() error
}

// New wires storage, cache, settings and delivery according to cfg.
func New(ctx context.Context, cfg *config.Configuration, secrets *config.Secrets, logger *zap.Logger) (*App, error) {
	const operation = "app.New"
	if logger == nil {
		logger = zap.NewNop()
	}
	if secrets == nil {
		secrets = &config.Secrets{}
	}

	location, err := datetime.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid timezone %q: %w", operation, cfg.Timezone, err)
	}

	table, err := adapters.TableFromConfig(cfg.Categories)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Location: location,
		Calculator: simulation.Calculator{
			Logger:             logger,
			ReverseCalculation: cfg.Features.ReverseCalculation,
		},
		Renderer: message.Renderer{
			Location:            location,
			PlainTextLineEnding: cfg.Template.PlainTextLineEnding,
		},
	}

	repository, err := OpenRepository(ctx, cfg.Storage, secrets.DatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	a.Repository = repository
	a.closers = append(a.closers, repository.Close)

	cache, closeCache, err := OpenCache(ctx, cfg.Cache, secrets.RedisPassword, logger)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	if closeCache != nil {
		a.closers = append(a.closers, closeCache)
	}

	provider, err := settings.NewProvider(settings.Config{
		BaseTable:       table,
		DefaultTemplate: cfg.Template.Default,
		Store:           repository,
		Cache:           cache,
		CacheTTL:        cfg.Cache.TTL,
		Logger:          logger,
	})
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	a.Settings = provider

	sender, closeSender, err := OpenSender(cfg, secrets, logger)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	a.Sender = sender
	if closeSender != nil {
		a.closers = append(a.closers, closeSender)
	}

	return a, nil
}

// Close releases every opened resource in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// OpenRepository opens the configured storage backend.
func OpenRepository(ctx context.Context, cfg config.StorageConfig, databaseURL string, logger *zap.Logger) (storage.Repository, error) {
	switch cfg.Driver {
	case "", config.StorageMemory:
		return storage.NewMemory(), nil
	case config.StorageSQLite:
		repository, err := sqlite.New(cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return repository, nil
	case config.StoragePostgres:
		repository, err := postgres.New(ctx, postgres.Config{
			DSN:             databaseURL,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
			ConnectTimeout:  cfg.ConnectTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return repository, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// OpenCache returns the settings cache, or nil when caching is disabled. An
// unreachable Redis is logged and skipped; settings then come from the store.
func OpenCache(ctx context.Context, cfg config.CacheConfig, password string, logger *zap.Logger) (settings.Cache, func() error, error) {
	if !cfg.Enabled {
		return nil, nil, nil
	}
	if cfg.Addr == "" {
		return nil, nil, errors.New("cache is enabled but no address is configured")
	}

	cache := settings.NewRedisCache(cfg.Addr, password, cfg.DB)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cache.Ping(pingCtx); err != nil {
		logger.Warn("redis unreachable, settings cache disabled",
			zap.String("op", "app.OpenCache"),
			zap.String("addr", cfg.Addr),
			zap.Error(err),
		)
		_ = cache.Close()
		return nil, nil, nil
	}
	return cache, cache.Close, nil
}

// OpenSender picks the message delivery path: the queue when async sending is
// enabled, Telegram when configured, otherwise the log.
func OpenSender(cfg *config.Configuration, secrets *config.Secrets, logger *zap.Logger) (notify.Sender, func() error, error) {
	if cfg.Features.AsyncSend {
		client, err := amqp.NewClient(secrets.AMQPURL, cfg.Messaging.Exchange, cfg.Messaging.Queue, logger)
		if err != nil {
			return nil, nil, err
		}
		return amqp.QueueSender{Publisher: client}, client.Close, nil
	}

	sender, err := DirectSender(cfg, secrets, logger)
	return sender, nil, err
}

// DirectSender returns the Telegram sender when enabled, otherwise a LogSender.
func DirectSender(cfg *config.Configuration, secrets *config.Secrets, logger *zap.Logger) (notify.Sender, error) {
	if !cfg.Telegram.Enabled {
		return notify.LogSender{Logger: logger}, nil
	}
	sender, err := notify.NewTelegramSender(secrets.TelegramToken, secrets.TelegramChatID, cfg.Telegram.RetryMaxElapsed, logger)
	if err != nil {
		return nil, err
	}
	return sender, nil
}
