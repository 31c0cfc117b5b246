package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/and161185/credguard/internal/config"
	"github.com/and161185/credguard/internal/events"
	"github.com/and161185/credguard/internal/migrate"
	"github.com/and161185/credguard/internal/repository"
	"github.com/and161185/credguard/internal/repository/postgres"
	"github.com/and161185/credguard/internal/repository/redisrepo"
	"github.com/and161185/credguard/internal/repository/sqlite"
)

// openStore connects to the configured backend. SQL backends are migrated first.
// The returned func releases the connection.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.CredentialRepository, func(), error) {
	switch cfg.Store {
	case config.StorePostgres:
		if err := migrate.Up(ctx, cfg.DatabaseURL); err != nil {
			return nil, nil, fmt.Errorf("migrate up: %w", err)
		}
		db, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewCredentialRepo(db), db.Close, nil

	case config.StoreSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return sqlite.NewCredentialRepo(db), func() {
			if err := db.Close(); err != nil {
				log.Warn("close sqlite", zap.Error(err))
			}
		}, nil

	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		return redisrepo.NewCredentialRepo(rdb, cfg.RedisPrefix), func() { _ = rdb.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
}

// openPublisher returns the AMQP publisher when a broker is configured and a
// log-only publisher otherwise.
func openPublisher(cfg *config.Config, log *zap.Logger) (events.Publisher, func(), error) {
	if cfg.AMQPURL == "" {
		return events.NewLogPublisher(log), func() {}, nil
	}
	p, err := events.DialAMQP(cfg.AMQPURL, cfg.EventsExchange, log)
	if err != nil {
		return nil, nil, err
	}
	return p, func() {
		if err := p.Close(); err != nil {
			log.Warn("close amqp publisher", zap.Error(err))
		}
	}, nil
}
