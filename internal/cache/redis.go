package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"

	"github.com/julo/lendcore/internal/config"
	"github.com/redis/go-redis/v9"
)

type ClientConstructor func(opt *redis.Options) *redis.Client

func Connect(ctx context.Context, cfg config.Config, logger *slog.Logger, newClient ClientConstructor) (*redis.Client, error) {
	logger.Info("connecting to redis",
		slog.String("addr", cfg.RedisAddr),
		slog.Int("db", int(cfg.RedisDB)),
		slog.Bool("enable_tls", cfg.RedisEnableTLS),
	)

	options := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       int(cfg.RedisDB),
	}
	if cfg.RedisEnableTLS {
		options.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	if newClient == nil {
		newClient = redis.NewClient
	}
	client := newClient(options)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
