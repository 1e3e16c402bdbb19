package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/julo/lendcore/internal/config"
)

const (
	applicationName   = "lendcore"
	defaultMaxConnAge = 30 * time.Minute
	healthCheckPeriod = time.Minute
)

// NewPostgresPool opens the pool and pings it once. Sessions run in UTC; due
// dates are converted to the business timezone by the callers.
func NewPostgresPool(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	poolCfg.MaxConns = cfg.DBMaxConns
	poolCfg.MinConns = cfg.DBMinConns
	poolCfg.HealthCheckPeriod = healthCheckPeriod
	poolCfg.MaxConnLifetime = defaultMaxConnAge
	if d, err := time.ParseDuration(cfg.DBMaxConnLifetime); err == nil && d > 0 {
		poolCfg.MaxConnLifetime = d
	}
	poolCfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	poolCfg.ConnConfig.RuntimeParams["timezone"] = "UTC"

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}
