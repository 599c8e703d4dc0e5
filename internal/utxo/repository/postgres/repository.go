// Package postgres stores the address ledger and the sync state in Postgres.
//
// Every multi-statement unit runs in its own transaction and is retried when
// Postgres reports a serialization failure or a deadlock.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/model"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type Metrics interface {
	Observe(operation string, coin model.Coin, network model.Network, err error, started time.Time)
}

type Repository struct {
	pool    *pgxpool.Pool
	metrics Metrics
	logger  *zap.Logger
	retry   retryPolicy
}

// NewRepository opens a connection pool for dsn and verifies it with a ping.
func NewRepository(ctx context.Context, dsn string, metrics Metrics, logger *zap.Logger) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Repository{
		pool:    pool,
		metrics: metrics,
		logger:  logger.Named("postgres"),
		retry:   defaultRetryPolicy(),
	}, nil
}

// Close releases the pool.
func (r *Repository) Close() {
	r.pool.Close()
}
