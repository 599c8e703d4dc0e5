// Package clickhouse stores indexed blocks and transactions in ClickHouse.
//
// Tables use ReplacingMergeTree keyed by (coin, network, height) and
// (coin, network, txid), so writing the same block or transaction twice is an
// idempotent overwrite. Reads go through FINAL to see the latest version.
package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	Metrics interface {
		Observe(operation string, coin model.Coin, network model.Network, err error, started time.Time)
	}

	// Conn is the subset of a ClickHouse connection used by the repository.
	Conn interface {
		PrepareBatch(ctx context.Context, query string) (Batch, error)
		Query(ctx context.Context, query string, args ...any) (Rows, error)
		Exec(ctx context.Context, query string, args ...any) error
		Close() error
	}

	Batch interface {
		Append(v ...any) error
		Send() error
		Abort() error
	}

	Rows interface {
		Next() bool
		Scan(dest ...any) error
		Err() error
		Close() error
	}
)

type Repository struct {
	conn    Conn
	metrics Metrics
}

func NewRepository(dsn string, metrics Metrics) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("clickhouse dsn is required")
	}

	options, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse connection: %w", err)
	}

	return &Repository{conn: driverConn{conn: conn}, metrics: metrics}, nil
}

// Ping checks that the server is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	if err := r.conn.Exec(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("ping clickhouse: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *Repository) Close() error {
	return r.conn.Close()
}

// driverConn adapts a clickhouse-go connection to Conn.
type driverConn struct {
	conn driver.Conn
}

func (c driverConn) PrepareBatch(ctx context.Context, query string) (Batch, error) {
	return c.conn.PrepareBatch(ctx, query)
}

func (c driverConn) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	return c.conn.Query(ctx, query, args...)
}

func (c driverConn) Exec(ctx context.Context, query string, args ...any) error {
	return c.conn.Exec(ctx, query, args...)
}

func (c driverConn) Close() error {
	return c.conn.Close()
}

func firstCoin[T any](items []T) model.Coin {
	if len(items) == 0 {
		return ""
	}

	switch v := any(items[0]).(type) {
	case model.Block:
		return v.Coin
	case model.Transaction:
		return v.Coin
	default:
		return ""
	}
}

func firstNetwork[T any](items []T) model.Network {
	if len(items) == 0 {
		return ""
	}

	switch v := any(items[0]).(type) {
	case model.Block:
		return v.Network
	case model.Transaction:
		return v.Network
	default:
		return ""
	}
}

func closeRows(rows Rows, err *error) {
	if cerr := rows.Close(); cerr != nil && *err == nil {
		*err = fmt.Errorf("close rows: %w", cerr)
	}
}
