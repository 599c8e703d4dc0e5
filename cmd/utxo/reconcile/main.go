// Package main runs a single balance reconciliation against the ledger store
// and exits.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/metrics"
	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/repository/postgres"
	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/service/reconciler"
	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"
)

type config struct {
	PostgresDSN        string        `long:"postgres-dsn" env:"RECONCILE_POSTGRES_DSN" description:"Postgres DSN" required:"true"`
	Coin               model.Coin    `long:"coin" env:"RECONCILE_COIN" description:"coin name" required:"true"`
	Network            model.Network `long:"network" env:"RECONCILE_NETWORK" description:"network name" required:"true"`
	BatchSize          int           `long:"batch-size" env:"RECONCILE_BATCH_SIZE" description:"address rows per batch" default:"1000"`
	HighValueThreshold uint64        `long:"high-value-threshold" env:"RECONCILE_HIGH_VALUE_THRESHOLD" description:"balance from which a fixed row is high value" default:"100000000"`
	StoreTimeout       time.Duration `long:"store-timeout" env:"RECONCILE_STORE_TIMEOUT" description:"timeout of a single storage unit" default:"30s"`
}

func main() {
	cfg := config{}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()

	if _, err := flags.ParseArgs(&cfg, os.Args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		logger.Fatal("failed to parse flags", zap.Error(err))
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("reconciliation failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	repo, err := postgres.NewRepository(ctx, cfg.PostgresDSN, metrics.NewPostgresRepository(), logger)
	if err != nil {
		return fmt.Errorf("init postgres repository: %w", err)
	}
	defer repo.Close()

	svc, err := reconciler.NewService(
		repo,
		metrics.NewReconciler(cfg.Coin, cfg.Network),
		cfg.Coin,
		cfg.Network,
		reconciler.Config{
			BatchSize:          cfg.BatchSize,
			HighValueThreshold: cfg.HighValueThreshold,
			StoreTimeout:       cfg.StoreTimeout,
		},
		logger,
	)
	if err != nil {
		return fmt.Errorf("init reconciler: %w", err)
	}

	summary, err := svc.Trigger(ctx)
	logger.Info("reconciliation finished",
		zap.Int("scanned", summary.Scanned),
		zap.Int("fixed", summary.Fixed),
		zap.Int("negative_zeroed", summary.NegativeZeroed),
		zap.Int("anomalies", summary.Anomalies),
		zap.Int("high_value_fixed", summary.HighValueFixed),
		zap.Int("failed_batches", summary.FailedBatches),
	)
	return err
}
