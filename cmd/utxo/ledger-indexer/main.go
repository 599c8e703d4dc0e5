// Package main runs the block indexer and the balance reconciler of one
// coin/network against a bitcoin-compatible node.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/metrics"
	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/bitcoin"
	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/repository/clickhouse"
	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/repository/postgres"
	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/service/indexer"
	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/service/ledger"
	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/service/reconciler"
	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/service/syncstate"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type config struct {
	ClickhouseDSN string        `long:"clickhouse-dsn" env:"LEDGER_CLICKHOUSE_DSN" description:"ClickHouse DSN" required:"true"`
	PostgresDSN   string        `long:"postgres-dsn" env:"LEDGER_POSTGRES_DSN" description:"Postgres DSN" required:"true"`
	Coin          model.Coin    `long:"coin" env:"LEDGER_COIN" description:"coin name" required:"true"`
	Network       model.Network `long:"network" env:"LEDGER_NETWORK" description:"network name" required:"true"`
	RPCURL        string        `long:"rpc-url" env:"LEDGER_RPC_URL" description:"Bitcoin RPC URL" default:"http://127.0.0.1:8332"`
	RPCUser       string        `long:"rpc-user" env:"LEDGER_RPC_USER" description:"Bitcoin RPC username"`
	RPCPassword   string        `long:"rpc-password" env:"LEDGER_RPC_PASSWORD" description:"Bitcoin RPC password"`
	RPCTimeout    time.Duration `long:"rpc-timeout" env:"LEDGER_RPC_TIMEOUT" description:"timeout of a single RPC call" default:"30s"`
	RPCRPS        int           `long:"rpc-rps" env:"LEDGER_RPC_RPS" description:"max RPC calls per second, 0 for unlimited" default:"0"`
	ZMQAddr       string        `long:"zmq-addr" env:"LEDGER_ZMQ_ADDR" description:"zmq hashblock endpoint, wakes the indexer on new blocks"`
	MetricsAddr   string        `long:"metrics-addr" env:"LEDGER_METRICS_ADDR" description:"address for metrics server" default:":2112"`
	StoreTimeout  time.Duration `long:"store-timeout" env:"LEDGER_STORE_TIMEOUT" description:"timeout of a single storage unit" default:"30s"`

	Indexer struct {
		StartHeight        uint64        `long:"start-height" env:"START_HEIGHT" description:"first height to index when nothing is stored" default:"0"`
		MaxBatch           int           `long:"max-batch" env:"MAX_BATCH" description:"max blocks per pass" default:"50"`
		PollInterval       time.Duration `long:"poll-interval" env:"POLL_INTERVAL" description:"wait between passes when caught up" default:"10s"`
		CatchUpDelay       time.Duration `long:"catch-up-delay" env:"CATCH_UP_DELAY" description:"wait between passes while behind" default:"1s"`
		ResolveConcurrency int           `long:"resolve-concurrency" env:"RESOLVE_CONCURRENCY" description:"parallel node lookups of previous outputs" default:"4"`
		TxFlushSize        int           `long:"tx-flush-size" env:"TX_FLUSH_SIZE" description:"transaction rows per insert" default:"1000"`
		TxFlushInterval    time.Duration `long:"tx-flush-interval" env:"TX_FLUSH_INTERVAL" description:"max delay of a transaction insert" default:"1s"`
		TxFlushRPS         int           `long:"tx-flush-rps" env:"TX_FLUSH_RPS" description:"max transaction inserts per second, 0 for unlimited" default:"0"`
	} `group:"indexer" namespace:"indexer" env-namespace:"LEDGER_INDEXER"`

	Reconciler struct {
		Disabled           bool          `long:"disabled" env:"DISABLED" description:"do not run the balance reconciler"`
		Interval           time.Duration `long:"interval" env:"INTERVAL" description:"normal reconciliation cadence" default:"5m"`
		StartupDelay       time.Duration `long:"startup-delay" env:"STARTUP_DELAY" description:"delay before the first run" default:"30s"`
		FailureThreshold   int           `long:"failure-threshold" env:"FAILURE_THRESHOLD" description:"consecutive failures before recovery cadence" default:"3"`
		RecoveryInterval   time.Duration `long:"recovery-interval" env:"RECOVERY_INTERVAL" description:"cadence while degraded" default:"1m"`
		BatchSize          int           `long:"batch-size" env:"BATCH_SIZE" description:"address rows per batch" default:"1000"`
		HighValueThreshold uint64        `long:"high-value-threshold" env:"HIGH_VALUE_THRESHOLD" description:"balance from which a fixed row is high value" default:"100000000"`
	} `group:"reconciler" namespace:"reconciler" env-namespace:"LEDGER_RECONCILER"`
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

	logger = logger.With(zap.String("coin", string(cfg.Coin)), zap.String("network", string(cfg.Network)))
	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("ledger indexer failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	chainRepo, err := clickhouse.NewRepository(cfg.ClickhouseDSN, metrics.NewClickhouseRepository())
	if err != nil {
		return fmt.Errorf("init clickhouse repository: %w", err)
	}
	defer func() {
		if err := chainRepo.Close(); err != nil {
			logger.Warn("close clickhouse repository", zap.Error(err))
		}
	}()
	if err := chainRepo.Ping(ctx); err != nil {
		return fmt.Errorf("ping clickhouse: %w", err)
	}

	ledgerRepo, err := postgres.NewRepository(ctx, cfg.PostgresDSN, metrics.NewPostgresRepository(), logger)
	if err != nil {
		return fmt.Errorf("init postgres repository: %w", err)
	}
	defer ledgerRepo.Close()

	rpcClient, err := bitcoin.NewHTTPClient(cfg.RPCURL, cfg.RPCUser, cfg.RPCPassword)
	if err != nil {
		return fmt.Errorf("init rpc client: %w", err)
	}

	decoder, err := bitcoin.NewScriptDecoder(cfg.Network)
	if err != nil {
		return fmt.Errorf("init script decoder: %w", err)
	}
	gateway := bitcoin.NewGateway(rpcClient, metrics.NewRPCClient(cfg.Coin, cfg.Network), cfg.RPCRPS, cfg.RPCTimeout)
	source := bitcoin.NewSource(gateway, decoder, cfg.Coin, cfg.Network)

	tracker := syncstate.NewTracker(ledgerRepo, chainRepo, cfg.Coin, cfg.Network, cfg.Indexer.StartHeight, logger)
	aggregator := ledger.NewAggregator(ledgerRepo, metrics.NewLedger(cfg.Coin, cfg.Network), cfg.Coin, cfg.Network, cfg.StoreTimeout, logger)

	g, ctx := errgroup.WithContext(ctx)

	wake, err := startBlockSignal(ctx, cfg.ZMQAddr, logger.Named("blockSignal"))
	if err != nil {
		return fmt.Errorf("start block signal: %w", err)
	}

	idx, err := indexer.NewService(
		source,
		chainRepo,
		tracker,
		aggregator,
		metrics.NewIndexer(cfg.Coin, cfg.Network),
		cfg.Coin,
		cfg.Network,
		indexerConfig(cfg),
		wake,
		logger,
	)
	if err != nil {
		return fmt.Errorf("init indexer: %w", err)
	}
	g.Go(func() error { return idx.Run(ctx) })

	if !cfg.Reconciler.Disabled {
		rec, err := reconciler.NewService(
			ledgerRepo,
			metrics.NewReconciler(cfg.Coin, cfg.Network),
			cfg.Coin,
			cfg.Network,
			reconciler.Config{
				Interval:           cfg.Reconciler.Interval,
				StartupDelay:       cfg.Reconciler.StartupDelay,
				FailureThreshold:   cfg.Reconciler.FailureThreshold,
				RecoveryInterval:   cfg.Reconciler.RecoveryInterval,
				BatchSize:          cfg.Reconciler.BatchSize,
				HighValueThreshold: cfg.Reconciler.HighValueThreshold,
				StoreTimeout:       cfg.StoreTimeout,
			},
			logger,
		)
		if err != nil {
			return fmt.Errorf("init reconciler: %w", err)
		}
		g.Go(func() error { return rec.Run(ctx) })
	}

	g.Go(func() error { return serveMetrics(ctx, cfg.MetricsAddr, logger) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("ledger indexer stopped")
	return nil
}

func indexerConfig(cfg config) indexer.Config {
	return indexer.Config{
		MaxBatch:           cfg.Indexer.MaxBatch,
		PollInterval:       cfg.Indexer.PollInterval,
		CatchUpDelay:       cfg.Indexer.CatchUpDelay,
		ResolveConcurrency: cfg.Indexer.ResolveConcurrency,
		StoreTimeout:       cfg.StoreTimeout,
		TxFlushSize:        cfg.Indexer.TxFlushSize,
		TxFlushInterval:    cfg.Indexer.TxFlushInterval,
		TxFlushRPS:         cfg.Indexer.TxFlushRPS,
	}
}

func serveMetrics(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", zap.Error(err))
		}
	}()

	logger.Info("starting metrics server", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
