package reconciler

import (
	"context"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/metrics"
	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	// Store pages address balances and rewrites them under row locks.
	Store interface {
		BalancePage(ctx context.Context, coin model.Coin, network model.Network, after *model.BalanceCursor, limit int) ([]model.AddressBalance, error)
		UpdateBalances(ctx context.Context, coin model.Coin, network model.Network, addresses []string, decide func([]model.AddressBalance) ([]model.BalanceUpdate, error)) error
	}
	Metrics interface {
		ObserveRun(err error, counts metrics.RunCounts, started time.Time)
		SetDegraded(degraded bool)
	}
)
