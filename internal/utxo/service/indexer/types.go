package indexer

import (
	"context"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/chain"
	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/service/ledger"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	// ChainStore persists block and transaction rows and serves already
	// indexed transactions to the output resolver.
	ChainStore interface {
		InsertBlocks(ctx context.Context, blocks []model.Block) error
		InsertTransactions(ctx context.Context, txs []model.Transaction) error
		BackfillNextHash(ctx context.Context, coin model.Coin, network model.Network, height uint64, nextHash string) error
		chain.TransactionRepository
	}
	Tracker interface {
		Load(ctx context.Context) (int64, error)
		Advance(ctx context.Context, height int64) error
	}
	Ledger interface {
		Apply(ctx context.Context, deltas map[string]*model.AddressDelta) (ledger.Summary, error)
	}
	Metrics interface {
		ObservePass(err error, blocks int, started time.Time)
		SetHeights(local, chain int64)
		IncSkippedTx(reason string)
		SetState(state string)
	}
)
