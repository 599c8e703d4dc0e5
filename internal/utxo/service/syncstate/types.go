package syncstate

import (
	"context"

	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	// Store persists the sync state row.
	Store interface {
		LoadSyncState(ctx context.Context, coin model.Coin, network model.Network) (model.SyncState, bool, error)
		SaveSyncState(ctx context.Context, coin model.Coin, network model.Network, height int64) (int64, error)
	}
	// ChainStore reports the highest stored block, used to bootstrap a missing state row.
	ChainStore interface {
		MaxBlockHeight(ctx context.Context, coin model.Coin, network model.Network) (uint64, bool, error)
	}
)
