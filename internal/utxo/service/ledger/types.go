package ledger

import (
	"context"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	// Store merges one address delta atomically and reports how many txids were new.
	Store interface {
		MergeAddressDelta(ctx context.Context, coin model.Coin, network model.Network, delta *model.AddressDelta) (model.Address, int, error)
	}
	Metrics interface {
		ObserveMerge(err error, added int, started time.Time)
	}
)
