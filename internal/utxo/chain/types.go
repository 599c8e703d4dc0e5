package chain

import (
	"context"

	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

// TransactionRepository looks up already-indexed transactions.
type TransactionRepository interface {
	TransactionsByTxIDs(ctx context.Context, coin model.Coin, network model.Network, txids []string) (map[string]model.Transaction, error)
}

// TransactionSource fetches a single transaction by id from the node.
type TransactionSource interface {
	FetchTransaction(ctx context.Context, txid string) (*model.Transaction, error)
}
