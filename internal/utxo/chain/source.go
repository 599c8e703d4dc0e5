// Package chain defines interfaces and structs shared between ledger indexing components.
package chain

import (
	"context"

	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/model"
)

// Source provides chain data from an upstream node.
type Source interface {
	LatestHeight(ctx context.Context) (uint64, error)
	FetchBlock(ctx context.Context, height uint64) (*Block, error)
	TransactionSource
}

// Block wraps a block and the projected transactions fetched from a source.
// Transactions that could not be projected are reported in Skipped instead of
// failing the whole block.
type Block struct {
	Block   model.Block
	Txs     []model.Transaction
	Skipped []SkippedTx
}

// SkippedTx names a transaction dropped during projection and why.
type SkippedTx struct {
	TxID string
	Err  error
}
