package bitcoin

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/chain"
	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-ledger/pkg/safe"
)

// Source serves chain data for one coin/network by projecting gateway payloads
// into model rows.
type Source struct {
	gateway *Gateway
	decoder ScriptDecoder
	coin    model.Coin
	network model.Network
}

var _ chain.Source = (*Source)(nil)

// NewSource builds a Source over gateway.
func NewSource(gateway *Gateway, decoder ScriptDecoder, coin model.Coin, network model.Network) *Source {
	return &Source{
		gateway: gateway,
		decoder: decoder,
		coin:    coin,
		network: network,
	}
}

// LatestHeight returns the node's best chain height.
func (s *Source) LatestHeight(ctx context.Context) (uint64, error) {
	height, err := s.gateway.ChainHeight(ctx)
	if err != nil {
		return 0, err
	}
	return safe.Uint64(height)
}

// FetchBlock fetches the block at height with its transactions projected.
// Transactions that fail projection are reported in Skipped.
func (s *Source) FetchBlock(ctx context.Context, height uint64) (*chain.Block, error) {
	h, err := safe.Int64(height)
	if err != nil {
		return nil, fmt.Errorf("height %d: %w", height, err)
	}
	hash, err := s.gateway.BlockHash(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("block hash at %d: %w", height, err)
	}
	raw, err := s.gateway.Block(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("block %d: %w", height, err)
	}
	if raw.Height != h {
		return nil, protocolErrorf(methodGetBlock, "block %s reports height %d, requested %d", hash, raw.Height, height)
	}

	block, err := BuildBlock(*raw, s.coin, s.network)
	if err != nil {
		return nil, &ProtocolError{Method: methodGetBlock, Err: err}
	}

	result := &chain.Block{
		Block: block,
		Txs:   make([]model.Transaction, 0, len(raw.Tx)),
	}
	for _, rawTx := range raw.Tx {
		tx, err := BuildTransaction(rawTx, s.decoder, block)
		if err != nil {
			result.Skipped = append(result.Skipped, chain.SkippedTx{TxID: rawTx.Txid, Err: err})
			continue
		}
		result.Txs = append(result.Txs, tx)
	}
	return result, nil
}

// FetchTransaction fetches a single transaction. The block fields are filled
// from the node's confirmation data when present.
func (s *Source) FetchTransaction(ctx context.Context, txid string) (*model.Transaction, error) {
	raw, err := s.gateway.Transaction(ctx, txid)
	if err != nil {
		return nil, err
	}

	tx, err := BuildTransaction(*raw, s.decoder, s.containingBlock(*raw))
	if err != nil {
		return nil, &ProtocolError{Method: methodGetRawTransaction, Err: err}
	}
	return &tx, nil
}

func (s *Source) containingBlock(raw btcjson.TxRawResult) model.Block {
	block := model.Block{
		Coin:    s.coin,
		Network: s.network,
		Hash:    raw.BlockHash,
	}
	if raw.Blocktime > 0 {
		block.Timestamp = time.Unix(raw.Blocktime, 0).UTC()
	}
	return block
}
