package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/model"
)

const insertBlocksQuery = `
INSERT INTO utxo_blocks (
	coin,
	network,
	height,
	hash,
	previous_hash,
	next_hash,
	timestamp,
	version,
	merkleroot,
	bits,
	nonce,
	difficulty,
	size,
	tx_count,
	txids
) VALUES`

// InsertBlocks stores block rows in ClickHouse. A block written again replaces
// the previous row with the same height.
func (r *Repository) InsertBlocks(ctx context.Context, blocks []model.Block) error {
	start := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("insert_blocks", firstCoin(blocks), firstNetwork(blocks), err, start)
	}()

	if len(blocks) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, insertBlocksQuery)
	if err != nil {
		return fmt.Errorf("prepare blocks batch: %w", err)
	}

	for _, block := range blocks {
		if err = batch.Append(
			string(block.Coin),
			string(block.Network),
			block.Height,
			block.Hash,
			block.PreviousHash,
			block.NextHash,
			block.Timestamp,
			block.Version,
			block.MerkleRoot,
			block.Bits,
			block.Nonce,
			block.Difficulty,
			block.Size,
			uint32(len(block.TxIDs)),
			block.TxIDs,
		); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append block %d: %w", block.Height, err)
		}
	}

	if err = batch.Send(); err != nil {
		return fmt.Errorf("insert blocks: %w", err)
	}
	return nil
}

const backfillNextHashQuery = `
INSERT INTO utxo_blocks (
	coin,
	network,
	height,
	hash,
	previous_hash,
	next_hash,
	timestamp,
	version,
	merkleroot,
	bits,
	nonce,
	difficulty,
	size,
	tx_count,
	txids
)
SELECT
	coin,
	network,
	height,
	hash,
	previous_hash,
	? AS next_hash,
	timestamp,
	version,
	merkleroot,
	bits,
	nonce,
	difficulty,
	size,
	tx_count,
	txids
FROM utxo_blocks FINAL
WHERE coin = ? AND network = ? AND height = ? AND next_hash != ?`

// BackfillNextHash sets next_hash of the stored block at height. It is a
// no-op when the block is missing or already points at nextHash.
func (r *Repository) BackfillNextHash(ctx context.Context, coin model.Coin, network model.Network, height uint64, nextHash string) error {
	start := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("backfill_next_hash", coin, network, err, start)
	}()

	if err = r.conn.Exec(ctx, backfillNextHashQuery, nextHash, string(coin), string(network), height, nextHash); err != nil {
		return fmt.Errorf("backfill next hash at %d: %w", height, err)
	}
	return nil
}
