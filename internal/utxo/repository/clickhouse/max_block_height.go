package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/model"
)

const maxBlockHeightQuery = `
SELECT count() AS blocks, max(height) AS max_height
FROM utxo_blocks
WHERE coin = ? AND network = ?`

// MaxBlockHeight returns the maximum height stored for a coin/network. ok is
// false when no block is stored.
func (r *Repository) MaxBlockHeight(ctx context.Context, coin model.Coin, network model.Network) (height uint64, ok bool, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("max_block_height", coin, network, err, start)
	}()

	rows, err := r.conn.Query(ctx, maxBlockHeightQuery, string(coin), string(network))
	if err != nil {
		return 0, false, fmt.Errorf("query max block height: %w", err)
	}
	defer closeRows(rows, &err)

	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return 0, false, fmt.Errorf("iterate max block height: %w", err)
		}
		return 0, false, fmt.Errorf("max block height not found")
	}

	var blocks uint64
	if err = rows.Scan(&blocks, &height); err != nil {
		return 0, false, fmt.Errorf("scan max block height: %w", err)
	}
	if err = rows.Err(); err != nil {
		return 0, false, fmt.Errorf("iterate max block height: %w", err)
	}

	return height, blocks > 0, nil
}
