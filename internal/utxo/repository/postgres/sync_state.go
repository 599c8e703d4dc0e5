package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/model"
	"github.com/jackc/pgx/v5"
)

const loadSyncStateQuery = `
SELECT last_indexed_height, updated_at
FROM ledger_sync_state
WHERE coin = $1 AND network = $2`

// LoadSyncState returns the stored sync state. ok is false when none has been
// saved yet.
func (r *Repository) LoadSyncState(ctx context.Context, coin model.Coin, network model.Network) (state model.SyncState, ok bool, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("load_sync_state", coin, network, err, start)
	}()

	state = model.SyncState{Coin: coin, Network: network}
	err = r.pool.QueryRow(ctx, loadSyncStateQuery, string(coin), string(network)).
		Scan(&state.LastIndexedHeight, &state.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		err = nil
		return model.SyncState{Coin: coin, Network: network, LastIndexedHeight: model.NoHeight}, false, nil
	}
	if err != nil {
		err = storageErr("load sync state", err)
		return model.SyncState{}, false, err
	}
	return state, true, nil
}

// The stored height only moves forward; a lower height is ignored.
const saveSyncStateQuery = `
INSERT INTO ledger_sync_state (coin, network, last_indexed_height, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (coin, network) DO UPDATE
SET last_indexed_height = GREATEST(ledger_sync_state.last_indexed_height, EXCLUDED.last_indexed_height),
    updated_at = now()
RETURNING last_indexed_height`

// SaveSyncState persists height and returns the height now stored.
func (r *Repository) SaveSyncState(ctx context.Context, coin model.Coin, network model.Network, height int64) (stored int64, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("save_sync_state", coin, network, err, start)
	}()

	if err = r.pool.QueryRow(ctx, saveSyncStateQuery, string(coin), string(network), height).Scan(&stored); err != nil {
		err = storageErr("save sync state", err)
		return 0, err
	}
	return stored, nil
}
