// Package syncstate tracks the last height whose blocks and address deltas were
// fully indexed.
package syncstate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-ledger/pkg/safe"
	"go.uber.org/zap"
)

// ErrNotLoaded is returned by Advance before Load succeeded.
var ErrNotLoaded = errors.New("sync state not loaded")

// Tracker is the in-process view of the durable sync state of one coin/network.
// The stored height never decreases.
type Tracker struct {
	store       Store
	chain       ChainStore
	coin        model.Coin
	network     model.Network
	startHeight uint64
	logger      *zap.Logger

	mu     sync.Mutex
	loaded bool
	height atomic.Int64
}

// NewTracker builds a Tracker. startHeight is the first height indexed when
// neither a state row nor stored blocks exist.
func NewTracker(store Store, chain ChainStore, coin model.Coin, network model.Network, startHeight uint64, logger *zap.Logger) *Tracker {
	t := &Tracker{
		store:       store,
		chain:       chain,
		coin:        coin,
		network:     network,
		startHeight: startHeight,
		logger: logger.Named("syncState").With(
			zap.String("coin", string(coin)),
			zap.String("network", string(network)),
		),
	}
	t.height.Store(model.NoHeight)
	return t
}

// Load reads the stored height once and caches it. A missing row is derived
// from the highest stored block, or startHeight-1 when there is none, and
// persisted.
func (t *Tracker) Load(ctx context.Context) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.loaded {
		return t.height.Load(), nil
	}

	state, ok, err := t.store.LoadSyncState(ctx, t.coin, t.network)
	if err != nil {
		return model.NoHeight, fmt.Errorf("load sync state: %w", err)
	}
	if ok {
		t.height.Store(state.LastIndexedHeight)
		t.loaded = true
		t.logger.Info("sync state loaded", zap.Int64("last_indexed_height", state.LastIndexedHeight))
		return state.LastIndexedHeight, nil
	}

	height, err := t.bootstrapHeight(ctx)
	if err != nil {
		return model.NoHeight, err
	}
	stored, err := t.store.SaveSyncState(ctx, t.coin, t.network, height)
	if err != nil {
		return model.NoHeight, fmt.Errorf("save bootstrapped sync state: %w", err)
	}

	t.height.Store(stored)
	t.loaded = true
	t.logger.Info("sync state bootstrapped", zap.Int64("last_indexed_height", stored))
	return stored, nil
}

func (t *Tracker) bootstrapHeight(ctx context.Context) (int64, error) {
	maxHeight, ok, err := t.chain.MaxBlockHeight(ctx, t.coin, t.network)
	if err != nil {
		return model.NoHeight, fmt.Errorf("bootstrap from stored blocks: %w", err)
	}
	if !ok {
		start, err := safe.Int64(t.startHeight)
		if err != nil {
			return model.NoHeight, fmt.Errorf("start height: %w", err)
		}
		return start - 1, nil
	}
	height, err := safe.Int64(maxHeight)
	if err != nil {
		return model.NoHeight, fmt.Errorf("max block height: %w", err)
	}
	return height, nil
}

// LastIndexedHeight returns the cached height, model.NoHeight before Load.
func (t *Tracker) LastIndexedHeight() int64 {
	return t.height.Load()
}

// Advance persists height if it is above the current one. Lower heights are
// ignored.
func (t *Tracker) Advance(ctx context.Context, height int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.loaded {
		return ErrNotLoaded
	}
	current := t.height.Load()
	if height <= current {
		t.logger.Debug("ignoring non-advancing height", zap.Int64("height", height), zap.Int64("current", current))
		return nil
	}

	stored, err := t.store.SaveSyncState(ctx, t.coin, t.network, height)
	if err != nil {
		return fmt.Errorf("advance sync state to %d: %w", height, err)
	}
	t.height.Store(stored)
	return nil
}
