// Package ledger folds per-address deltas collected by the indexer into the
// address ledger.
package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/model"
	"go.uber.org/zap"
)

const defaultStoreTimeout = 30 * time.Second

// Summary counts the outcome of one Apply call.
type Summary struct {
	Addresses int
	Merged    int
	Failed    int
	NewTxIDs  int
}

// Aggregator merges address deltas one address at a time. Each merge only
// adds the flows of txids that were not linked to the address before, so
// applying the same delta twice changes nothing.
type Aggregator struct {
	store        Store
	metrics      Metrics
	coin         model.Coin
	network      model.Network
	storeTimeout time.Duration
	logger       *zap.Logger
}

// NewAggregator builds an Aggregator. A non-positive storeTimeout falls back
// to the default.
func NewAggregator(store Store, metrics Metrics, coin model.Coin, network model.Network, storeTimeout time.Duration, logger *zap.Logger) *Aggregator {
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}
	return &Aggregator{
		store:        store,
		metrics:      metrics,
		coin:         coin,
		network:      network,
		storeTimeout: storeTimeout,
		logger: logger.Named("ledger").With(
			zap.String("coin", string(coin)),
			zap.String("network", string(network)),
		),
	}
}

// Apply merges deltas in address order. A failed merge is logged and skipped;
// only cancellation of ctx stops Apply early and is returned.
func (a *Aggregator) Apply(ctx context.Context, deltas map[string]*model.AddressDelta) (Summary, error) {
	addresses := make([]string, 0, len(deltas))
	for address, delta := range deltas {
		if address == "" || delta == nil || len(delta.Flows) == 0 {
			continue
		}
		addresses = append(addresses, address)
	}
	sort.Strings(addresses)

	summary := Summary{Addresses: len(addresses)}
	for _, address := range addresses {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		added, err := a.merge(ctx, deltas[address])
		if err != nil {
			summary.Failed++
			a.logger.Error("address merge failed, skipping",
				zap.String("address", address),
				zap.Int("txids", len(deltas[address].Flows)),
				zap.Error(err),
			)
			continue
		}
		summary.Merged++
		summary.NewTxIDs += added
	}

	a.logger.Debug("address deltas applied",
		zap.Int("addresses", summary.Addresses),
		zap.Int("merged", summary.Merged),
		zap.Int("failed", summary.Failed),
		zap.Int("new_txids", summary.NewTxIDs),
	)
	return summary, nil
}

func (a *Aggregator) merge(ctx context.Context, delta *model.AddressDelta) (added int, err error) {
	started := time.Now()
	defer func() {
		a.metrics.ObserveMerge(err, added, started)
	}()

	ctx, cancel := context.WithTimeout(ctx, a.storeTimeout)
	defer cancel()

	_, added, err = a.store.MergeAddressDelta(ctx, a.coin, a.network, delta)
	return added, err
}
