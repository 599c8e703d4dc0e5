package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-ledger/pkg/workerpool"
	"go.uber.org/zap"
)

// ErrOutputNotFound is returned when a previous output could not be resolved
// from the pass cache, the store or the node.
var ErrOutputNotFound = errors.New("previous output not found")

// outputResolverBatchSize controls how many txids are fetched in one repository call.
// It is a var to allow overriding in tests.
var outputResolverBatchSize = 1000

// OutputResolver resolves the outputs spent by transaction inputs. It prefers
// transactions seen earlier in the same pass, then already-indexed rows, and
// finally issues one lookup per missing transaction to the node. The outputs of
// a transaction fetched from the node are never resolved any further.
//
// A resolver is meant to live for a single indexing pass.
type OutputResolver struct {
	repo        TransactionRepository
	source      TransactionSource
	coin        model.Coin
	network     model.Network
	concurrency int
	logger      *zap.Logger

	mu    sync.RWMutex
	local map[string][]model.TransactionOutput
}

// NewOutputResolver constructs an OutputResolver for one coin/network. At most
// concurrency node lookups are in flight at a time.
func NewOutputResolver(
	repo TransactionRepository,
	source TransactionSource,
	coin model.Coin,
	network model.Network,
	concurrency int,
	logger *zap.Logger,
) *OutputResolver {
	return &OutputResolver{
		repo:        repo,
		source:      source,
		coin:        coin,
		network:     network,
		concurrency: concurrency,
		logger:      logger,
		local:       make(map[string][]model.TransactionOutput),
	}
}

// Seed registers the outputs of a transaction indexed in the current pass.
func (r *OutputResolver) Seed(tx model.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.local[tx.TxID] = tx.Outputs
}

// Prefetch loads the outputs of txids that are not cached yet. Lookups that
// fail are logged and left unresolved; Resolve reports them as ErrOutputNotFound.
func (r *OutputResolver) Prefetch(ctx context.Context, txids []string) {
	missing := r.missing(txids)
	if len(missing) == 0 {
		return
	}

	missing = r.loadStored(ctx, missing)
	if len(missing) == 0 {
		return
	}

	err := workerpool.Each(ctx, r.concurrency, missing, func(ctx context.Context, txid string) error {
		tx, err := r.source.FetchTransaction(ctx, txid)
		if err != nil {
			return fmt.Errorf("fetch previous tx %s: %w", txid, err)
		}
		r.mu.Lock()
		r.local[txid] = tx.Outputs
		r.mu.Unlock()
		return nil
	})
	if err != nil {
		r.logger.Warn("previous transactions not resolved from node", zap.Int("requested", len(missing)), zap.Error(err))
	}
}

// Resolve returns the output at vout of txid from the cache filled by Seed and Prefetch.
func (r *OutputResolver) Resolve(txid string, vout uint32) (model.TransactionOutput, error) {
	r.mu.RLock()
	outputs, ok := r.local[txid]
	r.mu.RUnlock()
	if !ok {
		return model.TransactionOutput{}, fmt.Errorf("tx %s: %w", txid, ErrOutputNotFound)
	}
	if int(vout) >= len(outputs) {
		return model.TransactionOutput{}, fmt.Errorf("tx %s vout %d: %w", txid, vout, ErrOutputNotFound)
	}
	return outputs[vout], nil
}

func (r *OutputResolver) missing(txids []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(txids))
	missing := make([]string, 0, len(txids))
	for _, txid := range txids {
		if _, dup := seen[txid]; dup {
			continue
		}
		seen[txid] = struct{}{}
		if _, ok := r.local[txid]; ok {
			continue
		}
		missing = append(missing, txid)
	}
	return missing
}

// loadStored fills the cache from the repository and returns the txids it did not find.
func (r *OutputResolver) loadStored(ctx context.Context, txids []string) []string {
	size := outputResolverBatchSize
	if size <= 0 {
		size = 1000
	}

	notFound := make([]string, 0)
	for start := 0; start < len(txids); start += size {
		end := start + size
		if end > len(txids) {
			end = len(txids)
		}
		chunk := txids[start:end]

		stored, err := r.repo.TransactionsByTxIDs(ctx, r.coin, r.network, chunk)
		if err != nil {
			r.logger.Warn("lookup of indexed transactions failed, falling back to node", zap.Int("txids", len(chunk)), zap.Error(err))
			notFound = append(notFound, chunk...)
			continue
		}

		r.mu.Lock()
		for _, txid := range chunk {
			tx, ok := stored[txid]
			if !ok {
				notFound = append(notFound, txid)
				continue
			}
			r.local[txid] = tx.Outputs
		}
		r.mu.Unlock()
	}
	return notFound
}
