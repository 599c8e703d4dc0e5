package indexer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/chain"
	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-ledger/pkg/batcher"
	"github.com/goodnatureofminers/blockinsight7000-ledger/pkg/safe"
	"go.uber.org/zap"
)

const (
	skipReasonProjection      = "projection"
	skipReasonUnresolvedInput = "unresolved_input"
	skipReasonStore           = "store"
)

// passState is the working set of one pass.
type passState struct {
	resolver *chain.OutputResolver
	txWriter *batcher.Batcher[model.Transaction]
	deltas   map[string]*model.AddressDelta
	skipped  int
	// unstored counts transaction rows whose insert failed; written by the
	// tx writer goroutine.
	unstored atomic.Int64
}

func (s *Service) pass(ctx context.Context) (Result, error) {
	local, err := s.tracker.Load(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load last indexed height: %w", err)
	}
	latest, err := s.source.LatestHeight(ctx)
	if err != nil {
		return Result{LocalHeight: local}, fmt.Errorf("fetch chain height: %w", err)
	}
	chainHeight, err := safe.Int64(latest)
	if err != nil {
		return Result{LocalHeight: local}, fmt.Errorf("chain height: %w", err)
	}
	s.metrics.SetHeights(local, chainHeight)

	res := Result{LocalHeight: local, ChainHeight: chainHeight}
	if chainHeight <= local {
		s.logger.Debug("no new blocks", zap.Int64("local_height", local), zap.Int64("chain_height", chainHeight))
		return res, nil
	}

	batch := chainHeight - local
	if batch > int64(s.cfg.MaxBatch) {
		batch = int64(s.cfg.MaxBatch)
		res.Truncated = true
	}
	from, to := local+1, local+batch

	st := &passState{
		resolver: chain.NewOutputResolver(s.store, s.source, s.coin, s.network, s.cfg.ResolveConcurrency, s.logger.Named("outputResolver")),
		deltas:   make(map[string]*model.AddressDelta),
	}
	st.txWriter = batcher.New(s.logger.Named("txWriter"), func(ctx context.Context, txs []model.Transaction) error {
		if err := s.writeTransactions(ctx, txs); err != nil {
			st.unstored.Add(int64(len(txs)))
			for range txs {
				s.metrics.IncSkippedTx(skipReasonStore)
			}
			return err
		}
		return nil
	}, s.cfg.TxFlushSize, s.cfg.TxFlushInterval, s.cfg.TxFlushRPS)
	st.txWriter.Start(ctx)
	defer func() {
		_ = st.txWriter.Stop()
	}()

	s.logger.Info("indexing blocks",
		zap.Int64("from", from),
		zap.Int64("to", to),
		zap.Int64("chain_height", chainHeight),
	)
	for height := from; height <= to; height++ {
		if err := s.indexBlock(ctx, uint64(height), height == from && local >= 0, st); err != nil {
			res.SkippedTxs = st.skipped
			return res, fmt.Errorf("index block %d: %w", height, err)
		}
		res.Blocks++
	}
	// a lost transaction row fails the pass before any ledger write, so the
	// same heights are indexed again from scratch
	writeErr := st.txWriter.Stop()
	res.SkippedTxs = st.skipped + int(st.unstored.Load())
	if writeErr != nil {
		return res, fmt.Errorf("store transaction rows (%d not stored): %w", st.unstored.Load(), writeErr)
	}

	summary, err := s.ledger.Apply(ctx, st.deltas)
	res.Ledger = summary
	if err != nil {
		return res, fmt.Errorf("apply address deltas: %w", err)
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	if err := s.tracker.Advance(storeCtx, to); err != nil {
		return res, fmt.Errorf("advance sync state: %w", err)
	}
	res.LocalHeight = to
	s.metrics.SetHeights(to, chainHeight)

	s.logger.Info("pass complete",
		zap.Int64("local_height", to),
		zap.Int("blocks", res.Blocks),
		zap.Int("skipped_txs", res.SkippedTxs),
		zap.Int("addresses", summary.Addresses),
		zap.Int("failed_merges", summary.Failed),
	)
	return res, nil
}

// indexBlock stores one block and queues its transactions. Only block fetch
// and block row failures are returned; transaction level failures are counted
// and logged.
func (s *Service) indexBlock(ctx context.Context, height uint64, backfillPrev bool, st *passState) error {
	fetched, err := s.source.FetchBlock(ctx, height)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if backfillPrev {
		s.backfillNextHash(ctx, height-1, fetched.Block.Hash)
	}
	if err := s.writeBlock(ctx, fetched.Block); err != nil {
		return fmt.Errorf("store block row: %w", err)
	}

	for _, skipped := range fetched.Skipped {
		st.skipped++
		s.metrics.IncSkippedTx(skipReasonProjection)
		s.logger.Warn("transaction skipped, projection failed",
			zap.Uint64("height", height),
			zap.String("txid", skipped.TxID),
			zap.Error(skipped.Err),
		)
	}

	for _, tx := range fetched.Txs {
		st.resolver.Seed(tx)
	}
	st.resolver.Prefetch(ctx, previousTxIDs(fetched.Txs))

	for _, tx := range fetched.Txs {
		resolved, err := resolveInputs(st.resolver, tx)
		if err != nil {
			st.skipped++
			s.metrics.IncSkippedTx(skipReasonUnresolvedInput)
			s.logger.Warn("transaction skipped, input not resolved",
				zap.Uint64("height", height),
				zap.String("txid", tx.TxID),
				zap.Error(err),
			)
			continue
		}
		if err := st.txWriter.Add(ctx, resolved); err != nil {
			return fmt.Errorf("queue transaction %s: %w", tx.TxID, err)
		}
		addDeltas(st.deltas, resolved)
	}
	return nil
}

func (s *Service) backfillNextHash(ctx context.Context, height uint64, nextHash string) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	if err := s.store.BackfillNextHash(ctx, s.coin, s.network, height, nextHash); err != nil {
		s.logger.Warn("next hash backfill failed", zap.Uint64("height", height), zap.Error(err))
	}
}

func (s *Service) writeBlock(ctx context.Context, block model.Block) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return s.store.InsertBlocks(ctx, []model.Block{block})
}

func (s *Service) writeTransactions(ctx context.Context, txs []model.Transaction) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	started := time.Now()
	if err := s.store.InsertTransactions(ctx, txs); err != nil {
		return fmt.Errorf("insert %d transactions: %w", len(txs), err)
	}
	s.logger.Debug("transactions stored", zap.Int("txs", len(txs)), zap.Duration("took", time.Since(started)))
	return nil
}

func previousTxIDs(txs []model.Transaction) []string {
	var txids []string
	for _, tx := range txs {
		for _, in := range tx.Inputs {
			if in.IsCoinbase {
				continue
			}
			txids = append(txids, in.PrevTxID)
		}
	}
	return txids
}

// resolveInputs returns a copy of tx with the address and value of every
// non-coinbase input filled from the spent output.
func resolveInputs(resolver *chain.OutputResolver, tx model.Transaction) (model.Transaction, error) {
	inputs := make([]model.TransactionInput, len(tx.Inputs))
	for i, in := range tx.Inputs {
		if !in.IsCoinbase {
			out, err := resolver.Resolve(in.PrevTxID, in.PrevVout)
			if err != nil {
				return tx, fmt.Errorf("input %d: %w", i, err)
			}
			in.Address = out.Address
			in.Value = out.Value
		}
		inputs[i] = in
	}
	tx.Inputs = inputs
	return tx, nil
}

// addDeltas credits outputs and debits resolved inputs of tx to their addresses.
func addDeltas(deltas map[string]*model.AddressDelta, tx model.Transaction) {
	deltaFor := func(address string) *model.AddressDelta {
		d, ok := deltas[address]
		if !ok {
			d = model.NewAddressDelta(address)
			deltas[address] = d
		}
		return d
	}

	for _, out := range tx.Outputs {
		if out.Address == "" {
			continue
		}
		deltaFor(out.Address).AddReceived(tx.TxID, out.Value)
	}
	for _, in := range tx.Inputs {
		if in.IsCoinbase || in.Address == "" {
			continue
		}
		deltaFor(in.Address).AddSent(tx.TxID, in.Value)
	}
}
