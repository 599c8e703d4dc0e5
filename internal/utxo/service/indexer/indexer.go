// Package indexer walks the node's best chain forward from the last indexed
// height, storing block and transaction rows and folding address deltas into
// the ledger.
package indexer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/clock"
	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/chain"
	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/service/ledger"
	"go.uber.org/zap"
)

// ErrPassInProgress is returned by RunOnce while another pass is running.
var ErrPassInProgress = errors.New("indexing pass already in progress")

// State is the indexer lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Result describes one finished pass.
type Result struct {
	// LocalHeight is the last indexed height after the pass.
	LocalHeight int64
	ChainHeight int64
	Blocks      int
	// Truncated is set when the pass stopped at MaxBatch with more blocks pending.
	Truncated  bool
	SkippedTxs int
	Ledger     ledger.Summary
}

// Service runs indexing passes. At most one pass is active at a time; a pass
// that fails leaves the service Degraded until the next pass succeeds.
type Service struct {
	source  chain.Source
	store   ChainStore
	tracker Tracker
	ledger  Ledger
	metrics Metrics
	coin    model.Coin
	network model.Network
	cfg     Config
	logger  *zap.Logger

	sleep func(context.Context, time.Duration, <-chan struct{}) error
	wake  <-chan struct{}

	mu    sync.Mutex
	state atomic.Int32
}

// NewService builds an indexer Service. wake, when non-nil, cuts the wait
// between passes short, for example on a new block notification.
func NewService(
	source chain.Source,
	store ChainStore,
	tracker Tracker,
	addressLedger Ledger,
	metrics Metrics,
	coin model.Coin,
	network model.Network,
	cfg Config,
	wake <-chan struct{},
	logger *zap.Logger,
) (*Service, error) {
	if metrics == nil {
		return nil, errors.New("indexer metrics is required")
	}
	if source == nil || store == nil || tracker == nil || addressLedger == nil {
		return nil, errors.New("indexer source, store, tracker and ledger are required")
	}

	s := &Service{
		source:  source,
		store:   store,
		tracker: tracker,
		ledger:  addressLedger,
		metrics: metrics,
		coin:    coin,
		network: network,
		cfg:     cfg.withDefaults(),
		logger: logger.Named("indexer").With(
			zap.String("coin", string(coin)),
			zap.String("network", string(network)),
		),
		sleep: clock.SleepOrSignal,
		wake:  wake,
	}
	s.setState(StateIdle)
	return s, nil
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	return State(s.state.Load())
}

func (s *Service) setState(state State) {
	s.state.Store(int32(state))
	s.metrics.SetState(state.String())
}

// Run executes passes until ctx is canceled. Failed passes are logged and
// retried on the next tick.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("block indexer started",
		zap.Int("max_batch", s.cfg.MaxBatch),
		zap.Duration("poll_interval", s.cfg.PollInterval),
	)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		delay := s.cfg.PollInterval
		res, err := s.RunOnce(ctx)
		switch {
		case errors.Is(err, ErrPassInProgress):
			s.logger.Debug("pass already running, skipping tick")
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			s.logger.Warn("indexing pass failed, retrying on next tick", zap.Error(err), zap.Duration("sleep", delay))
		case res.Truncated:
			delay = s.cfg.CatchUpDelay
		}

		if err := s.sleep(ctx, delay, s.wake); err != nil {
			return err
		}
	}
}

// RunOnce runs a single pass. It returns ErrPassInProgress without doing
// anything when a pass is already running.
func (s *Service) RunOnce(ctx context.Context) (Result, error) {
	if !s.mu.TryLock() {
		return Result{}, ErrPassInProgress
	}
	defer s.mu.Unlock()

	s.setState(StateRunning)
	started := time.Now()
	res, err := s.pass(ctx)
	s.metrics.ObservePass(err, res.Blocks, started)
	if err != nil {
		s.setState(StateDegraded)
		return res, err
	}
	s.setState(StateIdle)
	return res, nil
}
