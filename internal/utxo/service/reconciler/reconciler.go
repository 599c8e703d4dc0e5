// Package reconciler repairs drift between the cached balance of address rows
// and the balance derived from their received and sent totals.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/clock"
	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/metrics"
	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/model"
	"go.uber.org/zap"
)

// ErrRunInProgress is returned by RunOnce and Trigger while a run is active.
var ErrRunInProgress = errors.New("reconciliation already in progress")

// Summary counts the outcome of one run. Scanned counts distinct rows; a row
// fixed to a lower balance that shows up again on a later page is not counted
// twice. Anomalies counts rows whose total sent exceeds total received, whether
// or not their balance needed fixing. NegativeZeroed and HighValueFixed are
// subsets of Fixed.
type Summary struct {
	Scanned        int
	Fixed          int
	NegativeZeroed int
	Anomalies      int
	HighValueFixed int
	FailedBatches  int
}

func (s *Summary) add(o Summary) {
	s.Scanned += o.Scanned
	s.Fixed += o.Fixed
	s.NegativeZeroed += o.NegativeZeroed
	s.Anomalies += o.Anomalies
	s.HighValueFixed += o.HighValueFixed
	s.FailedBatches += o.FailedBatches
}

// Service runs reconciliation on a timer. Rows are visited in pages ordered by
// balance descending and each page is fixed in its own storage transaction.
type Service struct {
	store   Store
	metrics Metrics
	coin    model.Coin
	network model.Network
	cfg     Config
	logger  *zap.Logger

	sleep func(context.Context, time.Duration) error

	mu       sync.Mutex
	failures atomic.Int32
}

// NewService builds a reconciler Service.
func NewService(store Store, metrics Metrics, coin model.Coin, network model.Network, cfg Config, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("reconciler store is required")
	}
	if metrics == nil {
		return nil, errors.New("reconciler metrics is required")
	}
	return &Service{
		store:   store,
		metrics: metrics,
		coin:    coin,
		network: network,
		cfg:     cfg.withDefaults(),
		logger: logger.Named("reconciler").With(
			zap.String("coin", string(coin)),
			zap.String("network", string(network)),
		),
		sleep: clock.SleepWithContext,
	}, nil
}

// Run waits StartupDelay and then reconciles every Interval, or every
// RecoveryInterval while degraded, until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("balance reconciler started",
		zap.Duration("startup_delay", s.cfg.StartupDelay),
		zap.Duration("interval", s.cfg.Interval),
	)
	if err := s.sleep(ctx, s.cfg.StartupDelay); err != nil {
		return err
	}

	for {
		_, err := s.RunOnce(ctx)
		switch {
		case errors.Is(err, ErrRunInProgress):
			s.logger.Debug("run already in progress, skipping tick")
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			s.logger.Warn("reconciliation run failed", zap.Error(err), zap.Int32("consecutive_failures", s.failures.Load()))
		}

		if err := s.sleep(ctx, s.nextInterval()); err != nil {
			return err
		}
	}
}

// Trigger runs reconciliation once on demand. It returns ErrRunInProgress
// without doing anything when a run is already active.
func (s *Service) Trigger(ctx context.Context) (Summary, error) {
	s.logger.Info("reconciliation triggered")
	return s.RunOnce(ctx)
}

// Degraded reports whether the recovery cadence is active.
func (s *Service) Degraded() bool {
	return int(s.failures.Load()) >= s.cfg.FailureThreshold
}

func (s *Service) nextInterval() time.Duration {
	if s.Degraded() {
		return s.cfg.RecoveryInterval
	}
	return s.cfg.Interval
}

// RunOnce performs one full reconciliation pass. A run fails when a page could
// not be read or any batch was rolled back.
func (s *Service) RunOnce(ctx context.Context) (Summary, error) {
	if !s.mu.TryLock() {
		return Summary{}, ErrRunInProgress
	}
	defer s.mu.Unlock()

	started := time.Now()
	summary, err := s.reconcile(ctx)
	if err == nil && summary.FailedBatches > 0 {
		err = fmt.Errorf("%d batches rolled back", summary.FailedBatches)
	}
	s.metrics.ObserveRun(err, metrics.RunCounts{
		Scanned:        summary.Scanned,
		Fixed:          summary.Fixed,
		NegativeZeroed: summary.NegativeZeroed,
		Anomalies:      summary.Anomalies,
		HighValueFixed: summary.HighValueFixed,
		FailedBatches:  summary.FailedBatches,
	}, started)
	s.recordOutcome(err)

	s.logger.Info("reconciliation finished",
		zap.Int("scanned", summary.Scanned),
		zap.Int("fixed", summary.Fixed),
		zap.Int("negative_zeroed", summary.NegativeZeroed),
		zap.Int("anomalies", summary.Anomalies),
		zap.Int("high_value_fixed", summary.HighValueFixed),
		zap.Int("failed_batches", summary.FailedBatches),
		zap.Duration("took", time.Since(started)),
		zap.Error(err),
	)
	return summary, err
}

func (s *Service) recordOutcome(err error) {
	if err == nil {
		if s.failures.Swap(0) >= int32(s.cfg.FailureThreshold) {
			s.logger.Info("reconciler recovered, back to normal cadence")
		}
		s.metrics.SetDegraded(false)
		return
	}

	failures := s.failures.Add(1)
	if int(failures) == s.cfg.FailureThreshold {
		s.logger.Warn("reconciler degraded, switching to recovery cadence",
			zap.Int32("consecutive_failures", failures),
			zap.Duration("recovery_interval", s.cfg.RecoveryInterval),
		)
	}
	s.metrics.SetDegraded(int(failures) >= s.cfg.FailureThreshold)
}

func (s *Service) reconcile(ctx context.Context) (Summary, error) {
	var (
		summary Summary
		after   *model.BalanceCursor
		// lowered holds rows fixed to a smaller balance; they sort behind the
		// cursor and are read again.
		lowered = make(map[string]struct{})
	)
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		page, err := s.page(ctx, after)
		if err != nil {
			return summary, fmt.Errorf("read balance page: %w", err)
		}
		if len(page) == 0 {
			return summary, nil
		}

		var stale []string
		for _, row := range page {
			if _, seen := lowered[row.Address]; seen {
				continue
			}
			summary.Scanned++
			expected, negative := row.ExpectedBalance()
			if negative {
				summary.Anomalies++
				s.logger.Warn("address sent more than it received",
					zap.String("address", row.Address),
					zap.Uint64("total_received", row.TotalReceived),
					zap.Uint64("total_sent", row.TotalSent),
					zap.Uint64("cached_balance", row.Balance),
				)
			}
			if row.Balance != expected {
				stale = append(stale, row.Address)
			}
		}

		if len(stale) > 0 {
			fixed, moved, err := s.fixBatch(ctx, stale)
			if err != nil {
				summary.FailedBatches++
				s.logger.Warn("balance batch rolled back", zap.Int("addresses", len(stale)), zap.Error(err))
			} else {
				summary.add(fixed)
				for _, address := range moved {
					lowered[address] = struct{}{}
				}
			}
		}

		if len(page) < s.cfg.BatchSize {
			return summary, nil
		}
		last := page[len(page)-1]
		after = &model.BalanceCursor{Balance: last.Balance, Address: last.Address}
	}
}

func (s *Service) page(ctx context.Context, after *model.BalanceCursor) ([]model.AddressBalance, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	return s.store.BalancePage(ctx, s.coin, s.network, after, s.cfg.BatchSize)
}

// fixBatch rewrites the balances of addresses after re-reading them under lock,
// so rows changed by the indexer since the page was read are judged on their
// current totals. lowered lists the rows whose balance went down.
func (s *Service) fixBatch(ctx context.Context, addresses []string) (fixed Summary, lowered []string, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	err = s.store.UpdateBalances(ctx, s.coin, s.network, addresses, func(locked []model.AddressBalance) ([]model.BalanceUpdate, error) {
		fixed, lowered = Summary{}, nil
		updates := make([]model.BalanceUpdate, 0, len(locked))
		for _, row := range locked {
			expected, negative := row.ExpectedBalance()
			if row.Balance == expected {
				continue
			}
			updates = append(updates, model.BalanceUpdate{Address: row.Address, Balance: expected})
			fixed.Fixed++
			if negative {
				fixed.NegativeZeroed++
			}
			if max(row.Balance, expected) >= s.cfg.HighValueThreshold {
				fixed.HighValueFixed++
			}
			if expected < row.Balance {
				lowered = append(lowered, row.Address)
			}
		}
		return updates, nil
	})
	if err != nil {
		return Summary{}, nil, err
	}
	return fixed, lowered, nil
}
