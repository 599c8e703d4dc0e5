package metrics

import (
	"time"

	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	indexerPassTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blockinsight7000",
		Subsystem: "ledger_indexer",
		Name:      "pass_total",
		Help:      "Count of indexing passes.",
	}, []string{"coin", "network", "status"})

	indexerPassDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "blockinsight7000",
		Subsystem: "ledger_indexer",
		Name:      "pass_duration_seconds",
		Help:      "Duration of indexing passes.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"coin", "network", "status"})

	indexerBlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blockinsight7000",
		Subsystem: "ledger_indexer",
		Name:      "blocks_total",
		Help:      "Count of blocks indexed by completed passes.",
	}, []string{"coin", "network"})

	indexerSkippedTxTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blockinsight7000",
		Subsystem: "ledger_indexer",
		Name:      "skipped_transactions_total",
		Help:      "Count of transactions skipped while indexing.",
	}, []string{"coin", "network", "reason"})

	indexerHeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "blockinsight7000",
		Subsystem: "ledger_indexer",
		Name:      "height",
		Help:      "Last indexed height and node chain height.",
	}, []string{"coin", "network", "source"})

	indexerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "blockinsight7000",
		Subsystem: "ledger_indexer",
		Name:      "state",
		Help:      "1 for the current indexer state, 0 otherwise.",
	}, []string{"coin", "network", "state"})
)

var indexerStates = []string{"idle", "running", "degraded"}

// Indexer tracks metrics for the block indexer.
type Indexer struct {
	coin    string
	network string
}

// NewIndexer constructs an Indexer collector.
func NewIndexer(coin model.Coin, network model.Network) *Indexer {
	if coin == "" {
		coin = "unknown"
	}
	if network == "" {
		network = "unknown"
	}
	return &Indexer{coin: string(coin), network: string(network)}
}

// ObservePass records a finished pass and the blocks it indexed.
func (m Indexer) ObservePass(err error, blocks int, started time.Time) {
	status := statusOf(err)
	indexerPassTotal.WithLabelValues(m.coin, m.network, status).Inc()
	indexerPassDuration.WithLabelValues(m.coin, m.network, status).Observe(time.Since(started).Seconds())
	if err == nil && blocks > 0 {
		indexerBlocksTotal.WithLabelValues(m.coin, m.network).Add(float64(blocks))
	}
}

// SetHeights publishes the local and chain heights.
func (m Indexer) SetHeights(local, chain int64) {
	indexerHeight.WithLabelValues(m.coin, m.network, "local").Set(float64(local))
	indexerHeight.WithLabelValues(m.coin, m.network, "chain").Set(float64(chain))
}

// IncSkippedTx counts a transaction skipped for reason.
func (m Indexer) IncSkippedTx(reason string) {
	indexerSkippedTxTotal.WithLabelValues(m.coin, m.network, reason).Inc()
}

// SetState marks state as the current one.
func (m Indexer) SetState(state string) {
	for _, s := range indexerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		indexerState.WithLabelValues(m.coin, m.network, s).Set(v)
	}
}
