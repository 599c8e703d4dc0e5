package metrics

import (
	"time"

	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ledgerMergeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blockinsight7000",
		Subsystem: "address_ledger",
		Name:      "merge_total",
		Help:      "Count of address delta merges.",
	}, []string{"coin", "network", "status"})

	ledgerMergeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "blockinsight7000",
		Subsystem: "address_ledger",
		Name:      "merge_duration_seconds",
		Help:      "Duration of address delta merges.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"coin", "network", "status"})

	ledgerNewTxIDsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blockinsight7000",
		Subsystem: "address_ledger",
		Name:      "new_txids_total",
		Help:      "Count of txids newly linked to addresses.",
	}, []string{"coin", "network"})
)

// Ledger tracks metrics for the address ledger aggregator.
type Ledger struct {
	coin    string
	network string
}

// NewLedger constructs a Ledger collector.
func NewLedger(coin model.Coin, network model.Network) *Ledger {
	if coin == "" {
		coin = "unknown"
	}
	if network == "" {
		network = "unknown"
	}
	return &Ledger{coin: string(coin), network: string(network)}
}

// ObserveMerge records one address merge and how many txids it linked.
func (m Ledger) ObserveMerge(err error, added int, started time.Time) {
	status := statusOf(err)
	ledgerMergeTotal.WithLabelValues(m.coin, m.network, status).Inc()
	ledgerMergeDuration.WithLabelValues(m.coin, m.network, status).Observe(time.Since(started).Seconds())
	if added > 0 {
		ledgerNewTxIDsTotal.WithLabelValues(m.coin, m.network).Add(float64(added))
	}
}
