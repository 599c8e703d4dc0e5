package metrics

import (
	"time"

	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reconcilerRunTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blockinsight7000",
		Subsystem: "balance_reconciler",
		Name:      "run_total",
		Help:      "Count of reconciliation runs.",
	}, []string{"coin", "network", "status"})

	reconcilerRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "blockinsight7000",
		Subsystem: "balance_reconciler",
		Name:      "run_duration_seconds",
		Help:      "Duration of reconciliation runs.",
		Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"coin", "network", "status"})

	reconcilerRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blockinsight7000",
		Subsystem: "balance_reconciler",
		Name:      "rows_total",
		Help:      "Count of address rows by reconciliation outcome.",
	}, []string{"coin", "network", "outcome"})

	reconcilerFailedBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blockinsight7000",
		Subsystem: "balance_reconciler",
		Name:      "failed_batches_total",
		Help:      "Count of reconciliation batches rolled back.",
	}, []string{"coin", "network"})

	reconcilerDegraded = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "blockinsight7000",
		Subsystem: "balance_reconciler",
		Name:      "degraded",
		Help:      "1 while the reconciler runs on the recovery interval.",
	}, []string{"coin", "network"})
)

// RunCounts are the per-run totals reported by the reconciler.
type RunCounts struct {
	Scanned        int
	Fixed          int
	NegativeZeroed int
	Anomalies      int
	HighValueFixed int
	FailedBatches  int
}

// Reconciler tracks metrics for the balance reconciler.
type Reconciler struct {
	coin    string
	network string
}

// NewReconciler constructs a Reconciler collector.
func NewReconciler(coin model.Coin, network model.Network) *Reconciler {
	if coin == "" {
		coin = "unknown"
	}
	if network == "" {
		network = "unknown"
	}
	return &Reconciler{coin: string(coin), network: string(network)}
}

// ObserveRun records one reconciliation run.
func (m Reconciler) ObserveRun(err error, counts RunCounts, started time.Time) {
	status := statusOf(err)
	reconcilerRunTotal.WithLabelValues(m.coin, m.network, status).Inc()
	reconcilerRunDuration.WithLabelValues(m.coin, m.network, status).Observe(time.Since(started).Seconds())

	reconcilerRowsTotal.WithLabelValues(m.coin, m.network, "scanned").Add(float64(counts.Scanned))
	reconcilerRowsTotal.WithLabelValues(m.coin, m.network, "fixed").Add(float64(counts.Fixed))
	reconcilerRowsTotal.WithLabelValues(m.coin, m.network, "negative_zeroed").Add(float64(counts.NegativeZeroed))
	reconcilerRowsTotal.WithLabelValues(m.coin, m.network, "anomaly").Add(float64(counts.Anomalies))
	reconcilerRowsTotal.WithLabelValues(m.coin, m.network, "high_value_fixed").Add(float64(counts.HighValueFixed))
	reconcilerFailedBatchesTotal.WithLabelValues(m.coin, m.network).Add(float64(counts.FailedBatches))
}

// SetDegraded publishes whether the recovery cadence is active.
func (m Reconciler) SetDegraded(degraded bool) {
	v := 0.0
	if degraded {
		v = 1
	}
	reconcilerDegraded.WithLabelValues(m.coin, m.network).Set(v)
}
