package metrics

import (
	"time"

	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	repositoryOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blockinsight7000",
		Subsystem: "ledger_repository",
		Name:      "operations_total",
		Help:      "Count of repository operations.",
	}, []string{"store", "operation", "coin", "network", "status"})
	repositoryOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "blockinsight7000",
		Subsystem: "ledger_repository",
		Name:      "operation_duration_seconds",
		Help:      "Duration of repository operations.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30},
	}, []string{"store", "operation", "coin", "network", "status"})
)

// Repository tracks metrics for the operations of one store.
type Repository struct {
	store string
}

// NewClickhouseRepository creates a collector for the chain store.
func NewClickhouseRepository() *Repository {
	return &Repository{store: "clickhouse"}
}

// NewPostgresRepository creates a collector for the ledger store.
func NewPostgresRepository() *Repository {
	return &Repository{store: "postgres"}
}

// Observe records duration and status of a repository operation.
func (m Repository) Observe(operation string, coin model.Coin, network model.Network, err error, started time.Time) {
	status := statusOf(err)
	if coin == "" {
		coin = "unknown"
	}
	if network == "" {
		network = "unknown"
	}

	repositoryOperationsTotal.WithLabelValues(m.store, operation, string(coin), string(network), status).Inc()
	repositoryOperationDuration.WithLabelValues(m.store, operation, string(coin), string(network), status).Observe(time.Since(started).Seconds())
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
