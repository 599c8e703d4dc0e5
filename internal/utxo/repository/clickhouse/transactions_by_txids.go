package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/model"
)

const transactionsByTxIDsQuery = `
SELECT
	txid,
	block_height,
	block_hash,
	timestamp,
	is_coinbase,
	input_prev_txids,
	input_prev_vouts,
	input_addresses,
	input_values,
	output_addresses,
	output_values
FROM utxo_transactions FINAL
WHERE coin = ? AND network = ? AND txid IN ?`

// TransactionsByTxIDs returns the stored transactions among txids keyed by
// txid. Unknown txids are absent from the result.
func (r *Repository) TransactionsByTxIDs(ctx context.Context, coin model.Coin, network model.Network, txids []string) (result map[string]model.Transaction, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("transactions_by_txids", coin, network, err, start)
	}()

	result = make(map[string]model.Transaction, len(txids))
	if len(txids) == 0 {
		return result, nil
	}

	rows, err := r.conn.Query(ctx, transactionsByTxIDsQuery, string(coin), string(network), txids)
	if err != nil {
		return nil, fmt.Errorf("query transactions by txids: %w", err)
	}
	defer closeRows(rows, &err)

	for rows.Next() {
		tx := model.Transaction{Coin: coin, Network: network}
		var cols transactionColumns
		if err = rows.Scan(
			&tx.TxID,
			&tx.BlockHeight,
			&tx.BlockHash,
			&tx.Timestamp,
			&tx.IsCoinbase,
			&cols.prevTxIDs,
			&cols.prevVouts,
			&cols.inputAddresses,
			&cols.inputValues,
			&cols.outputAddresses,
			&cols.outputValues,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Timestamp = tx.Timestamp.UTC()
		if err = joinTransaction(&tx, cols); err != nil {
			return nil, err
		}
		result[tx.TxID] = tx
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	return result, nil
}
