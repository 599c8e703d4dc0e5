package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/model"
)

const insertTransactionsQuery = `
INSERT INTO utxo_transactions (
	coin,
	network,
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
) VALUES`

// InsertTransactions stores transactions in ClickHouse. Inputs and outputs are
// kept as parallel arrays on the transaction row; output position is its index.
func (r *Repository) InsertTransactions(ctx context.Context, txs []model.Transaction) error {
	start := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("insert_transactions", firstCoin(txs), firstNetwork(txs), err, start)
	}()

	if len(txs) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, insertTransactionsQuery)
	if err != nil {
		return fmt.Errorf("prepare transactions batch: %w", err)
	}

	for _, tx := range txs {
		cols := splitTransaction(tx)
		if err = batch.Append(
			string(tx.Coin),
			string(tx.Network),
			tx.TxID,
			tx.BlockHeight,
			tx.BlockHash,
			tx.Timestamp,
			tx.IsCoinbase,
			cols.prevTxIDs,
			cols.prevVouts,
			cols.inputAddresses,
			cols.inputValues,
			cols.outputAddresses,
			cols.outputValues,
		); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append transaction %s: %w", tx.TxID, err)
		}
	}

	if err = batch.Send(); err != nil {
		return fmt.Errorf("insert transactions: %w", err)
	}
	return nil
}

type transactionColumns struct {
	prevTxIDs       []string
	prevVouts       []uint32
	inputAddresses  []string
	inputValues     []uint64
	outputAddresses []string
	outputValues    []uint64
}

func splitTransaction(tx model.Transaction) transactionColumns {
	cols := transactionColumns{
		prevTxIDs:       make([]string, 0, len(tx.Inputs)),
		prevVouts:       make([]uint32, 0, len(tx.Inputs)),
		inputAddresses:  make([]string, 0, len(tx.Inputs)),
		inputValues:     make([]uint64, 0, len(tx.Inputs)),
		outputAddresses: make([]string, 0, len(tx.Outputs)),
		outputValues:    make([]uint64, 0, len(tx.Outputs)),
	}
	for _, in := range tx.Inputs {
		cols.prevTxIDs = append(cols.prevTxIDs, in.PrevTxID)
		cols.prevVouts = append(cols.prevVouts, in.PrevVout)
		cols.inputAddresses = append(cols.inputAddresses, in.Address)
		cols.inputValues = append(cols.inputValues, in.Value)
	}
	for _, out := range tx.Outputs {
		cols.outputAddresses = append(cols.outputAddresses, out.Address)
		cols.outputValues = append(cols.outputValues, out.Value)
	}
	return cols
}

// joinTransaction is the inverse of splitTransaction.
func joinTransaction(tx *model.Transaction, cols transactionColumns) error {
	n := len(cols.prevTxIDs)
	if len(cols.prevVouts) != n || len(cols.inputAddresses) != n || len(cols.inputValues) != n {
		return fmt.Errorf("tx %s: input columns have different lengths", tx.TxID)
	}
	if len(cols.outputAddresses) != len(cols.outputValues) {
		return fmt.Errorf("tx %s: output columns have different lengths", tx.TxID)
	}

	tx.Inputs = make([]model.TransactionInput, 0, n)
	for i := 0; i < n; i++ {
		tx.Inputs = append(tx.Inputs, model.TransactionInput{
			PrevTxID:   cols.prevTxIDs[i],
			PrevVout:   cols.prevVouts[i],
			IsCoinbase: tx.IsCoinbase && cols.prevTxIDs[i] == "",
			Address:    cols.inputAddresses[i],
			Value:      cols.inputValues[i],
		})
	}
	tx.Outputs = make([]model.TransactionOutput, 0, len(cols.outputValues))
	for i := range cols.outputValues {
		tx.Outputs = append(tx.Outputs, model.TransactionOutput{
			Index:   uint32(i),
			Address: cols.outputAddresses[i],
			Value:   cols.outputValues[i],
		})
	}
	return nil
}
