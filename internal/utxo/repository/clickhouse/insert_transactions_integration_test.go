//go:build integration

package clickhouse

import (
	"strings"
	"time"

	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/model"
)

func (s *RepositorySuite) TestInsertTransactionsAndLookup() {
	now := time.Now().UTC().Truncate(time.Second)
	coinbase := model.Transaction{
		Coin:        model.BTC,
		Network:     model.Mainnet,
		TxID:        strings.Repeat("1", 64),
		BlockHeight: 100,
		BlockHash:   strings.Repeat("a", 64),
		Timestamp:   now,
		IsCoinbase:  true,
		Inputs:      []model.TransactionInput{{IsCoinbase: true}},
		Outputs:     []model.TransactionOutput{{Index: 0, Address: "A1", Value: 500_000_000}},
	}
	spend := model.Transaction{
		Coin:        model.BTC,
		Network:     model.Mainnet,
		TxID:        strings.Repeat("2", 64),
		BlockHeight: 101,
		BlockHash:   strings.Repeat("b", 64),
		Timestamp:   now,
		Inputs: []model.TransactionInput{
			{PrevTxID: coinbase.TxID, PrevVout: 0, Address: "A1", Value: 500_000_000},
		},
		Outputs: []model.TransactionOutput{
			{Index: 0, Address: "A2", Value: 200_000_000},
			{Index: 1, Address: "A1", Value: 300_000_000},
		},
	}

	s.Require().NoError(s.repo.InsertTransactions(s.testCtx, []model.Transaction{coinbase, spend}))
	// re-indexing overwrites
	s.Require().NoError(s.repo.InsertTransactions(s.testCtx, []model.Transaction{spend}))
	s.Equal(uint64(2), s.countRows("utxo_transactions"))

	got, err := s.repo.TransactionsByTxIDs(s.testCtx, model.BTC, model.Mainnet, []string{coinbase.TxID, spend.TxID, strings.Repeat("9", 64)})
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(coinbase, got[coinbase.TxID])
	s.Equal(spend, got[spend.TxID])

	other, err := s.repo.TransactionsByTxIDs(s.testCtx, model.BTC, model.Testnet, []string{spend.TxID})
	s.Require().NoError(err)
	s.Empty(other)
}
