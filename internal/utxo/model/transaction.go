package model

import "time"

// Transaction is the minimal stored projection of a chain transaction.
type Transaction struct {
	Coin        Coin
	Network     Network
	TxID        string
	BlockHeight uint64
	BlockHash   string
	Timestamp   time.Time
	IsCoinbase  bool
	Inputs      []TransactionInput
	Outputs     []TransactionOutput
}

// TransactionInput references a previous output. Address and Value are filled
// once the previous output has been resolved; coinbase inputs keep them empty.
type TransactionInput struct {
	PrevTxID   string
	PrevVout   uint32
	IsCoinbase bool
	Address    string
	Value      uint64
}

// TransactionOutput is an output produced by a transaction. Address is empty
// when the script does not decode to exactly one address.
type TransactionOutput struct {
	Index   uint32
	Address string
	Value   uint64
}

// Output returns the output at index, if present.
func (t Transaction) Output(index uint32) (TransactionOutput, bool) {
	if int(index) >= len(t.Outputs) {
		return TransactionOutput{}, false
	}
	return t.Outputs[index], true
}
