// Package bitcoin implements the bitcoin node gateway and the projection of
// node payloads into ledger models.
package bitcoin

import (
	"fmt"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/goodnatureofminers/blockinsight7000-ledger/internal/utxo/model"
	"github.com/goodnatureofminers/blockinsight7000-ledger/pkg/safe"
)

// BtcToSatoshis converts BTC amount to satoshis with overflow checks.
func BtcToSatoshis(value float64) (uint64, error) {
	amt, err := btcutil.NewAmount(value)
	if err != nil {
		return 0, err
	}
	if amt < 0 {
		return 0, fmt.Errorf("negative amount: %d", amt)
	}
	return safe.Uint64(int64(amt))
}

// ParseBits parses a bits string into a 32-bit value.
func ParseBits(value string) (uint32, error) {
	parsed, err := strconv.ParseUint(value, 16, 32)
	if err != nil {
		return 0, err
	}
	return uint32(parsed), nil
}

// BuildBlock maps a verbose block result into a model.Block.
func BuildBlock(src btcjson.GetBlockVerboseTxResult, coin model.Coin, network model.Network) (model.Block, error) {
	bits, err := ParseBits(src.Bits)
	if err != nil {
		return model.Block{}, fmt.Errorf("block %d bits parse: %w", src.Height, err)
	}
	height, err := safe.Uint64(src.Height)
	if err != nil {
		return model.Block{}, fmt.Errorf("block height %d overflow: %w", src.Height, err)
	}
	version, err := safe.Uint32(src.Version)
	if err != nil {
		return model.Block{}, fmt.Errorf("block %d version overflow: %w", src.Height, err)
	}
	size, err := safe.Uint32(src.Size)
	if err != nil {
		return model.Block{}, fmt.Errorf("block %d size overflow: %w", src.Height, err)
	}

	txids := make([]string, 0, len(src.Tx))
	for _, tx := range src.Tx {
		txids = append(txids, tx.Txid)
	}

	return model.Block{
		Coin:         coin,
		Network:      network,
		Height:       height,
		Hash:         src.Hash,
		PreviousHash: src.PreviousHash,
		NextHash:     src.NextHash,
		Timestamp:    time.Unix(src.Time, 0).UTC(),
		Version:      version,
		MerkleRoot:   src.MerkleRoot,
		Bits:         bits,
		Nonce:        src.Nonce,
		Difficulty:   src.Difficulty,
		Size:         size,
		TxIDs:        txids,
	}, nil
}

// BuildTransaction projects a decoded transaction into its stored form. Input
// addresses and values are left empty; they are filled once previous outputs
// are resolved.
func BuildTransaction(tx btcjson.TxRawResult, decoder ScriptDecoder, block model.Block) (model.Transaction, error) {
	outputs := make([]model.TransactionOutput, 0, len(tx.Vout))
	for idx, vout := range tx.Vout {
		if vout.Value < 0 {
			return model.Transaction{}, fmt.Errorf("tx %s output %d negative value: %f", tx.Txid, idx, vout.Value)
		}
		index, err := safe.Uint32(idx)
		if err != nil {
			return model.Transaction{}, fmt.Errorf("tx %s output index overflow: %w", tx.Txid, err)
		}
		value, err := BtcToSatoshis(vout.Value)
		if err != nil {
			return model.Transaction{}, fmt.Errorf("tx %s output %d safe value: %w", tx.Txid, idx, err)
		}
		address, err := decoder.DecodeAddress(vout)
		if err != nil {
			return model.Transaction{}, fmt.Errorf("decode address for tx %s output %d: %w", tx.Txid, idx, err)
		}
		outputs = append(outputs, model.TransactionOutput{
			Index:   index,
			Address: address,
			Value:   value,
		})
	}

	coinbase := false
	inputs := make([]model.TransactionInput, 0, len(tx.Vin))
	for _, vin := range tx.Vin {
		if vin.IsCoinBase() {
			coinbase = true
			inputs = append(inputs, model.TransactionInput{IsCoinbase: true})
			continue
		}
		inputs = append(inputs, model.TransactionInput{
			PrevTxID: vin.Txid,
			PrevVout: vin.Vout,
		})
	}

	return model.Transaction{
		Coin:        block.Coin,
		Network:     block.Network,
		TxID:        tx.Txid,
		BlockHeight: block.Height,
		BlockHash:   block.Hash,
		Timestamp:   block.Timestamp,
		IsCoinbase:  coinbase,
		Inputs:      inputs,
		Outputs:     outputs,
	}, nil
}
