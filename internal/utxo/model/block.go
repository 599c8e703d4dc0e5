// Package model defines domain models for the UTXO address ledger.
package model

import "time"

// Block represents a blockchain block persisted to the chain store.
// Rows are written once at index time; only NextHash may be backfilled later.
type Block struct {
	Coin         Coin
	Network      Network
	Height       uint64
	Hash         string
	PreviousHash string
	NextHash     string
	Timestamp    time.Time
	Version      uint32
	MerkleRoot   string
	Bits         uint32
	Nonce        uint32
	Difficulty   float64
	Size         uint32
	TxIDs        []string
}
