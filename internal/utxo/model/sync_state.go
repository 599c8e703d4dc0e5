package model

import "time"

// NoHeight marks a sync state with nothing indexed yet.
const NoHeight int64 = -1

// SyncState records the last height whose blocks, transactions and address
// deltas were fully indexed.
type SyncState struct {
	Coin              Coin
	Network           Network
	LastIndexedHeight int64
	UpdatedAt         time.Time
}
