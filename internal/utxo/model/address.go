package model

import (
	"sort"
	"time"
)

// Address is a row of the address ledger.
//
// TotalReceived and TotalSent are the authoritative accumulators; Balance is a
// cached value that must equal max(0, TotalReceived-TotalSent) at rest.
type Address struct {
	Coin          Coin
	Network       Network
	Address       string
	Balance       uint64
	TotalReceived uint64
	TotalSent     uint64
	TxCount       uint64
	LastUpdated   time.Time
}

// ExpectedBalance derives the balance from the accumulators. The second return
// value reports whether TotalSent exceeds TotalReceived.
func (a Address) ExpectedBalance() (uint64, bool) {
	if a.TotalSent > a.TotalReceived {
		return 0, true
	}
	return a.TotalReceived - a.TotalSent, false
}

// TxFlow is the value an address received and sent within one transaction.
type TxFlow struct {
	Received uint64
	Sent     uint64
}

// AddressDelta collects the per-transaction flows of one address observed in an
// indexing pass.
type AddressDelta struct {
	Address string
	Flows   map[string]TxFlow
}

// NewAddressDelta creates an empty delta for address.
func NewAddressDelta(address string) *AddressDelta {
	return &AddressDelta{Address: address, Flows: make(map[string]TxFlow)}
}

// AddReceived records value paid to the address by txid.
func (d *AddressDelta) AddReceived(txid string, value uint64) {
	flow := d.Flows[txid]
	flow.Received += value
	d.Flows[txid] = flow
}

// AddSent records value spent from the address by txid.
func (d *AddressDelta) AddSent(txid string, value uint64) {
	flow := d.Flows[txid]
	flow.Sent += value
	d.Flows[txid] = flow
}

// TxIDs returns the transaction ids of the delta in sorted order.
func (d *AddressDelta) TxIDs() []string {
	txids := make([]string, 0, len(d.Flows))
	for txid := range d.Flows {
		txids = append(txids, txid)
	}
	sort.Strings(txids)
	return txids
}

// AddressBalance is the subset of an address row the reconciler works on.
type AddressBalance struct {
	Address       string
	Balance       uint64
	TotalReceived uint64
	TotalSent     uint64
}

// ExpectedBalance derives the balance from the accumulators, see Address.ExpectedBalance.
func (b AddressBalance) ExpectedBalance() (uint64, bool) {
	return Address{TotalReceived: b.TotalReceived, TotalSent: b.TotalSent}.ExpectedBalance()
}

// BalanceCursor marks the last row of a page ordered by balance desc, address asc.
type BalanceCursor struct {
	Balance uint64
	Address string
}

// BalanceUpdate sets the cached balance of an address.
type BalanceUpdate struct {
	Address string
	Balance uint64
}
