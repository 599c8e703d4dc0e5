package model

// Coin identifies the chain family an indexer instance follows.
type Coin string

// Network identifies the network of a coin (mainnet, testnet, ...).
type Network string

var (
	BTC Coin = "BTC"
	LTC Coin = "LTC"
	RVN Coin = "RVN"
)

var (
	Testnet Network = "testnet"
	Mainnet Network = "mainnet"
	Regtest Network = "regtest"
)
