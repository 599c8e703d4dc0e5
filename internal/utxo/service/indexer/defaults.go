package indexer

import "time"

const (
	defaultMaxBatch           = 50
	defaultPollInterval       = 10 * time.Second
	defaultCatchUpDelay       = 1 * time.Second
	defaultResolveConcurrency = 4
	defaultStoreTimeout       = 30 * time.Second
	defaultTxFlushSize        = 1000
	defaultTxFlushInterval    = 1 * time.Second
)

// Config tunes the block indexer. Zero values take the defaults.
type Config struct {
	// MaxBatch caps the number of blocks indexed in one pass.
	MaxBatch int

	// PollInterval is the wait between passes once caught up.
	PollInterval time.Duration

	// CatchUpDelay is the wait after a pass that had to stop at MaxBatch.
	CatchUpDelay time.Duration

	// ResolveConcurrency bounds the node lookups for previous outputs.
	ResolveConcurrency int

	// StoreTimeout bounds every storage write.
	StoreTimeout time.Duration

	// Transaction rows are written in batches of TxFlushSize or every
	// TxFlushInterval, at most TxFlushRPS batches per second (0 is unlimited).
	TxFlushSize     int
	TxFlushInterval time.Duration
	TxFlushRPS      int
}

func (c Config) withDefaults() Config {
	if c.MaxBatch <= 0 {
		c.MaxBatch = defaultMaxBatch
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.CatchUpDelay <= 0 {
		c.CatchUpDelay = defaultCatchUpDelay
	}
	if c.ResolveConcurrency <= 0 {
		c.ResolveConcurrency = defaultResolveConcurrency
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = defaultStoreTimeout
	}
	if c.TxFlushSize <= 0 {
		c.TxFlushSize = defaultTxFlushSize
	}
	if c.TxFlushInterval <= 0 {
		c.TxFlushInterval = defaultTxFlushInterval
	}
	return c
}
