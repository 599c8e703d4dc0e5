package reconciler

import "time"

const (
	defaultInterval           = 5 * time.Minute
	defaultStartupDelay       = 30 * time.Second
	defaultFailureThreshold   = 3
	defaultRecoveryInterval   = 1 * time.Minute
	defaultBatchSize          = 1000
	defaultHighValueThreshold = 100_000_000
	defaultStoreTimeout       = 30 * time.Second
)

// Config tunes the reconciler. Zero values take the defaults.
type Config struct {
	Interval     time.Duration
	StartupDelay time.Duration

	// After FailureThreshold consecutive failed runs the reconciler runs every
	// RecoveryInterval until a run succeeds.
	FailureThreshold int
	RecoveryInterval time.Duration

	BatchSize int

	// HighValueThreshold is the balance, in minor units, from which a fixed
	// row is reported as high value.
	HighValueThreshold uint64

	// StoreTimeout bounds each page read and each batch update.
	StoreTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = defaultInterval
	}
	if c.StartupDelay < 0 {
		c.StartupDelay = 0
	} else if c.StartupDelay == 0 {
		c.StartupDelay = defaultStartupDelay
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = defaultFailureThreshold
	}
	if c.RecoveryInterval <= 0 {
		c.RecoveryInterval = defaultRecoveryInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.HighValueThreshold == 0 {
		c.HighValueThreshold = defaultHighValueThreshold
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = defaultStoreTimeout
	}
	return c
}
