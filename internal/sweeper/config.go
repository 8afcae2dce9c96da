package sweeper

import "time"

// Config controls the pending-timeout sweep.
type Config struct {
	RunInterval time.Duration
	Grace       time.Duration
	BatchSize   int
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Minute,
		Grace:       5 * time.Minute,
		BatchSize:   50,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.Grace <= 0 {
		c.Grace = defaults.Grace
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	return c
}
