// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"github.com/luxfi/tally/fixed"
)

// Config contains all the foundational parameters of the tally core
type Config struct {
	// Minimum coherence for a layer to count as coherent in metrics
	CoherenceThreshold fixed.Dec

	// Fraction of total confidence the winning state must reach
	ConsensusThreshold fixed.Dec

	// Distinct observers required before consensus is evaluated
	MinObservers int

	// Amplitude positions scored per retrogate
	ChunkSize int

	// Maximum concurrent chunk scoring workers
	Workers int

	// Digit width of digest scores
	ScorePrecision uint8

	// Maximum cached state hashes
	HashCacheSize int
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		CoherenceThreshold: fixed.New(800, 3),
		ConsensusThreshold: fixed.New(75, 2),
		MinObservers:       3,
		ChunkSize:          32,
		Workers:            4,
		ScorePrecision:     17,
		HashCacheSize:      1024,
	}
}

// Validate ensures the configuration is valid
func (c *Config) Validate() error {
	if c.CoherenceThreshold.Sign() <= 0 {
		c.CoherenceThreshold = fixed.New(800, 3)
	}
	if c.ConsensusThreshold.Sign() <= 0 || fixed.New(1000, 3).Less(c.ConsensusThreshold) {
		c.ConsensusThreshold = fixed.New(75, 2)
	}
	if c.MinObservers < 3 {
		c.MinObservers = 3
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 32
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.ScorePrecision < 1 || c.ScorePrecision > 17 {
		c.ScorePrecision = 17
	}
	if c.HashCacheSize <= 0 {
		c.HashCacheSize = 1024
	}
	return nil
}
