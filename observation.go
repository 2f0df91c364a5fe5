// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tally

import (
	"github.com/luxfi/tally/fixed"
)

// Observation is one batched state observation for a reality layer.
type Observation struct {
	Layer      uint32
	Amplitudes []fixed.Dec
	Phases     []fixed.Dec
}
