// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hashchain

import (
	"github.com/luxfi/crypto/hash"

	"github.com/luxfi/tally/fixed"
)

// ProofScore hashes data and expands the leading precision digest bytes into
// a fixed-point value, weighting byte i by 10^(precision-1-i). The result is
// a deterministic fraction below 0.3 at scale precision that tracks the
// digest and nothing else.
func (a *Accumulator) ProofScore(data []byte) fixed.Dec {
	digest := hash.ComputeHash256Array(data)
	return a.digitExpand(digest[:])
}

// StateScore expands raw state bytes the same way ProofScore expands a
// digest, cycling short inputs to fill the digit width. Empty input scores
// zero.
func (a *Accumulator) StateScore(state []byte) fixed.Dec {
	if len(state) == 0 {
		return fixed.Zero(a.precision)
	}
	cycled := make([]byte, 32)
	for i := range cycled {
		cycled[i] = state[i%len(state)]
	}
	return a.digitExpand(cycled)
}

// DecisionScore scores data over the first half of its digest only, giving a
// coarser signal than ProofScore for the same input.
func (a *Accumulator) DecisionScore(data []byte) fixed.Dec {
	digest := hash.ComputeHash256Array(data)
	return a.digitExpand(digest[:16])
}

func (a *Accumulator) digitExpand(bs []byte) fixed.Dec {
	var value int64
	for i, b := range bs {
		if i >= int(a.precision) {
			break
		}
		value += int64(b) * pow10(int(a.precision)-1-i)
	}
	return fixed.New(value, a.precision)
}

func pow10(n int) int64 {
	p := int64(1)
	for ; n > 0; n-- {
		p *= 10
	}
	return p
}
