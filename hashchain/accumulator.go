// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package hashchain folds (state, operation, proof) triples into a running
// 256-bit commitment. The fold is T(i) = H(S(i) xor O(i)) xor P(i): the state
// hash is XORed with the previous commitment (after the first commit), the
// operation bytes are XOR-cycled in, the result is hashed, and the normalized
// proof is XORed over that. The accumulator is strictly single-writer; owners
// serialize access.
package hashchain

import (
	"github.com/luxfi/crypto/hash"
	"github.com/luxfi/ids"
)

// Result is the outcome of one commit: the chain head and the replay
// position that produced it.
type Result struct {
	Hash  ids.ID `serialize:"true"`
	Count uint64 `serialize:"true"`
}

// State is the accumulator's complete recoverable state.
type State struct {
	Current  ids.ID `serialize:"true"`
	Previous ids.ID `serialize:"true"`
	Count    uint64 `serialize:"true"`
}

// Accumulator is the running commitment over a sequence of commits. The zero
// count distinguishes a fresh chain: the first commit folds no previous hash.
type Accumulator struct {
	current   ids.ID
	previous  ids.ID
	count     uint64
	precision uint8
}

// New returns a fresh accumulator. precision controls the digit width of the
// digest scores and is clamped to [1, 17] so the weighted digit sum cannot
// leave the int64 range.
func New(precision uint8) *Accumulator {
	if precision < 1 {
		precision = 1
	} else if precision > 17 {
		precision = 17
	}
	return &Accumulator{precision: precision}
}

// Commit folds one (state, operation, proof) triple into the chain and
// increments the replay position. Any empty input is a deliberate no-op
// returning the unchanged current result, not an error; callers that care
// must compare against Current.
func (a *Accumulator) Commit(state, operation, proof []byte) Result {
	if len(state) == 0 || len(operation) == 0 || len(proof) == 0 {
		return Result{Hash: a.current, Count: a.count}
	}

	a.previous = a.current

	working := hash.ComputeHash256Array(state)
	if a.count != 0 {
		for i := range working {
			working[i] ^= a.previous[i]
		}
	}
	for i := range working {
		working[i] ^= operation[i%len(operation)]
	}
	folded := hash.ComputeHash256Array(working[:])

	p := normalizeProof(proof)
	for i := range folded {
		folded[i] ^= p[i]
	}

	a.current = folded
	a.count++
	return Result{Hash: a.current, Count: a.count}
}

// Verify recomputes the fold for the given triple against the accumulator's
// stored previous hash and reports whether it reproduces expected. The claimed
// replay position must also match the accumulator's own counter, so verifying
// out of order against a shared accumulator fails. Empty inputs never verify:
// they cannot have produced a commit.
func (a *Accumulator) Verify(expected Result, state, operation, proof []byte) bool {
	if len(state) == 0 || len(operation) == 0 || len(proof) == 0 {
		return false
	}

	working := hash.ComputeHash256Array(state)
	if expected.Count != 1 {
		for i := range working {
			working[i] ^= a.previous[i]
		}
	}
	for i := range working {
		working[i] ^= operation[i%len(operation)]
	}
	folded := hash.ComputeHash256Array(working[:])

	p := normalizeProof(proof)
	for i := range folded {
		folded[i] ^= p[i]
	}

	return folded == [32]byte(expected.Hash) && expected.Count == a.count
}

// Current returns the chain head without committing anything.
func (a *Accumulator) Current() Result {
	return Result{Hash: a.current, Count: a.count}
}

// Snapshot captures the recoverable state.
func (a *Accumulator) Snapshot() State {
	return State{Current: a.current, Previous: a.previous, Count: a.count}
}

// Restore overwrites the accumulator with a previously captured state.
func (a *Accumulator) Restore(s State) {
	a.current = s.Current
	a.previous = s.Previous
	a.count = s.Count
}

// normalizeProof returns the proof itself when it is already 32 bytes, and
// its hash otherwise.
func normalizeProof(proof []byte) [32]byte {
	if len(proof) == 32 {
		var p [32]byte
		copy(p[:], proof)
		return p
	}
	return hash.ComputeHash256Array(proof)
}
