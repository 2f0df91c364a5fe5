// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vector

import (
	"github.com/luxfi/tally/fixed"
)

// twoPiUnits is 2*pi expressed in units of 1e-8, the scale all gate phase
// arithmetic reduces into.
const twoPiUnits = 628318530

// Retrogate is a fixed-width phase-accumulation gate. Slot i carries a base
// phase of factorial(i) reduced mod 2*pi; Score crosses every slot pair,
// mapping each absolute phase difference onto [0, 1] and averaging the
// squares. Updating the gate with an observed chunk shifts each slot by the
// chunk's phases, so the score tracks phase structure while staying bounded
// regardless of input magnitude.
type Retrogate struct {
	slots      int
	amplitudes []fixed.Dec
	phases     []fixed.Dec
	matrix     [][]fixed.Dec
}

// NewRetrogate returns a gate over the given number of slots, initialized to
// the uniform state: equal amplitudes summing to one and zero phases.
func NewRetrogate(slots int) *Retrogate {
	if slots < 1 {
		slots = 1
	}
	amp := fixed.New(1000, 3).Div(fixed.New(int64(slots), 0))
	r := &Retrogate{
		slots:      slots,
		amplitudes: make([]fixed.Dec, slots),
		phases:     make([]fixed.Dec, slots),
		matrix:     make([][]fixed.Dec, slots),
	}
	for i := 0; i < slots; i++ {
		r.amplitudes[i] = amp
		r.phases[i] = fixed.Zero(8)
		r.matrix[i] = make([]fixed.Dec, slots)
	}
	return r
}

// Update replaces the gate's state and reports whether the replacement was
// applied. Slices whose length does not match the slot count leave the gate
// untouched.
func (r *Retrogate) Update(amplitudes, phases []fixed.Dec) bool {
	if len(amplitudes) != r.slots || len(phases) != r.slots {
		return false
	}
	copy(r.amplitudes, amplitudes)
	copy(r.phases, phases)
	return true
}

// Score fills the slot-pair matrix from the current phases and returns the
// normalized sum of its squared entries, a value in [0, 1].
func (r *Retrogate) Score() fixed.Dec {
	n := r.slots
	total := r.totalPhases()
	one := fixed.New(1000, 3)
	twoPi := fixed.New(twoPiUnits, 8)

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			diff := total[i].Sub(total[j]).Abs().Mod(twoPi)
			r.matrix[i][j] = one.Sub(diff.Mul(one).Div(twoPi))
		}
	}

	coherence := fixed.Zero(8)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			m := r.matrix[i][j]
			coherence = coherence.Add(m.Mul(m))
		}
	}
	return coherence.Div(fixed.New(int64(n*n), 0))
}

// totalPhases returns, per slot, the base factorial phase shifted by the
// slot's current phase, each term reduced mod 2*pi. The factorial is built
// with a running modular product so no intermediate ever grows past the
// modulus. Entries stay within (-2*pi, 2*pi); Score reduces differences the
// rest of the way.
func (r *Retrogate) totalPhases() []fixed.Dec {
	twoPi := fixed.New(twoPiUnits, 8)
	out := make([]fixed.Dec, r.slots)
	f := uint64(1)
	for i := 0; i < r.slots; i++ {
		if i > 1 {
			f = f * uint64(i) % twoPiUnits
		}
		base := fixed.New(int64(f), 8)
		out[i] = base.Add(r.phases[i].Mod(twoPi)).Mod(twoPi)
	}
	return out
}
