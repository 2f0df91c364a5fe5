// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vector models observed state vectors: paired amplitude and phase
// sequences with derived coherence and overlap scores. All scoring runs on
// fixed.Dec, so identical inputs produce bit-identical scores on every
// platform.
package vector

import (
	"errors"

	"github.com/luxfi/tally/fixed"
)

var ErrLengthMismatch = errors.New("amplitude and phase vectors must have the same length")

// State is an immutable observed vector. Constructors and accessors copy, so
// no caller can alias into a stored state.
type State struct {
	amplitudes []fixed.Dec
	phases     []fixed.Dec
	coherence  fixed.Dec
}

// New builds a state from paired amplitudes and phases and derives its
// coherence. The two slices must have the same length.
func New(amplitudes, phases []fixed.Dec) (*State, error) {
	if len(amplitudes) != len(phases) {
		return nil, ErrLengthMismatch
	}
	s := &State{
		amplitudes: make([]fixed.Dec, len(amplitudes)),
		phases:     make([]fixed.Dec, len(phases)),
	}
	copy(s.amplitudes, amplitudes)
	copy(s.phases, phases)
	s.coherence = Coherence(s.amplitudes)
	return s, nil
}

// Coherence scores an amplitude sequence as the reciprocal exponential of
// its energy: 1 / e^(sum of squared amplitudes). The score shrinks as energy
// grows and a zero-energy sequence scores zero.
func Coherence(amplitudes []fixed.Dec) fixed.Dec {
	sumSquares := fixed.Zero(6)
	for _, amp := range amplitudes {
		sumSquares = sumSquares.Add(amp.Mul(amp))
	}
	if sumSquares.IsZero() {
		return fixed.Zero(3)
	}
	return fixed.New(1000, 3).Div(sumSquares.Exp())
}

// Overlap scores the similarity of two states: each amplitude pair is scaled
// by the cosine of its phase difference, the products are summed, and the
// sum is squared. Phase-aligned pairs contribute fully; pairs a quarter turn
// apart contribute nothing. Extra positions on the longer state are ignored.
func (s *State) Overlap(other *State) fixed.Dec {
	n := len(s.amplitudes)
	if len(other.amplitudes) < n {
		n = len(other.amplitudes)
	}
	overlap := fixed.Zero(6)
	for i := 0; i < n; i++ {
		cosPhase := s.phases[i].Sub(other.phases[i]).Cos()
		overlap = overlap.Add(s.amplitudes[i].Mul(other.amplitudes[i]).Mul(cosPhase))
	}
	return overlap.Mul(overlap)
}

// Clone returns an independent copy.
func (s *State) Clone() *State {
	c := &State{
		amplitudes: make([]fixed.Dec, len(s.amplitudes)),
		phases:     make([]fixed.Dec, len(s.phases)),
		coherence:  s.coherence,
	}
	copy(c.amplitudes, s.amplitudes)
	copy(c.phases, s.phases)
	return c
}

// Len returns the number of amplitude positions.
func (s *State) Len() int {
	return len(s.amplitudes)
}

// Amplitudes returns a copy of the amplitude sequence.
func (s *State) Amplitudes() []fixed.Dec {
	out := make([]fixed.Dec, len(s.amplitudes))
	copy(out, s.amplitudes)
	return out
}

// Phases returns a copy of the phase sequence.
func (s *State) Phases() []fixed.Dec {
	out := make([]fixed.Dec, len(s.phases))
	copy(out, s.phases)
	return out
}

// Coherence returns the score derived at construction.
func (s *State) Coherence() fixed.Dec {
	return s.coherence
}
