// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package layers tracks per-partition observation state: the latest state
// vector, stability and coherence scores, and pairwise entanglement with
// every other tracked partition.
package layers

import (
	"github.com/luxfi/tally/fixed"
	"github.com/luxfi/tally/vector"
)

// Layer is one tracked partition. Layers are created lazily on first
// observation and never deleted; retention is the caller's policy.
type Layer struct {
	id           uint32
	state        *vector.State
	observers    uint32
	stability    fixed.Dec
	coherence    fixed.Dec
	entanglement map[uint32]fixed.Dec
}

func newLayer(id uint32, state *vector.State) *Layer {
	one := fixed.New(1000, 3)
	return &Layer{
		id:           id,
		state:        state,
		stability:    one,
		coherence:    one,
		entanglement: make(map[uint32]fixed.Dec),
	}
}

// Less orders layers by identifier for btree iteration.
func (l *Layer) Less(o *Layer) bool {
	return l.id < o.id
}

func (l *Layer) clone() *Layer {
	ent := make(map[uint32]fixed.Dec, len(l.entanglement))
	for k, v := range l.entanglement {
		ent[k] = v
	}
	return &Layer{
		id:           l.id,
		state:        l.state.Clone(),
		observers:    l.observers,
		stability:    l.stability,
		coherence:    l.coherence,
		entanglement: ent,
	}
}

// ID returns the partition identifier.
func (l *Layer) ID() uint32 { return l.id }

// Observers returns the saturating count of observations recorded for this
// partition.
func (l *Layer) Observers() uint32 { return l.observers }

// Stability returns the running stability score, bounded to [0, 1].
func (l *Layer) Stability() fixed.Dec { return l.stability }

// Coherence returns the chunk-estimated coherence of the latest observation.
func (l *Layer) Coherence() fixed.Dec { return l.coherence }

// State returns a copy of the latest recorded state vector.
func (l *Layer) State() *vector.State { return l.state.Clone() }

// Entanglement returns the recorded score with the given partition.
func (l *Layer) Entanglement(other uint32) (fixed.Dec, bool) {
	score, ok := l.entanglement[other]
	return score, ok
}

// EntanglementMap returns a copy of all recorded pairwise scores.
func (l *Layer) EntanglementMap() map[uint32]fixed.Dec {
	out := make(map[uint32]fixed.Dec, len(l.entanglement))
	for k, v := range l.entanglement {
		out[k] = v
	}
	return out
}
