// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package layers

import (
	"github.com/google/btree"

	"github.com/luxfi/tally/fixed"
	"github.com/luxfi/tally/hashchain"
	"github.com/luxfi/tally/vector"
)

// LayerSnapshot is the recoverable state of one layer.
type LayerSnapshot struct {
	ID           uint32
	Amplitudes   []fixed.Dec
	Phases       []fixed.Dec
	Observers    uint32
	Stability    fixed.Dec
	Coherence    fixed.Dec
	Entanglement map[uint32]fixed.Dec
}

// RecorderSnapshot is the recorder's complete recoverable state. Layers are
// ordered by ascending identifier.
type RecorderSnapshot struct {
	Layers       []LayerSnapshot
	Chain        hashchain.State
	Observations uint64
}

// Snapshot captures the recorder's state with no aliasing into live layers.
func (r *Recorder) Snapshot() RecorderSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := RecorderSnapshot{
		Layers:       make([]LayerSnapshot, 0, r.layers.Len()),
		Chain:        r.chain.Snapshot(),
		Observations: r.observations,
	}
	r.layers.Ascend(func(layer *Layer) bool {
		snap.Layers = append(snap.Layers, LayerSnapshot{
			ID:           layer.id,
			Amplitudes:   layer.state.Amplitudes(),
			Phases:       layer.state.Phases(),
			Observers:    layer.observers,
			Stability:    layer.stability,
			Coherence:    layer.coherence,
			Entanglement: layer.EntanglementMap(),
		})
		return true
	})
	return snap
}

// Restore replaces the recorder's state with a previously captured snapshot.
// The recorder is unchanged if any layer fails to rebuild.
func (r *Recorder) Restore(snap RecorderSnapshot) error {
	rebuilt := btree.NewG(2, (*Layer).Less)
	for _, ls := range snap.Layers {
		state, err := vector.New(ls.Amplitudes, ls.Phases)
		if err != nil {
			return err
		}
		ent := make(map[uint32]fixed.Dec, len(ls.Entanglement))
		for k, v := range ls.Entanglement {
			ent[k] = v
		}
		rebuilt.ReplaceOrInsert(&Layer{
			id:           ls.ID,
			state:        state,
			observers:    ls.Observers,
			stability:    ls.Stability,
			coherence:    ls.Coherence,
			entanglement: ent,
		})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.layers = rebuilt
	r.chain.Restore(snap.Chain)
	r.observations = snap.Observations
	return nil
}
