// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package layers

import (
	"encoding/binary"
	"errors"
	"math"
	"sync"

	"github.com/google/btree"
	"github.com/luxfi/log"
	safemath "github.com/luxfi/math"

	"github.com/luxfi/tally/fixed"
	"github.com/luxfi/tally/hashchain"
	"github.com/luxfi/tally/vector"
)

var ErrLayerNotFound = errors.New("layer not found")

// Summary is a consistent view of recorder-wide measurements.
type Summary struct {
	TotalObservations uint64
	ActiveLayers      int
	MeanCoherence     fixed.Dec
	CoherentLayers    int
	Chain             hashchain.Result
}

// Recorder folds observations into per-partition layers and the shared hash
// chain. All chain commits, including consensus events submitted through
// Commit, serialize under the recorder's lock so the chain keeps a single
// writer.
type Recorder struct {
	log       log.Logger
	estimator vector.Estimator
	chain     *hashchain.Accumulator
	threshold fixed.Dec

	mu           sync.RWMutex
	layers       *btree.BTreeG[*Layer]
	observations uint64
}

// NewRecorder returns a recorder scoring coherence with the given estimator.
// threshold bounds which layers count as coherent in Summary.
func NewRecorder(
	threshold fixed.Dec,
	estimator vector.Estimator,
	chain *hashchain.Accumulator,
	logger log.Logger,
) *Recorder {
	return &Recorder{
		log:       logger,
		estimator: estimator,
		chain:     chain,
		threshold: threshold,
		layers:    btree.NewG(2, (*Layer).Less),
	}
}

// Record folds one observation into the identified layer and returns the
// overlap between the layer's previous state and the new one. Mismatched
// vector lengths surface as an error; empty vectors count as observations
// but update nothing.
func (r *Recorder) Record(layerID uint32, amplitudes, phases []fixed.Dec) (fixed.Dec, error) {
	state, err := vector.New(amplitudes, phases)
	if err != nil {
		return fixed.Dec{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if next, err := safemath.Add64(r.observations, 1); err == nil {
		r.observations = next
	}
	if state.Len() == 0 {
		return fixed.Zero(6), nil
	}

	result := r.chain.Commit(
		stateBytes(state),
		operationBytes(layerID, amplitudes, phases),
		observationProof[:],
	)

	layer, ok := r.layers.Get(&Layer{id: layerID})
	if !ok {
		layer = newLayer(layerID, state)
		r.layers.ReplaceOrInsert(layer)
	}

	// The first observation of a layer overlaps the incoming state with
	// itself, so normalized vectors start at full stability.
	overlap := layer.state.Overlap(state)
	if layer.observers != math.MaxUint32 {
		layer.observers++
	}
	one := fixed.New(1000, 3)
	layer.stability = layer.stability.Mul(overlap).Min(one)
	layer.state = state
	layer.coherence = r.estimator.EstimateCoherence(amplitudes, phases)

	r.layers.Ascend(func(other *Layer) bool {
		if other.id == layerID {
			return true
		}
		otherCoherence := r.estimator.EstimateCoherence(
			other.state.Amplitudes(),
			other.state.Phases(),
		)
		score := layer.coherence.Mul(otherCoherence)
		layer.entanglement[other.id] = score
		other.entanglement[layerID] = score
		return true
	})

	r.log.Debug("recorded observation",
		log.Uint32("layer", layerID),
		log.Int("positions", state.Len()),
		log.Stringer("overlap", overlap),
		log.Stringer("stability", layer.stability),
		log.Stringer("coherence", layer.coherence),
		log.Uint64("chainCount", result.Count),
	)
	return overlap, nil
}

// Commit folds a non-observation event into the shared chain under the
// recorder's writer lock.
func (r *Recorder) Commit(state, operation, proof []byte) hashchain.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chain.Commit(state, operation, proof)
}

// Verify checks a commit against the chain's current position.
func (r *Recorder) Verify(expected hashchain.Result, state, operation, proof []byte) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.chain.Verify(expected, state, operation, proof)
}

// ChainState returns the chain head.
func (r *Recorder) ChainState() hashchain.Result {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.chain.Current()
}

// Layer returns a copy of the identified layer.
func (r *Recorder) Layer(id uint32) (*Layer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	layer, ok := r.layers.Get(&Layer{id: id})
	if !ok {
		return nil, ErrLayerNotFound
	}
	return layer.clone(), nil
}

// Entanglement returns the score layer a holds for layer b.
func (r *Recorder) Entanglement(a, b uint32) (fixed.Dec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	layer, ok := r.layers.Get(&Layer{id: a})
	if !ok {
		return fixed.Dec{}, false
	}
	return layer.Entanglement(b)
}

// Len returns the number of tracked layers.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.layers.Len()
}

// TotalObservations returns the saturating count of recorded observations,
// including degenerate empty ones.
func (r *Recorder) TotalObservations() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.observations
}

// Summary computes all recorder-wide measurements under one lock so the
// fields are mutually consistent. Mean and threshold comparisons use the
// stored vectors' energy coherence.
func (r *Recorder) Summary() Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Summary{
		TotalObservations: r.observations,
		ActiveLayers:      r.layers.Len(),
		MeanCoherence:     fixed.Zero(3),
		Chain:             r.chain.Current(),
	}
	if s.ActiveLayers == 0 {
		return s
	}

	total := fixed.Zero(3)
	r.layers.Ascend(func(layer *Layer) bool {
		coherence := layer.state.Coherence()
		total = total.Add(coherence)
		if coherence.Cmp(r.threshold) >= 0 {
			s.CoherentLayers++
		}
		return true
	})
	s.MeanCoherence = total.Div(fixed.New(int64(s.ActiveLayers), 0))
	return s
}

// Observations commit a zero proof; consensus events supply real
// commitments.
var observationProof [32]byte

func stateBytes(s *vector.State) []byte {
	amps := s.Amplitudes()
	out := make([]byte, 0, len(amps)*16)
	for _, a := range amps {
		b := a.Bytes16()
		out = append(out, b[:]...)
	}
	return out
}

func operationBytes(layerID uint32, amplitudes, phases []fixed.Dec) []byte {
	out := make([]byte, 8, 8+16*(len(amplitudes)+len(phases)))
	binary.LittleEndian.PutUint64(out, uint64(layerID))
	for _, a := range amplitudes {
		b := a.Bytes16()
		out = append(out, b[:]...)
	}
	for _, p := range phases {
		b := p.Bytes16()
		out = append(out, b[:]...)
	}
	return out
}
