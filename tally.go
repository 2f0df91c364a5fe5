// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package tally coordinates the consensus core: observations fold into
// per-layer state and the shared hash chain, observer votes tally toward
// quorum over disputed states, and every score is deterministic fixed-point
// arithmetic.
package tally

import (
	"context"
	"encoding/binary"
	"errors"
	"slices"
	"sync"

	"github.com/luxfi/cache"
	"github.com/luxfi/crypto/hash"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/math/set"
	"github.com/luxfi/metric"

	"github.com/luxfi/tally/config"
	"github.com/luxfi/tally/fixed"
	"github.com/luxfi/tally/hashchain"
	"github.com/luxfi/tally/layers"
	"github.com/luxfi/tally/metrics"
	"github.com/luxfi/tally/utils/timer/mockable"
	"github.com/luxfi/tally/vector"
)

// StateSize is the exact byte length of a disputed state submitted with a
// vote.
const StateSize = 64

var (
	ErrInvalidStateSize  = errors.New("observed state must be exactly 64 bytes")
	ErrInvalidConfidence = errors.New("confidence must not be negative")
	ErrTallyNotFound     = errors.New("tally not found")
)

// Stats is a point-in-time view across layers, votes, and the chain.
type Stats struct {
	TotalObservations uint64
	ActiveLayers      int
	MeanCoherence     fixed.Dec
	CoherentLayers    int
	Chain             hashchain.Result
	TotalTallies      int
	ConsensusReached  int
	AverageConfidence fixed.Dec
	ActiveObservers   int
}

// Tally is the orchestrator over the recorder, the vote sets, and the proof
// log. The recorder serializes every chain commit; the Tally's own lock
// guards votes, observers, and proofs.
type Tally struct {
	cfg     config.Config
	log     log.Logger
	clock   mockable.Clock
	metrics metrics.Metrics

	recorder *layers.Recorder
	proofs   *hashchain.ProofLog

	mu        sync.RWMutex
	votes     map[ids.ID]*VoteSet
	observers set.Set[ids.ID]
	hashCache *cache.LRU[string, ids.ID]
}

// New builds a Tally from the given configuration. Invalid configuration
// fields self-correct to defaults.
func New(cfg config.Config, logger log.Logger, registerer metric.Registerer) (*Tally, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m, err := metrics.New(registerer)
	if err != nil {
		return nil, err
	}

	estimator := vector.ChunkedEstimator{
		ChunkSize: cfg.ChunkSize,
		Workers:   cfg.Workers,
	}
	t := &Tally{
		cfg:       cfg,
		log:       logger,
		metrics:   m,
		recorder:  layers.NewRecorder(cfg.CoherenceThreshold, estimator, hashchain.New(cfg.ScorePrecision), logger),
		proofs:    hashchain.NewProofLog(),
		votes:     make(map[ids.ID]*VoteSet),
		observers: set.NewSet[ids.ID](0),
		hashCache: &cache.LRU[string, ids.ID]{Size: cfg.HashCacheSize},
	}

	logger.Info("tally core initialized",
		log.Int("minObservers", cfg.MinObservers),
		log.Stringer("consensusThreshold", cfg.ConsensusThreshold),
		log.Stringer("coherenceThreshold", cfg.CoherenceThreshold),
		log.Int("chunkSize", cfg.ChunkSize),
		log.Int("workers", cfg.Workers),
	)
	return t, nil
}

// RecordObservation folds one observation into the identified layer and
// returns the overlap with the layer's previous state.
func (t *Tally) RecordObservation(layerID uint32, amplitudes, phases []fixed.Dec) (fixed.Dec, error) {
	overlap, err := t.recorder.Record(layerID, amplitudes, phases)
	if err != nil {
		return fixed.Dec{}, err
	}
	t.metrics.IncObservations()
	t.syncGauges()
	return overlap, nil
}

// SubmitState records a raw byte payload for a layer: consecutive byte
// pairs become one amplitude and one phase position. An odd trailing byte
// is ignored and an empty payload counts as a degenerate observation.
func (t *Tally) SubmitState(observer ids.ID, layerID uint32, state []byte) (fixed.Dec, error) {
	amplitudes, phases := splitState(state)
	overlap, err := t.RecordObservation(layerID, amplitudes, phases)
	if err != nil {
		return fixed.Dec{}, err
	}

	t.mu.Lock()
	t.observers.Add(observer)
	t.mu.Unlock()
	return overlap, nil
}

// SubmitBatch records observations in order, stopping at the first shape
// error or context cancellation. It returns the number recorded.
func (t *Tally) SubmitBatch(ctx context.Context, observations []Observation) (int, error) {
	for i, o := range observations {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if _, err := t.RecordObservation(o.Layer, o.Amplitudes, o.Phases); err != nil {
			return i, err
		}
	}
	return len(observations), nil
}

// RegisterObservation files one observer's vote over a disputed state,
// folds the vote into the chain with a proof-log commitment, and
// re-evaluates quorum. It reports whether the state's tally has reached
// consensus.
func (t *Tally) RegisterObservation(layerID uint32, observer ids.ID, state []byte, confidence fixed.Dec) (bool, error) {
	if len(state) != StateSize {
		return false, ErrInvalidStateSize
	}
	if confidence.Sign() < 0 {
		return false, ErrInvalidConfidence
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	stateHash := t.hashState(state)
	vs, ok := t.votes[stateHash]
	if !ok {
		vs = newVoteSet(stateHash)
		t.votes[stateHash] = vs
	}

	observed := make([]byte, len(state))
	copy(observed, state)
	vs.add(&Vote{
		Observer:   observer,
		State:      observed,
		Time:       t.clock.UnixTime(),
		Confidence: confidence,
	})
	t.observers.Add(observer)

	operation := voteOperation(layerID, observer, confidence)
	proof := t.proofs.Prove(operation, state)
	result := t.recorder.Commit(state, operation, proof.Commitment[:])

	wasReached := vs.reached
	reached := vs.evaluate(t.cfg.MinObservers, t.cfg.ConsensusThreshold)
	if reached && !wasReached {
		t.metrics.IncConsensusReached()
		t.log.Info("consensus reached",
			log.Stringer("stateHash", stateHash),
			log.Stringer("score", vs.score),
			log.Int("observers", vs.Len()),
		)
	}
	t.metrics.IncVotes()
	t.metrics.SetChainHeight(result.Count)
	t.log.Debug("registered observation",
		log.Uint32("layer", layerID),
		log.Stringer("observer", observer),
		log.Stringer("stateHash", stateHash),
		log.Stringer("confidence", confidence),
		log.Bool("reached", reached),
	)
	return reached, nil
}

// TryReachConsensus re-evaluates quorum for the identified tally. The check
// is idempotent: a tally that has reached consensus stays reached and keeps
// its terminal fields.
func (t *Tally) TryReachConsensus(stateHash ids.ID) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	vs, ok := t.votes[stateHash]
	if !ok {
		return false, ErrTallyNotFound
	}
	wasReached := vs.reached
	reached := vs.evaluate(t.cfg.MinObservers, t.cfg.ConsensusThreshold)
	if reached && !wasReached {
		t.metrics.IncConsensusReached()
		t.log.Info("consensus reached",
			log.Stringer("stateHash", stateHash),
			log.Stringer("score", vs.score),
			log.Int("observers", vs.Len()),
		)
	}
	return reached, nil
}

// LayerState returns a copy of the identified layer's tracked state.
func (t *Tally) LayerState(id uint32) (*layers.Layer, error) {
	return t.recorder.Layer(id)
}

// Entanglement returns the score layer a holds for layer b.
func (t *Tally) Entanglement(a, b uint32) (fixed.Dec, bool) {
	return t.recorder.Entanglement(a, b)
}

// ConsensusState returns a copy of the tally for the given state hash.
func (t *Tally) ConsensusState(stateHash ids.ID) (*VoteSet, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	vs, ok := t.votes[stateHash]
	if !ok {
		return nil, ErrTallyNotFound
	}
	return vs.clone(), nil
}

// ChainState returns the hash chain head.
func (t *Tally) ChainState() hashchain.Result {
	return t.recorder.ChainState()
}

// Commit folds an external event into the chain directly.
func (t *Tally) Commit(state, operation, proof []byte) hashchain.Result {
	return t.recorder.Commit(state, operation, proof)
}

// Verify checks a commit against the chain's current position.
func (t *Tally) Verify(expected hashchain.Result, state, operation, proof []byte) bool {
	return t.recorder.Verify(expected, state, operation, proof)
}

// VerifyProof checks a vote proof against its recorded transition.
func (t *Tally) VerifyProof(p hashchain.Proof, operation []byte) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.proofs.VerifyProof(p, operation)
}

// Proofs returns a copy of the recorded vote proof chain.
func (t *Tally) Proofs() []hashchain.Proof {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.proofs.Proofs()
}

// Observers returns every observer seen on either submission path, sorted.
func (t *Tally) Observers() []ids.ID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := t.observers.List()
	slices.SortFunc(out, func(a, b ids.ID) int {
		return a.Compare(b)
	})
	return out
}

// Stats assembles a view across the recorder and the vote sets.
func (t *Tally) Stats() Stats {
	summary := t.recorder.Summary()

	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Stats{
		TotalObservations: summary.TotalObservations,
		ActiveLayers:      summary.ActiveLayers,
		MeanCoherence:     summary.MeanCoherence,
		CoherentLayers:    summary.CoherentLayers,
		Chain:             summary.Chain,
		TotalTallies:      len(t.votes),
		AverageConfidence: fixed.Zero(3),
		ActiveObservers:   t.observers.Len(),
	}

	total := fixed.Zero(3)
	for _, vs := range t.votes {
		if vs.reached {
			s.ConsensusReached++
			total = total.Add(vs.score)
		}
	}
	if s.ConsensusReached > 0 {
		s.AverageConfidence = total.Div(fixed.New(int64(s.ConsensusReached), 0))
	}
	return s
}

func (t *Tally) syncGauges() {
	summary := t.recorder.Summary()
	t.metrics.SetActiveLayers(summary.ActiveLayers)
	t.metrics.SetCoherentLayers(summary.CoherentLayers)
	t.metrics.SetMeanCoherence(summary.MeanCoherence)
	t.metrics.SetChainHeight(summary.Chain.Count)
}

func (t *Tally) hashState(state []byte) ids.ID {
	key := string(state)
	if h, ok := t.hashCache.Get(key); ok {
		return h
	}
	h := ids.ID(hash.ComputeHash256Array(state))
	t.hashCache.Put(key, h)
	return h
}

func splitState(state []byte) ([]fixed.Dec, []fixed.Dec) {
	n := len(state) / 2
	amplitudes := make([]fixed.Dec, n)
	phases := make([]fixed.Dec, n)
	for i := 0; i < n; i++ {
		amplitudes[i] = fixed.New(int64(state[2*i]), 8)
		phases[i] = fixed.New(int64(state[2*i+1]), 8)
	}
	return amplitudes, phases
}

func voteOperation(layerID uint32, observer ids.ID, confidence fixed.Dec) []byte {
	conf := confidence.Bytes16()
	out := make([]byte, 8, 8+len(observer)+len(conf))
	binary.LittleEndian.PutUint64(out, uint64(layerID))
	out = append(out, observer[:]...)
	out = append(out, conf[:]...)
	return out
}
