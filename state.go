// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tally

import (
	"errors"
	"sort"
	"time"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/math/set"

	"github.com/luxfi/tally/fixed"
	"github.com/luxfi/tally/hashchain"
	"github.com/luxfi/tally/layers"
)

var (
	errMalformedCheckpoint = errors.New("malformed checkpoint")

	checkpointKey = []byte("tally_checkpoint")
)

// StoredDec is the wire form of a fixed-point value.
type StoredDec struct {
	Mag   [16]byte `serialize:"true"`
	Scale uint8    `serialize:"true"`
}

func storeDec(d fixed.Dec) StoredDec {
	return StoredDec{Mag: d.Bytes16(), Scale: d.Scale()}
}

// Dec rebuilds the fixed-point value.
func (s StoredDec) Dec() fixed.Dec {
	return fixed.FromBytes16(s.Mag, s.Scale)
}

// StoredVote is the wire form of one observer's vote. Time is Unix seconds.
type StoredVote struct {
	Observer   ids.ID    `serialize:"true"`
	State      []byte    `serialize:"true"`
	Time       int64     `serialize:"true"`
	Confidence StoredDec `serialize:"true"`
}

// StoredVoteSet is the wire form of one tally, votes sorted by observer.
type StoredVoteSet struct {
	StateHash  ids.ID       `serialize:"true"`
	Votes      []StoredVote `serialize:"true"`
	Reached    bool         `serialize:"true"`
	FinalState []byte       `serialize:"true"`
	Score      StoredDec    `serialize:"true"`
}

// StoredLayer is the wire form of one layer. Entanglement pairs are sorted
// by layer identifier with EntangledWith and EntanglementScores parallel.
type StoredLayer struct {
	ID                 uint32      `serialize:"true"`
	Amplitudes         []StoredDec `serialize:"true"`
	Phases             []StoredDec `serialize:"true"`
	Observers          uint32      `serialize:"true"`
	Stability          StoredDec   `serialize:"true"`
	Coherence          StoredDec   `serialize:"true"`
	EntangledWith      []uint32    `serialize:"true"`
	EntanglementScores []StoredDec `serialize:"true"`
}

// Checkpoint is the Tally's complete recoverable state. Every collection is
// sorted so marshaling the same state always yields the same bytes.
type Checkpoint struct {
	Layers       []StoredLayer      `serialize:"true"`
	Chain        hashchain.State    `serialize:"true"`
	Observations uint64             `serialize:"true"`
	VoteSets     []StoredVoteSet    `serialize:"true"`
	Proofs       hashchain.LogState `serialize:"true"`
	Observers    []ids.ID           `serialize:"true"`
}

// Snapshot captures the Tally's complete state.
func (t *Tally) Snapshot() Checkpoint {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec := t.recorder.Snapshot()
	cp := Checkpoint{
		Layers:       make([]StoredLayer, 0, len(rec.Layers)),
		Chain:        rec.Chain,
		Observations: rec.Observations,
		VoteSets:     make([]StoredVoteSet, 0, len(t.votes)),
		Proofs:       t.proofs.Snapshot(),
	}

	for _, ls := range rec.Layers {
		sl := StoredLayer{
			ID:         ls.ID,
			Amplitudes: storeDecs(ls.Amplitudes),
			Phases:     storeDecs(ls.Phases),
			Observers:  ls.Observers,
			Stability:  storeDec(ls.Stability),
			Coherence:  storeDec(ls.Coherence),
		}
		entangled := make([]uint32, 0, len(ls.Entanglement))
		for id := range ls.Entanglement {
			entangled = append(entangled, id)
		}
		sort.Slice(entangled, func(i, j int) bool { return entangled[i] < entangled[j] })
		for _, id := range entangled {
			sl.EntangledWith = append(sl.EntangledWith, id)
			sl.EntanglementScores = append(sl.EntanglementScores, storeDec(ls.Entanglement[id]))
		}
		cp.Layers = append(cp.Layers, sl)
	}

	hashes := make([]ids.ID, 0, len(t.votes))
	for h := range t.votes {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i].Compare(hashes[j]) < 0 })
	for _, h := range hashes {
		vs := t.votes[h]
		sv := StoredVoteSet{
			StateHash:  h,
			Votes:      make([]StoredVote, 0, len(vs.votes)),
			Reached:    vs.reached,
			FinalState: vs.FinalState(),
			Score:      storeDec(vs.score),
		}
		for _, observer := range vs.Observers() {
			v := vs.votes[observer]
			state := make([]byte, len(v.State))
			copy(state, v.State)
			sv.Votes = append(sv.Votes, StoredVote{
				Observer:   observer,
				State:      state,
				Time:       v.Time.Unix(),
				Confidence: storeDec(v.Confidence),
			})
		}
		cp.VoteSets = append(cp.VoteSets, sv)
	}

	cp.Observers = t.observers.List()
	sort.Slice(cp.Observers, func(i, j int) bool {
		return cp.Observers[i].Compare(cp.Observers[j]) < 0
	})
	return cp
}

// RestoreSnapshot replaces the Tally's state with a previously captured
// checkpoint. The Tally is unchanged if the checkpoint fails validation.
func (t *Tally) RestoreSnapshot(cp Checkpoint) error {
	recSnap := layers.RecorderSnapshot{
		Layers:       make([]layers.LayerSnapshot, 0, len(cp.Layers)),
		Chain:        cp.Chain,
		Observations: cp.Observations,
	}
	for _, sl := range cp.Layers {
		if len(sl.EntangledWith) != len(sl.EntanglementScores) {
			return errMalformedCheckpoint
		}
		ent := make(map[uint32]fixed.Dec, len(sl.EntangledWith))
		for i, id := range sl.EntangledWith {
			ent[id] = sl.EntanglementScores[i].Dec()
		}
		recSnap.Layers = append(recSnap.Layers, layers.LayerSnapshot{
			ID:           sl.ID,
			Amplitudes:   loadDecs(sl.Amplitudes),
			Phases:       loadDecs(sl.Phases),
			Observers:    sl.Observers,
			Stability:    sl.Stability.Dec(),
			Coherence:    sl.Coherence.Dec(),
			Entanglement: ent,
		})
	}

	votes := make(map[ids.ID]*VoteSet, len(cp.VoteSets))
	for _, sv := range cp.VoteSets {
		vs := newVoteSet(sv.StateHash)
		vs.reached = sv.Reached
		vs.score = sv.Score.Dec()
		if len(sv.FinalState) > 0 {
			vs.finalState = make([]byte, len(sv.FinalState))
			copy(vs.finalState, sv.FinalState)
		}
		for _, stored := range sv.Votes {
			state := make([]byte, len(stored.State))
			copy(state, stored.State)
			vs.votes[stored.Observer] = &Vote{
				Observer:   stored.Observer,
				State:      state,
				Time:       time.Unix(stored.Time, 0),
				Confidence: stored.Confidence.Dec(),
			}
		}
		votes[sv.StateHash] = vs
	}

	observers := set.NewSet[ids.ID](len(cp.Observers))
	for _, observer := range cp.Observers {
		observers.Add(observer)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.recorder.Restore(recSnap); err != nil {
		return err
	}
	t.votes = votes
	t.observers = observers
	t.proofs.Restore(cp.Proofs)
	return nil
}

// Persist marshals a checkpoint and writes it under a fixed key.
func (t *Tally) Persist(db database.Database) error {
	cp := t.Snapshot()
	b, err := Codec.Marshal(CodecVersion, &cp)
	if err != nil {
		return err
	}
	return db.Put(checkpointKey, b)
}

// LoadPersisted restores the checkpoint previously written with Persist.
// A database without one surfaces database.ErrNotFound.
func (t *Tally) LoadPersisted(db database.Database) error {
	b, err := db.Get(checkpointKey)
	if err != nil {
		return err
	}
	var cp Checkpoint
	if _, err := Codec.Unmarshal(b, &cp); err != nil {
		return err
	}
	return t.RestoreSnapshot(cp)
}

func storeDecs(ds []fixed.Dec) []StoredDec {
	out := make([]StoredDec, len(ds))
	for i, d := range ds {
		out[i] = storeDec(d)
	}
	return out
}

func loadDecs(ds []StoredDec) []fixed.Dec {
	out := make([]fixed.Dec, len(ds))
	for i, d := range ds {
		out[i] = d.Dec()
	}
	return out
}
