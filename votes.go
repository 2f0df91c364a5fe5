// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tally

import (
	"slices"
	"sort"
	"time"

	"github.com/luxfi/ids"

	"github.com/luxfi/tally/fixed"
)

// Vote is one observer's claim about a disputed state. Later votes from the
// same observer replace earlier ones.
type Vote struct {
	Observer   ids.ID
	State      []byte
	Time       time.Time
	Confidence fixed.Dec
}

// VoteSet tallies votes over one disputed state hash. Its life cycle is
// no-tally, voting, consensus-reached; the last state is terminal and its
// fields never change, though votes continue to be accepted and recorded.
type VoteSet struct {
	stateHash  ids.ID
	votes      map[ids.ID]*Vote
	reached    bool
	finalState []byte
	score      fixed.Dec
}

func newVoteSet(stateHash ids.ID) *VoteSet {
	return &VoteSet{
		stateHash: stateHash,
		votes:     make(map[ids.ID]*Vote),
		score:     fixed.Zero(3),
	}
}

func (t *VoteSet) add(v *Vote) {
	t.votes[v.Observer] = v
}

// evaluate re-checks the quorum rule and reports whether consensus holds.
// Weights are summed per candidate state in sorted byte order, so the walk
// is deterministic and ties break toward the lexicographically smallest
// state.
func (t *VoteSet) evaluate(minObservers int, threshold fixed.Dec) bool {
	if t.reached {
		return true
	}
	if len(t.votes) < minObservers {
		return false
	}

	weights := make(map[string]fixed.Dec, len(t.votes))
	total := fixed.Zero(3)
	for _, v := range t.votes {
		key := string(v.State)
		weight, ok := weights[key]
		if !ok {
			weight = fixed.Zero(3)
		}
		weights[key] = weight.Add(v.Confidence)
		total = total.Add(v.Confidence)
	}

	candidates := make([]string, 0, len(weights))
	for state := range weights {
		candidates = append(candidates, state)
	}
	sort.Strings(candidates)

	var (
		winner     string
		bestWeight fixed.Dec
		found      bool
	)
	for _, state := range candidates {
		if w := weights[state]; !found || bestWeight.Less(w) {
			winner = state
			bestWeight = w
			found = true
		}
	}
	if !found {
		return false
	}

	bar := total.Mul(threshold)
	if bestWeight.Cmp(bar) < 0 {
		return false
	}
	t.reached = true
	t.finalState = []byte(winner)
	t.score = bestWeight.Div(total)
	return true
}

// StateHash returns the disputed state hash this set tallies.
func (t *VoteSet) StateHash() ids.ID { return t.stateHash }

// Reached reports whether consensus has been reached.
func (t *VoteSet) Reached() bool { return t.reached }

// Score returns the winning weight as a fraction of total confidence, zero
// before consensus.
func (t *VoteSet) Score() fixed.Dec { return t.score }

// FinalState returns a copy of the agreed state, nil before consensus.
func (t *VoteSet) FinalState() []byte {
	if t.finalState == nil {
		return nil
	}
	out := make([]byte, len(t.finalState))
	copy(out, t.finalState)
	return out
}

// Len returns the number of distinct observers that have voted.
func (t *VoteSet) Len() int { return len(t.votes) }

// Observers returns the voting observers in sorted order.
func (t *VoteSet) Observers() []ids.ID {
	out := make([]ids.ID, 0, len(t.votes))
	for observer := range t.votes {
		out = append(out, observer)
	}
	slices.SortFunc(out, func(a, b ids.ID) int {
		return a.Compare(b)
	})
	return out
}

func (t *VoteSet) clone() *VoteSet {
	c := &VoteSet{
		stateHash:  t.stateHash,
		votes:      make(map[ids.ID]*Vote, len(t.votes)),
		reached:    t.reached,
		finalState: t.FinalState(),
		score:      t.score,
	}
	for observer, v := range t.votes {
		state := make([]byte, len(v.State))
		copy(state, v.State)
		c.votes[observer] = &Vote{
			Observer:   v.Observer,
			State:      state,
			Time:       v.Time,
			Confidence: v.Confidence,
		}
	}
	return c
}
