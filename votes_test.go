// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package tally

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ids"

	"github.com/luxfi/tally/fixed"
)

var testThreshold = fixed.New(75, 2)

func filledState(b byte) []byte {
	return bytes.Repeat([]byte{b}, StateSize)
}

func castVote(vs *VoteSet, observer byte, state []byte, confidence fixed.Dec) {
	vs.add(&Vote{
		Observer:   ids.ID{observer},
		State:      state,
		Time:       time.Unix(1700000000, 0),
		Confidence: confidence,
	})
}

func TestQuorumThresholdEdge(t *testing.T) {
	require := require.New(t)

	stateA := filledState(0xaa)
	stateB := filledState(0xbb)

	// 40/40/20 split across A, A, B clears the 75% bar at 80%.
	vs := newVoteSet(ids.ID{1})
	castVote(vs, 1, stateA, fixed.New(40, 2))
	castVote(vs, 2, stateA, fixed.New(40, 2))
	castVote(vs, 3, stateB, fixed.New(20, 2))

	require.True(vs.evaluate(3, testThreshold))
	require.True(vs.Reached())
	require.Equal(stateA, vs.FinalState())
	require.True(vs.Score().Eq(fixed.New(800, 3)))
}

func TestQuorumBelowThreshold(t *testing.T) {
	require := require.New(t)

	// 40/35/25 across three candidates leaves no winner.
	vs := newVoteSet(ids.ID{1})
	castVote(vs, 1, filledState(0xaa), fixed.New(40, 2))
	castVote(vs, 2, filledState(0xbb), fixed.New(35, 2))
	castVote(vs, 3, filledState(0xcc), fixed.New(25, 2))

	require.False(vs.evaluate(3, testThreshold))
	require.False(vs.Reached())
	require.Nil(vs.FinalState())
	require.True(vs.Score().IsZero())
}

func TestQuorumBelowMinObservers(t *testing.T) {
	require := require.New(t)

	vs := newVoteSet(ids.ID{1})
	castVote(vs, 1, filledState(0xaa), fixed.New(90, 2))
	castVote(vs, 2, filledState(0xaa), fixed.New(90, 2))

	// Unanimous support is not enough below three observers.
	require.False(vs.evaluate(3, testThreshold))
	require.False(vs.Reached())
}

func TestQuorumReplacesVotePerObserver(t *testing.T) {
	require := require.New(t)

	stateA := filledState(0xaa)
	stateB := filledState(0xbb)

	vs := newVoteSet(ids.ID{1})
	castVote(vs, 1, stateA, fixed.New(30, 2))
	castVote(vs, 2, stateA, fixed.New(30, 2))
	castVote(vs, 3, stateB, fixed.New(40, 2))
	require.False(vs.evaluate(3, testThreshold))

	// Observer 3 switches to A, making it unanimous.
	castVote(vs, 3, stateA, fixed.New(40, 2))
	require.Equal(3, vs.Len())
	require.True(vs.evaluate(3, testThreshold))
	require.Equal(stateA, vs.FinalState())
	require.True(vs.Score().Eq(fixed.New(1000, 3)))
}

func TestQuorumTieBreaksLowestState(t *testing.T) {
	require := require.New(t)

	low := filledState(0x11)
	high := filledState(0x22)

	vs := newVoteSet(ids.ID{1})
	castVote(vs, 1, low, fixed.New(25, 2))
	castVote(vs, 2, low, fixed.New(25, 2))
	castVote(vs, 3, high, fixed.New(25, 2))
	castVote(vs, 4, high, fixed.New(25, 2))

	// At an even split with a 50% bar, the smaller byte sequence wins.
	require.True(vs.evaluate(3, fixed.New(50, 2)))
	require.Equal(low, vs.FinalState())
	require.True(vs.Score().Eq(fixed.New(500, 3)))
}

func TestQuorumIdempotence(t *testing.T) {
	require := require.New(t)

	stateA := filledState(0xaa)
	stateB := filledState(0xbb)

	vs := newVoteSet(ids.ID{1})
	castVote(vs, 1, stateA, fixed.New(40, 2))
	castVote(vs, 2, stateA, fixed.New(40, 2))
	castVote(vs, 3, stateB, fixed.New(20, 2))
	require.True(vs.evaluate(3, testThreshold))

	finalState := vs.FinalState()
	score := vs.Score()

	// Resubmitting the exact same votes and re-evaluating changes nothing.
	castVote(vs, 1, stateA, fixed.New(40, 2))
	castVote(vs, 2, stateA, fixed.New(40, 2))
	castVote(vs, 3, stateB, fixed.New(20, 2))
	require.True(vs.evaluate(3, testThreshold))
	require.Equal(finalState, vs.FinalState())
	require.True(score.Eq(vs.Score()))
}

func TestTerminalTallyKeepsItsFields(t *testing.T) {
	require := require.New(t)

	stateA := filledState(0xaa)

	vs := newVoteSet(ids.ID{1})
	castVote(vs, 1, stateA, fixed.New(40, 2))
	castVote(vs, 2, stateA, fixed.New(40, 2))
	castVote(vs, 3, stateA, fixed.New(20, 2))
	require.True(vs.evaluate(3, testThreshold))
	score := vs.Score()

	// A heavyweight dissent arrives after the fact. It is recorded but the
	// terminal fields stay frozen.
	castVote(vs, 4, filledState(0xbb), fixed.New(900, 2))
	require.True(vs.evaluate(3, testThreshold))
	require.Equal(4, vs.Len())
	require.Equal(stateA, vs.FinalState())
	require.True(score.Eq(vs.Score()))
}

func TestVoteSetObserversSorted(t *testing.T) {
	require := require.New(t)

	vs := newVoteSet(ids.ID{1})
	castVote(vs, 9, filledState(0xaa), fixed.New(10, 2))
	castVote(vs, 1, filledState(0xaa), fixed.New(10, 2))
	castVote(vs, 5, filledState(0xaa), fixed.New(10, 2))

	require.Equal([]ids.ID{{1}, {5}, {9}}, vs.Observers())
}

func TestVoteSetCloneIsolation(t *testing.T) {
	require := require.New(t)

	stateA := filledState(0xaa)
	vs := newVoteSet(ids.ID{1})
	castVote(vs, 1, stateA, fixed.New(40, 2))

	c := vs.clone()
	c.votes[ids.ID{1}].State[0] = 0xff
	castVote(c, 2, filledState(0xbb), fixed.New(40, 2))

	require.Equal(1, vs.Len())
	require.Equal(byte(0xaa), vs.votes[ids.ID{1}].State[0])
}
