// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hashchain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/tally/fixed"
)

func TestCommitDeterministic(t *testing.T) {
	require := require.New(t)

	a := New(8)
	b := New(8)

	triples := [][3][]byte{
		{[]byte("state-1"), []byte("op-1"), []byte("proof-1")},
		{[]byte("state-2"), []byte("op-2"), []byte("proof-2")},
		{[]byte("state-3"), []byte("op-3"), []byte("proof-3")},
	}
	for _, tr := range triples {
		ra := a.Commit(tr[0], tr[1], tr[2])
		rb := b.Commit(tr[0], tr[1], tr[2])
		require.Equal(ra, rb)
	}
	require.Equal(uint64(3), a.Current().Count)
	require.Equal(a.Current(), b.Current())
}

func TestCommitOrderSensitive(t *testing.T) {
	require := require.New(t)

	a := New(8)
	b := New(8)

	a.Commit([]byte("alpha"), []byte("op"), []byte("proof"))
	a.Commit([]byte("beta"), []byte("op"), []byte("proof"))

	b.Commit([]byte("beta"), []byte("op"), []byte("proof"))
	b.Commit([]byte("alpha"), []byte("op"), []byte("proof"))

	require.Equal(a.Current().Count, b.Current().Count)
	require.NotEqual(a.Current().Hash, b.Current().Hash)
}

func TestDoubleCommitSameTriple(t *testing.T) {
	require := require.New(t)

	a := New(8)
	b := New(8)

	first := a.Commit([]byte("x"), []byte("y"), []byte("z"))
	second := a.Commit([]byte("x"), []byte("y"), []byte("z"))

	// The second commit folds the first head in, so the head moves even for
	// an identical triple.
	require.NotEqual(first.Hash, second.Hash)
	require.Equal(uint64(2), second.Count)

	require.Equal(first, b.Commit([]byte("x"), []byte("y"), []byte("z")))
	require.Equal(second, b.Commit([]byte("x"), []byte("y"), []byte("z")))
}

func TestCommitEmptyInputIsNoOp(t *testing.T) {
	require := require.New(t)

	a := New(8)
	head := a.Commit([]byte("state"), []byte("op"), []byte("proof"))

	require.Equal(head, a.Commit(nil, []byte("op"), []byte("proof")))
	require.Equal(head, a.Commit([]byte("state"), nil, []byte("proof")))
	require.Equal(head, a.Commit([]byte("state"), []byte("op"), nil))
	require.Equal(head, a.Current())
}

func TestVerify(t *testing.T) {
	require := require.New(t)

	a := New(8)
	a.Commit([]byte("state-1"), []byte("op-1"), []byte("proof-1"))
	second := a.Commit([]byte("state-2"), []byte("op-2"), []byte("proof-2"))

	require.True(a.Verify(second, []byte("state-2"), []byte("op-2"), []byte("proof-2")))

	// Wrong inputs, tampered head, and stale positions all fail.
	require.False(a.Verify(second, []byte("state-x"), []byte("op-2"), []byte("proof-2")))
	require.False(a.Verify(second, []byte("state-2"), []byte("op-x"), []byte("proof-2")))
	require.False(a.Verify(second, []byte("state-2"), []byte("op-2"), []byte("proof-x")))

	tampered := second
	tampered.Hash[0] ^= 0x01
	require.False(a.Verify(tampered, []byte("state-2"), []byte("op-2"), []byte("proof-2")))

	a.Commit([]byte("state-3"), []byte("op-3"), []byte("proof-3"))
	require.False(a.Verify(second, []byte("state-2"), []byte("op-2"), []byte("proof-2")))

	// An accumulator that never saw the second commit fails it too.
	behind := New(8)
	behind.Commit([]byte("state-1"), []byte("op-1"), []byte("proof-1"))
	require.False(behind.Verify(second, []byte("state-2"), []byte("op-2"), []byte("proof-2")))
}

func TestVerifyEmptyInputs(t *testing.T) {
	require := require.New(t)

	a := New(8)
	head := a.Commit([]byte("state"), []byte("op"), []byte("proof"))

	require.False(a.Verify(head, nil, []byte("op"), []byte("proof")))
	require.False(a.Verify(head, []byte("state"), nil, []byte("proof")))
	require.False(a.Verify(head, []byte("state"), []byte("op"), nil))
}

func TestProofNormalization(t *testing.T) {
	require := require.New(t)

	// A 32-byte all-zero proof XORs to identity, so it and any proof hashing
	// to a different digest must diverge.
	zero32 := make([]byte, 32)
	a := New(8)
	b := New(8)
	ra := a.Commit([]byte("state"), []byte("op"), zero32)
	rb := b.Commit([]byte("state"), []byte("op"), []byte("short"))
	require.NotEqual(ra.Hash, rb.Hash)
}

func TestSnapshotRestore(t *testing.T) {
	require := require.New(t)

	a := New(8)
	a.Commit([]byte("state-1"), []byte("op-1"), []byte("proof-1"))
	a.Commit([]byte("state-2"), []byte("op-2"), []byte("proof-2"))
	snap := a.Snapshot()

	a.Commit([]byte("state-3"), []byte("op-3"), []byte("proof-3"))
	require.Equal(uint64(3), a.Current().Count)

	b := New(8)
	b.Restore(snap)
	require.Equal(uint64(2), b.Current().Count)

	// A restored accumulator replays the chain identically.
	want := a.Current()
	require.Equal(want, b.Commit([]byte("state-3"), []byte("op-3"), []byte("proof-3")))
}

func TestScores(t *testing.T) {
	require := require.New(t)

	a := New(8)
	proof := a.ProofScore([]byte("payload"))
	require.Equal(proof, a.ProofScore([]byte("payload")))
	require.NotEqual(proof, a.ProofScore([]byte("other")))
	require.Equal(uint8(8), proof.Scale())
	require.True(proof.Sign() >= 0)

	state := a.StateScore([]byte{0xAB})
	require.Equal(state, a.StateScore([]byte{0xAB}))
	require.Equal(fixed.Zero(8), a.StateScore(nil))

	// Short state bytes cycle to fill the digit width, so one byte and that
	// byte repeated expand identically.
	require.Equal(state, a.StateScore([]byte{0xAB, 0xAB, 0xAB}))

	decision := a.DecisionScore([]byte("payload"))
	require.Equal(decision, a.DecisionScore([]byte("payload")))
}

func TestScorePrecisionClamp(t *testing.T) {
	require := require.New(t)

	low := New(0)
	require.Equal(uint8(1), low.ProofScore([]byte("x")).Scale())

	high := New(40)
	require.Equal(uint8(17), high.ProofScore([]byte("x")).Scale())
}

func TestProofLog(t *testing.T) {
	require := require.New(t)

	l := NewProofLog()
	p1 := l.Prove([]byte("op-1"), []byte("witness-1"))
	p2 := l.Prove([]byte("op-2"), []byte("witness-2"))

	require.Equal(p1.State, p2.Prior)
	require.Equal(p2.State, l.State())
	require.Equal(2, l.Len())

	require.True(l.VerifyProof(p1, []byte("op-1")))
	require.True(l.VerifyProof(p2, []byte("op-2")))
	require.False(l.VerifyProof(p1, []byte("op-2")))

	forged := p2
	forged.Prior = p1.Prior
	require.False(l.VerifyProof(forged, []byte("op-2")))
}

func TestProofLogDeterministic(t *testing.T) {
	require := require.New(t)

	a := NewProofLog()
	b := NewProofLog()
	require.Equal(
		a.Prove([]byte("op"), []byte("w")),
		b.Prove([]byte("op"), []byte("w")),
	)
	require.Equal(a.State(), b.State())
}

func TestProofLogSnapshotRestore(t *testing.T) {
	require := require.New(t)

	a := NewProofLog()
	a.Prove([]byte("op-1"), []byte("w-1"))
	snap := a.Snapshot()
	a.Prove([]byte("op-2"), []byte("w-2"))

	b := NewProofLog()
	b.Restore(snap)
	require.Equal(1, b.Len())
	require.Equal(snap.State, b.State())
	require.Equal(a.Proofs()[1], b.Prove([]byte("op-2"), []byte("w-2")))
}

func TestCoherence(t *testing.T) {
	require := require.New(t)

	l := NewProofLog()
	p := l.Prove([]byte("op"), []byte("witness"))
	c := Coherence(p)
	require.Equal(uint8(5), c.Scale())
	require.True(c.Sign() >= 0)

	// 256 commitment bits bound the score at 2.56.
	require.True(c.Less(fixed.New(257000, 5)))
	require.Equal(c, Coherence(p))
}
