// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hashchain

import (
	"math/bits"

	"github.com/luxfi/crypto/hash"
	"github.com/luxfi/ids"

	"github.com/luxfi/tally/fixed"
)

// Proof binds one operation to a position in a proof chain. Prior is the
// chain state the operation was applied to and State the state it produced,
// so a proof verifies with nothing but the operation bytes.
type Proof struct {
	Prior      ids.ID `serialize:"true"`
	State      ids.ID `serialize:"true"`
	Operation  ids.ID `serialize:"true"`
	Commitment ids.ID `serialize:"true"`
}

// ProofLog chains operation proofs: each Prove advances the log state to
// H(state || operation). Like the accumulator it is single-writer.
type ProofLog struct {
	state  ids.ID
	proofs []Proof
}

func NewProofLog() *ProofLog {
	return &ProofLog{}
}

// Prove appends an operation to the log and returns its proof. witness is
// auxiliary data bound in by hash only; the log does not retain it.
func (l *ProofLog) Prove(operation, witness []byte) Proof {
	buf := make([]byte, 0, len(l.state)+len(operation))
	buf = append(buf, l.state[:]...)
	buf = append(buf, operation...)

	p := Proof{
		Prior:      l.state,
		State:      hash.ComputeHash256Array(buf),
		Operation:  hash.ComputeHash256Array(operation),
		Commitment: hash.ComputeHash256Array(witness),
	}
	l.state = p.State
	l.proofs = append(l.proofs, p)
	return p
}

// VerifyProof reports whether p binds operation to the transition it claims.
func (l *ProofLog) VerifyProof(p Proof, operation []byte) bool {
	if p.Operation != ids.ID(hash.ComputeHash256Array(operation)) {
		return false
	}
	buf := make([]byte, 0, len(p.Prior)+len(operation))
	buf = append(buf, p.Prior[:]...)
	buf = append(buf, operation...)
	return p.State == ids.ID(hash.ComputeHash256Array(buf))
}

// Coherence maps a proof's commitment density to a fixed-point score: 0.01
// per set commitment bit, so a uniformly random commitment scores near 1.28.
func Coherence(p Proof) fixed.Dec {
	var ones int
	for _, b := range p.Commitment {
		ones += bits.OnesCount8(b)
	}
	return fixed.New(int64(ones)*1000, 5)
}

// State returns the current chain state of the log.
func (l *ProofLog) State() ids.ID {
	return l.state
}

// Len returns the number of proofs recorded.
func (l *ProofLog) Len() int {
	return len(l.proofs)
}

// Proofs returns a copy of the recorded proof chain.
func (l *ProofLog) Proofs() []Proof {
	out := make([]Proof, len(l.proofs))
	copy(out, l.proofs)
	return out
}

// LogState is the proof log's complete recoverable state.
type LogState struct {
	State  ids.ID  `serialize:"true"`
	Proofs []Proof `serialize:"true"`
}

// Snapshot captures the recoverable state.
func (l *ProofLog) Snapshot() LogState {
	return LogState{State: l.state, Proofs: l.Proofs()}
}

// Restore overwrites the log with a previously captured state.
func (l *ProofLog) Restore(s LogState) {
	l.state = s.State
	l.proofs = make([]Proof, len(s.Proofs))
	copy(l.proofs, s.Proofs)
}
