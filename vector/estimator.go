// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vector

import (
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/tally/fixed"
)

// DefaultChunkSize bounds per-gate work for arbitrarily long sequences.
const DefaultChunkSize = 32

// Estimator scores the coherence of an observed vector. Implementations must
// be deterministic: the same input always yields the same score.
type Estimator interface {
	EstimateCoherence(amplitudes, phases []fixed.Dec) fixed.Dec
}

// ChunkedEstimator splits a vector into fixed-size chunks, scores each chunk
// through a retrogate sized to it, and averages the chunk scores. Chunking
// bounds the quadratic per-gate cost, and chunk scores are summed in index
// order so worker scheduling cannot perturb the result.
type ChunkedEstimator struct {
	// ChunkSize is the gate width. Values below one fall back to
	// DefaultChunkSize.
	ChunkSize int
	// Workers bounds concurrent chunk scoring. Values below one score on the
	// calling goroutine alone.
	Workers int
}

func (e ChunkedEstimator) EstimateCoherence(amplitudes, phases []fixed.Dec) fixed.Dec {
	if len(amplitudes) == 0 || len(amplitudes) != len(phases) {
		return fixed.Zero(8)
	}

	chunkSize := e.ChunkSize
	if chunkSize < 1 {
		chunkSize = DefaultChunkSize
	}
	workers := e.Workers
	if workers < 1 {
		workers = 1
	}

	chunks := (len(amplitudes) + chunkSize - 1) / chunkSize
	scores := make([]fixed.Dec, chunks)

	var eg errgroup.Group
	eg.SetLimit(workers)
	for c := 0; c < chunks; c++ {
		lo := c * chunkSize
		hi := lo + chunkSize
		if hi > len(amplitudes) {
			hi = len(amplitudes)
		}
		score := &scores[c]
		eg.Go(func() error {
			gate := NewRetrogate(hi - lo)
			gate.Update(amplitudes[lo:hi], phases[lo:hi])
			*score = gate.Score()
			return nil
		})
	}
	// Workers never fail; Wait only joins them.
	_ = eg.Wait()

	sum := fixed.Zero(8)
	for _, s := range scores {
		sum = sum.Add(s)
	}
	return sum.Div(fixed.New(int64(chunks), 0))
}
