// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vector

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/tally/fixed"
)

func normalized4() []fixed.Dec {
	return []fixed.Dec{
		fixed.New(500, 3),
		fixed.New(500, 3),
		fixed.New(500, 3),
		fixed.New(500, 3),
	}
}

func zeroPhases(n int) []fixed.Dec {
	phases := make([]fixed.Dec, n)
	for i := range phases {
		phases[i] = fixed.Zero(8)
	}
	return phases
}

func TestNewLengthMismatch(t *testing.T) {
	require := require.New(t)

	_, err := New(normalized4(), zeroPhases(3))
	require.ErrorIs(err, ErrLengthMismatch)
}

func TestCoherence(t *testing.T) {
	require := require.New(t)

	// Four amplitudes of 0.5 carry unit energy, so coherence is 1/e.
	require.True(Coherence(normalized4()).Eq(fixed.New(369, 3)))

	require.True(Coherence(nil).IsZero())
	require.True(Coherence([]fixed.Dec{fixed.Zero(3), fixed.Zero(3)}).IsZero())

	s, err := New(normalized4(), zeroPhases(4))
	require.NoError(err)
	require.True(s.Coherence().Eq(fixed.New(369, 3)))
}

func TestSelfOverlapOfNormalizedStateIsOne(t *testing.T) {
	require := require.New(t)

	s, err := New(normalized4(), zeroPhases(4))
	require.NoError(err)
	require.True(s.Overlap(s).Eq(fixed.New(1000, 3)))
}

func TestOverlapPhaseAlignment(t *testing.T) {
	require := require.New(t)

	aligned, err := New(normalized4(), zeroPhases(4))
	require.NoError(err)

	quarter := make([]fixed.Dec, 4)
	for i := range quarter {
		quarter[i] = fixed.New(1571, 3)
	}
	orthogonal, err := New(normalized4(), quarter)
	require.NoError(err)

	half := make([]fixed.Dec, 4)
	for i := range half {
		half[i] = fixed.New(3142, 3)
	}
	opposite, err := New(normalized4(), half)
	require.NoError(err)

	// A quarter turn cancels every pair; a half turn flips signs which the
	// final square removes.
	require.True(aligned.Overlap(orthogonal).IsZero())
	require.True(aligned.Overlap(opposite).Eq(fixed.New(1000, 3)))

	eighth := make([]fixed.Dec, 4)
	for i := range eighth {
		eighth[i] = fixed.New(785, 3)
	}
	partial, err := New(normalized4(), eighth)
	require.NoError(err)

	got := aligned.Overlap(partial)
	require.True(got.Sign() > 0)
	require.True(got.Less(fixed.New(1000, 3)))
}

func TestOverlapBounded(t *testing.T) {
	require := require.New(t)

	one := fixed.New(1000, 3)
	phaseSets := [][]fixed.Dec{
		zeroPhases(4),
		{fixed.Zero(8), fixed.New(785, 3), fixed.New(1571, 3), fixed.New(3142, 3)},
		{fixed.New(-785, 3), fixed.New(785, 3), fixed.New(-1571, 3), fixed.New(1571, 3)},
	}
	base, err := New(normalized4(), zeroPhases(4))
	require.NoError(err)
	for _, phases := range phaseSets {
		s, err := New(normalized4(), phases)
		require.NoError(err)
		got := base.Overlap(s)
		require.True(got.Sign() >= 0)
		require.True(got.Cmp(one) <= 0)
	}
}

func TestOverlapDeterministic(t *testing.T) {
	require := require.New(t)

	a, err := New(normalized4(), []fixed.Dec{
		fixed.Zero(8), fixed.New(785, 3), fixed.New(1571, 3), fixed.New(3142, 3),
	})
	require.NoError(err)
	b, err := New(normalized4(), zeroPhases(4))
	require.NoError(err)

	first := a.Overlap(b)
	for i := 0; i < 10; i++ {
		require.Equal(first, a.Overlap(b))
	}
}

func TestStateOwnsItsSlices(t *testing.T) {
	require := require.New(t)

	amps := normalized4()
	phases := zeroPhases(4)
	s, err := New(amps, phases)
	require.NoError(err)

	amps[0] = fixed.New(999, 3)
	phases[0] = fixed.New(999, 3)
	require.True(s.Amplitudes()[0].Eq(fixed.New(500, 3)))
	require.True(s.Phases()[0].IsZero())

	out := s.Amplitudes()
	out[1] = fixed.Zero(3)
	require.True(s.Amplitudes()[1].Eq(fixed.New(500, 3)))

	c := s.Clone()
	require.Equal(s.Len(), c.Len())
	require.Equal(s.Coherence(), c.Coherence())
	require.Equal(s.Amplitudes(), c.Amplitudes())
}
