// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fixed

import "github.com/holiman/uint256"

// The transcendentals below are bounded integer approximations, not precise
// math: each one normalizes its input to workScale, runs a fixed-iteration
// range reduction or series, and clamps the result to a documented envelope.
// Their purpose is to give the consensus layer smooth, bit-deterministic
// scoring curves, not numerical accuracy.

const (
	piMag    = 3142 // pi at workScale
	halfPi   = 1571
	twoPiMag = 6283
	unitMag  = 1000 // 1.0 at workScale

	// nearWindow is the half-width of the snap windows around 0, pi/2 and pi.
	nearWindow = 100
)

// angle reduces the normalized magnitude into [-piMag, piMag].
func (d Dec) angle() int64 {
	w := d.workMag()
	var m uint256.Int
	m.SMod(&w, twoPiWide)
	x := toInt64(&m)
	if x > piMag {
		x -= twoPiMag
	} else if x < -piMag {
		x += twoPiMag
	}
	return x
}

// Cos returns the cosine of d (radians) at workScale, clamped to [-1, 1].
// Inputs within 0.1 of 0, pi/2 or pi snap to 1, 0 and -1 respectively;
// everywhere else a two-term series is used.
func (d Dec) Cos() Dec {
	x := d.angle()
	switch {
	case abs64(x) < nearWindow:
		return New(unitMag, workScale)
	case abs64(x-halfPi) < nearWindow || abs64(x+halfPi) < nearWindow:
		return Zero(workScale)
	case abs64(x-piMag) < nearWindow || abs64(x+piMag) < nearWindow:
		return New(-unitMag, workScale)
	}
	xsq := x * x / unitMag
	v := unitMag - xsq/2
	return New(clampUnit(v), workScale)
}

// Sin returns the sine of d (radians) at workScale, clamped to [-1, 1], with
// the same snap windows as Cos.
func (d Dec) Sin() Dec {
	x := d.angle()
	switch {
	case abs64(x) < nearWindow:
		return Zero(workScale)
	case abs64(x-halfPi) < nearWindow:
		return New(unitMag, workScale)
	case abs64(x+halfPi) < nearWindow:
		return New(-unitMag, workScale)
	case abs64(x-piMag) < nearWindow || abs64(x+piMag) < nearWindow:
		return Zero(workScale)
	}
	xsq := x * x / unitMag
	v := x - xsq*x/(6*unitMag)
	return New(clampUnit(v), workScale)
}

// Ln returns the natural logarithm of d. Non-positive input returns the
// -1e6 sentinel at workScale. Magnitudes beyond the series range use a
// coarse integer log2 estimate; values within 0.1 of 1 use the linear
// approximation ln(x) ~= x-1; everything else runs nine terms of the atanh
// series ln(x) = 2 * sum z^(2k+1)/(2k+1) with z = (x-1)/(x+1).
func (d Dec) Ln() Dec {
	w := d.workMag()
	if w.Sign() <= 0 {
		return New(-1_000_000_000, workScale)
	}
	var a uint256.Int
	a.Abs(&w)
	// Cut over to the coarse branch one unit below the series bound so that
	// x+1 below can never leave the in-range division path.
	if a.Gt(lnSeriesMax) {
		bits := int64(a.BitLen() - 1)
		return New(bits*693147, 6) // ln(2) ~= 0.693147
	}
	v := toInt64(&w)
	if abs64(v-unitMag) < nearWindow {
		return New(v-unitMag, workScale)
	}
	one := New(unitMag, workScale)
	x := New(v, workScale)
	z := x.Sub(one).Div(x.Add(one))
	zsq := z.Mul(z)
	term, sum := z, z
	for k := int64(1); k < 10; k++ {
		term = term.Mul(zsq)
		sum = sum.Add(term.Div(New(2*k+1, 0)))
	}
	return sum.Mul(New(2, 0))
}

// Exp returns e^d via a five-term series, normalized so the result mantissa
// lands in roughly [0.95, 1.05] times a power of ten. Inputs beyond +-10
// clamp to the envelope edges 1.0 and 0.001; a series result driven
// non-positive by a strongly negative input clamps to the low edge as well.
func (d Dec) Exp() Dec {
	w := d.workMag()
	var a uint256.Int
	a.Abs(&w)
	if a.Gt(expSeries) {
		if w.Sign() >= 0 {
			return New(unitMag, workScale)
		}
		return New(1, workScale)
	}
	x := toInt64(&w)
	value := int64(unitMag)
	term := int64(unitMag)
	for i := int64(1); i <= 5; i++ {
		term = term * x / (i * unitMag)
		value += term
	}
	if value <= 0 {
		return New(1, workScale)
	}
	scale := int64(workScale)
	for value > 1050 {
		value /= 10
		if scale > MinScale {
			scale--
		}
	}
	for value < 950 {
		value *= 10
		if scale < MaxScale {
			scale++
		}
	}
	return New(value, uint8(scale))
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func clampUnit(v int64) int64 {
	if v > unitMag {
		return unitMag
	}
	if v < -unitMag {
		return -unitMag
	}
	return v
}
