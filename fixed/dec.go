// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fixed implements deterministic fixed-point decimal arithmetic.
//
// A Dec is a signed 128-bit magnitude paired with a decimal scale in
// [MinScale, MaxScale] and denotes magnitude * 10^-scale. Every operation is
// a total function: overflow saturates to the signed 128-bit extremes,
// division by a vanishing divisor yields a sign-correct saturation sentinel,
// and very large operands are routed through a bounded logarithmic-domain
// fallback. Given identical inputs, every operation yields a bit-identical
// (magnitude, scale) pair on every platform; consensus depends on this, so
// no code path may touch floating point except the explicitly non-critical
// FromFloat64 and Float64 boundary conversions.
package fixed

import (
	"fmt"
	"math"
	"math/big"

	"github.com/holiman/uint256"
)

const (
	// MinScale and MaxScale bound the decimal scale of every Dec.
	MinScale = 1
	MaxScale = 18

	// workScale is the scale every transcendental evaluates at.
	workScale = 3
)

var (
	pow10       [2*MaxScale + 1]*uint256.Int
	maxMag      *uint256.Int // 2^127 - 1
	minMag      *uint256.Int // -2^127, two's complement
	negMaxMag   *uint256.Int // -(2^127 - 1), the negative division sentinel
	twoPow128   *uint256.Int
	seriesMax   *uint256.Int // largest work-scale magnitude the series paths accept
	lnSeriesMax *uint256.Int
	vanishing   *uint256.Int // work-scale magnitudes below this divide as zero
	expSeries   *uint256.Int // largest work-scale magnitude Exp expands in-series
	twoPiWide   *uint256.Int
)

func init() {
	p := uint256.NewInt(1)
	for i := range pow10 {
		pow10[i] = p.Clone()
		p.Mul(p, uint256.NewInt(10))
	}

	one := uint256.NewInt(1)
	maxMag = new(uint256.Int).Lsh(one, 127)
	maxMag.Sub(maxMag, one)
	minMag = new(uint256.Int).Lsh(one, 127)
	minMag.Neg(minMag)
	negMaxMag = new(uint256.Int).Neg(maxMag)
	twoPow128 = new(uint256.Int).Lsh(one, 128)

	seriesMax = uint256.NewInt(1_000_000_000)
	lnSeriesMax = uint256.NewInt(1_000_000_000 - unitMag)
	vanishing = uint256.NewInt(10)
	expSeries = uint256.NewInt(10_000)
	twoPiWide = uint256.NewInt(twoPiMag)
}

// Dec is an immutable fixed-point decimal. The zero value is 0 at scale 0 and
// behaves as an integer zero; use Zero for a canonically scaled zero.
type Dec struct {
	mag   uint256.Int // two's complement, always within the signed 128-bit range
	scale uint8
}

// makeDec canonicalizes a wide signed magnitude into a Dec. Scale is
// normalized into [MinScale, MaxScale] without changing the denoted number
// (the magnitude is shifted by the matching power of ten), then the magnitude
// is saturated to the signed 128-bit extremes.
func makeDec(z *uint256.Int, scale int) Dec {
	if scale > MaxScale {
		z.SDiv(z, pow10[scale-MaxScale])
		scale = MaxScale
	}
	if scale < MinScale {
		z.Mul(z, pow10[MinScale-scale])
		scale = MinScale
	}
	if z.Sgt(maxMag) {
		z.Set(maxMag)
	} else if z.Slt(minMag) {
		z.Set(minMag)
	}
	return Dec{mag: *z, scale: uint8(scale)}
}

// New returns mag * 10^-scale. Scales outside [MinScale, MaxScale] are
// normalized by shifting the magnitude, so New(5, 0) is exactly 5.0.
func New(mag int64, scale uint8) Dec {
	var z uint256.Int
	setInt64(&z, mag)
	return makeDec(&z, int(scale))
}

// Zero returns zero at the given scale.
func Zero(scale uint8) Dec {
	var z uint256.Int
	return makeDec(&z, int(scale))
}

// FromFloat64 converts a float literal at the given scale. NaN and infinities
// map to zero, as do magnitudes below 1e-6. This is a boundary convenience
// and is excluded from the bit-determinism contract.
func FromFloat64(f float64, scale uint8) Dec {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Zero(scale)
	}
	if math.Abs(f) < 1e-6 {
		return Zero(scale)
	}
	s := scale
	if s < MinScale {
		s = MinScale
	} else if s > MaxScale {
		s = MaxScale
	}
	scaled := f * math.Pow10(int(s))
	if math.Abs(scaled) >= math.MaxInt64 {
		bi, _ := big.NewFloat(scaled).Int(nil)
		var z uint256.Int
		if overflow := z.SetFromBig(bi); overflow {
			if scaled > 0 {
				z.Set(maxMag)
			} else {
				z.Set(minMag)
			}
		}
		return makeDec(&z, int(s))
	}
	return New(int64(scaled), s)
}

// FromBytes16 rebuilds a Dec from the little-endian two's-complement
// magnitude produced by Bytes16.
func FromBytes16(b [16]byte, scale uint8) Dec {
	var be [16]byte
	for i := range b {
		be[15-i] = b[i]
	}
	var z uint256.Int
	z.SetBytes(be[:])
	if be[0]&0x80 != 0 {
		z.Sub(&z, twoPow128)
	}
	return makeDec(&z, int(scale))
}

// Bytes16 returns the magnitude as 16 little-endian two's-complement bytes.
func (d Dec) Bytes16() [16]byte {
	b32 := d.mag.Bytes32()
	var out [16]byte
	for i := range out {
		out[i] = b32[31-i]
	}
	return out
}

// Scale returns the decimal scale.
func (d Dec) Scale() uint8 { return d.scale }

// Sign returns -1, 0 or 1.
func (d Dec) Sign() int { return d.mag.Sign() }

// IsZero reports whether the magnitude is zero.
func (d Dec) IsZero() bool { return d.mag.IsZero() }

// Int64 returns the raw magnitude when it fits in an int64.
func (d Dec) Int64() (int64, bool) {
	var a uint256.Int
	a.Abs(&d.mag)
	if !a.IsUint64() {
		return 0, false
	}
	u := a.Uint64()
	if d.mag.Sign() < 0 {
		if u > uint64(math.MaxInt64)+1 {
			return 0, false
		}
		return -int64(u-1) - 1, true
	}
	if u > math.MaxInt64 {
		return 0, false
	}
	return int64(u), true
}

// Abs returns the absolute value.
func (d Dec) Abs() Dec {
	if d.mag.Sign() >= 0 {
		return d
	}
	var z uint256.Int
	z.Neg(&d.mag)
	return makeDec(&z, int(d.scale))
}

// Neg returns the negation.
func (d Dec) Neg() Dec {
	var z uint256.Int
	z.Neg(&d.mag)
	return makeDec(&z, int(d.scale))
}

// rescaled stores into dst the magnitude rescaled up to scale s. s must be
// >= d.scale; the shift is exact in 256-bit space.
func (d Dec) rescaled(dst *uint256.Int, s uint8) {
	dst.Set(&d.mag)
	if s > d.scale {
		dst.Mul(dst, pow10[s-d.scale])
	}
}

// workMag returns the magnitude rescaled to workScale, truncating toward
// zero. Every transcendental and every internal magnitude threshold operates
// on this normalized form, so a phase stored at scale 8 means the same angle
// as one stored at scale 3.
func (d Dec) workMag() uint256.Int {
	var z uint256.Int
	z.Set(&d.mag)
	switch {
	case d.scale > workScale:
		z.SDiv(&z, pow10[d.scale-workScale])
	case d.scale < workScale:
		z.Mul(&z, pow10[workScale-d.scale])
	}
	return z
}

// beyondSeriesRange reports whether the normalized magnitude is too large for
// the in-range multiplication and division paths.
func (d Dec) beyondSeriesRange() bool {
	w := d.workMag()
	var a uint256.Int
	a.Abs(&w)
	return a.Gt(seriesMax)
}

// Add returns d + o at the larger of the two scales, saturating.
func (d Dec) Add(o Dec) Dec {
	s := maxScale(d.scale, o.scale)
	var a, b uint256.Int
	d.rescaled(&a, s)
	o.rescaled(&b, s)
	a.Add(&a, &b)
	return makeDec(&a, int(s))
}

// Sub returns d - o at the larger of the two scales, saturating.
func (d Dec) Sub(o Dec) Dec {
	s := maxScale(d.scale, o.scale)
	var a, b uint256.Int
	d.rescaled(&a, s)
	o.rescaled(&b, s)
	a.Sub(&a, &b)
	return makeDec(&a, int(s))
}

// Mul returns d * o at the sum of the two scales (normalized back into
// [MinScale, MaxScale] without changing the denoted number). Operands beyond
// the series range are combined in log domain: exp(ln(d) + ln(o)), which
// bounds the result to the Exp envelope instead of overflowing.
func (d Dec) Mul(o Dec) Dec {
	if d.beyondSeriesRange() || o.beyondSeriesRange() {
		return d.Ln().Add(o.Ln()).Exp()
	}
	var z uint256.Int
	z.Mul(&d.mag, &o.mag)
	return makeDec(&z, int(d.scale)+int(o.scale))
}

// Div returns d / o at the larger of the two scales. A zero or vanishing
// divisor (below 0.01 in normalized magnitude) yields the sign-correct
// saturation sentinel at d's scale rather than an error. Operands beyond the
// series range are combined in log domain: exp(ln(d) - ln(o)).
func (d Dec) Div(o Dec) Dec {
	ow := o.workMag()
	var oa uint256.Int
	oa.Abs(&ow)
	if oa.Lt(vanishing) {
		var z uint256.Int
		if d.mag.Sign() >= 0 {
			z.Set(maxMag)
		} else {
			z.Set(negMaxMag)
		}
		return makeDec(&z, int(d.scale))
	}
	if d.beyondSeriesRange() || o.beyondSeriesRange() {
		return d.Ln().Sub(o.Ln()).Exp()
	}
	s := maxScale(d.scale, o.scale)
	var a, b uint256.Int
	d.rescaled(&a, s)
	o.rescaled(&b, s)
	a.Mul(&a, pow10[s])
	a.SDiv(&a, &b)
	return makeDec(&a, int(s))
}

// Mod returns the remainder of d divided by o at their common scale. The
// sign follows the dividend and a zero modulus yields zero, so reductions
// on degenerate inputs stay total.
func (d Dec) Mod(o Dec) Dec {
	s := maxScale(d.scale, o.scale)
	var a, b uint256.Int
	d.rescaled(&a, s)
	o.rescaled(&b, s)
	if b.IsZero() {
		return Zero(s)
	}
	a.SMod(&a, &b)
	return makeDec(&a, int(s))
}

// Cmp compares the denoted numbers after rescaling both magnitudes to the
// common scale in 256-bit space, so no saturation can distort the result.
// This is the only meaningful way to order Decs of differing scales; == on
// Dec is bit identity, not numeric equality.
func (d Dec) Cmp(o Dec) int {
	s := maxScale(d.scale, o.scale)
	var a, b uint256.Int
	d.rescaled(&a, s)
	o.rescaled(&b, s)
	if a.Eq(&b) {
		return 0
	}
	if a.Slt(&b) {
		return -1
	}
	return 1
}

// Less reports d < o under Cmp.
func (d Dec) Less(o Dec) bool { return d.Cmp(o) < 0 }

// Eq reports numeric equality under Cmp.
func (d Dec) Eq(o Dec) bool { return d.Cmp(o) == 0 }

// Min returns the smaller of d and o under Cmp.
func (d Dec) Min(o Dec) Dec {
	if d.Cmp(o) <= 0 {
		return d
	}
	return o
}

// Max returns the larger of d and o under Cmp.
func (d Dec) Max(o Dec) Dec {
	if d.Cmp(o) >= 0 {
		return d
	}
	return o
}

// Float64 returns an approximate float for observability surfaces. Not part
// of the determinism contract.
func (d Dec) Float64() float64 {
	var a uint256.Int
	a.Abs(&d.mag)
	f, _ := new(big.Float).SetInt(a.ToBig()).Float64()
	f /= math.Pow10(int(d.scale))
	if d.mag.Sign() < 0 {
		return -f
	}
	return f
}

// String renders the denoted decimal, e.g. "-1.386".
func (d Dec) String() string {
	if d.scale == 0 {
		return d.mag.ToBig().String()
	}
	var a uint256.Int
	a.Abs(&d.mag)
	var q, r uint256.Int
	q.Div(&a, pow10[d.scale])
	r.Mod(&a, pow10[d.scale])
	sign := ""
	if d.mag.Sign() < 0 {
		sign = "-"
	}
	return fmt.Sprintf("%s%s.%0*d", sign, q.ToBig().String(), int(d.scale), r.Uint64())
}

func setInt64(z *uint256.Int, v int64) {
	if v >= 0 {
		z.SetUint64(uint64(v))
		return
	}
	z.SetUint64(uint64(-(v + 1)) + 1)
	z.Neg(z)
}

// toInt64 extracts a small signed wide value. Callers guarantee the magnitude
// fits; out-of-range input saturates.
func toInt64(z *uint256.Int) int64 {
	var a uint256.Int
	a.Abs(z)
	if !a.IsUint64() || a.Uint64() > math.MaxInt64 {
		if z.Sign() < 0 {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	v := int64(a.Uint64())
	if z.Sign() < 0 {
		return -v
	}
	return v
}

func maxScale(a, b uint8) uint8 {
	if a > b {
		return a
	}
	return b
}
