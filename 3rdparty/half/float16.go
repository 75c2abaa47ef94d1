// Package half is an IEEE 754 binary16 half precision format.
//
// Conversion keeps subnormals and rounds to nearest even. NaN payloads are
// truncated to the top 10 mantissa bits but always stay NaN.
package half

import "math"

// A Float16 represents a 16-bit floating point number.
type Float16 uint16

// NewFloat16 allocates and returns a new Float16 set to f.
func NewFloat16(f float32) Float16 {
	i := math.Float32bits(f)
	sign := uint16(i>>16) & 0x8000
	exp := int((i >> 23) & 0xff)
	frac := i & 0x7fffff

	if exp == 0xff {
		if frac != 0 {
			return Float16(sign | 0x7e00 | uint16(frac>>13))
		}
		return Float16(sign | 0x7c00)
	}

	exp16 := exp - 127 + 15
	if exp16 >= 0x1f {
		return Float16(sign | 0x7c00)
	}

	if exp16 <= 0 {
		if exp16 < -10 {
			return Float16(sign)
		}
		full := frac | 0x800000
		shift := uint(14 - exp16)
		h := full >> shift
		rem := full & (1<<shift - 1)
		halfway := uint32(1) << (shift - 1)
		if rem > halfway || (rem == halfway && h&1 == 1) {
			h++
		}
		return Float16(sign | uint16(h))
	}

	h := uint32(exp16)<<10 | frac>>13
	rem := frac & 0x1fff
	if rem > 0x1000 || (rem == 0x1000 && h&1 == 1) {
		h++
	}
	return Float16(sign | uint16(h))
}

// Float32 returns the float32 representation of f.
func (f Float16) Float32() float32 {
	sign := uint32(f&0x8000) << 16
	exp := uint32(f>>10) & 0x1f
	frac := uint32(f & 0x3ff)

	switch exp {
	case 0:
		v := float32(frac) * (1.0 / (1 << 24))
		if sign != 0 {
			v = -v
		}
		return v
	case 0x1f:
		return math.Float32frombits(sign | 0x7f800000 | frac<<13)
	}
	return math.Float32frombits(sign | (exp+127-15)<<23 | frac<<13)
}

func (f Float16) IsNaN() bool {
	return f&0x7c00 == 0x7c00 && f&0x3ff != 0
}
