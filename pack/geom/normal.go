package geom

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Packed normal layout, low bits first: 11 bits x, 11 bits y, 10 bits z.
var normalFieldBits = [3]uint{11, 11, 10}

func normalFieldShift(i int) uint {
	var shift uint
	for j := 0; j < i; j++ {
		shift += normalFieldBits[j]
	}
	return shift
}

func normalFieldMax(bits uint) int32 {
	return 1<<(bits-1) - 1
}

func DecodeNormal(packed uint32) mgl32.Vec3 {
	var n mgl32.Vec3
	for i, bits := range normalFieldBits {
		raw := int32(packed>>normalFieldShift(i)) & (1<<bits - 1)
		if raw&(1<<(bits-1)) != 0 {
			raw -= 1 << bits
		}
		n[i] = float32(raw) / float32(normalFieldMax(bits))
	}
	return n
}

// EncodeNormal rounds every component to the nearest step and clamps it to
// the field range.
func EncodeNormal(n mgl32.Vec3) uint32 {
	var packed uint32
	for i, bits := range normalFieldBits {
		max := normalFieldMax(bits)
		v := int32(Round(n[i] * float32(max)))
		if v > max {
			v = max
		} else if v < -max-1 {
			v = -max - 1
		}
		if v < 0 {
			v += 1 << bits
		}
		packed |= uint32(v) << normalFieldShift(i)
	}
	return packed
}
