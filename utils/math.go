package utils

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// BBox tracks min/max corners of a point set.
type BBox struct {
	Min, Max mgl32.Vec3
	empty    bool
}

func NewBBox() *BBox {
	return &BBox{
		Min:   mgl32.Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32},
		Max:   mgl32.Vec3{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32},
		empty: true,
	}
}

func (b *BBox) Add(v mgl32.Vec3) {
	b.empty = false
	for i := range v {
		if v[i] < b.Min[i] {
			b.Min[i] = v[i]
		}
		if v[i] > b.Max[i] {
			b.Max[i] = v[i]
		}
	}
}

func (b *BBox) Empty() bool {
	return b.empty
}

// SameXYZ compares two quantized points component by component.
func SameXYZ(a, b [3]int16) bool {
	return a[0] == b[0] && a[1] == b[1] && a[2] == b[2]
}
