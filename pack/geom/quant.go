package geom

import (
	"math"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/mgs2_tools/utils"
)

const (
	// Normals and uvs of skinned meshes are 4.12 fixed point.
	UnitScale = 4096
	// Articulated meshes store positions in 1/16 units.
	EVMPositionScale = 16
	KMSPositionScale = 1
)

// Round rounds half away from zero.
func Round(f float32) float32 {
	t := math32.Trunc(f)
	if math32.Abs(f-t) >= 0.5 {
		if math32.Signbit(f) {
			t -= 1
		} else {
			t += 1
		}
	}
	return t
}

// Quantize16 converts f*scale to a signed 16-bit integer. Values that do not
// fit are reported instead of being clamped.
func Quantize16(f float32, scale float32) (int16, error) {
	v := Round(f * scale)
	if v != v || v < math.MinInt16 || v > math.MaxInt16 {
		return 0, utils.DataInconsistencyf("value %v scaled by %v does not fit into int16", f, scale)
	}
	return int16(v), nil
}

func Quantize16Vec(v mgl32.Vec3, scale float32) ([3]int16, error) {
	var r [3]int16
	for i := range v {
		q, err := Quantize16(v[i], scale)
		if err != nil {
			return r, err
		}
		r[i] = q
	}
	return r, nil
}

func Dequantize16Vec(v [3]int16, scale float32) mgl32.Vec3 {
	return mgl32.Vec3{float32(v[0]) / scale, float32(v[1]) / scale, float32(v[2]) / scale}
}

// EncodeUV stores u as is and flips v, both in 4.12 fixed point.
func EncodeUV(uv mgl32.Vec2) ([2]int16, error) {
	u, err := Quantize16(uv[0], UnitScale)
	if err != nil {
		return [2]int16{}, err
	}
	v, err := Quantize16(1-uv[1], UnitScale)
	if err != nil {
		return [2]int16{}, err
	}
	return [2]int16{u, v}, nil
}

func DecodeUV(uv [2]int16) mgl32.Vec2 {
	return mgl32.Vec2{float32(uv[0]) / UnitScale, 1 - float32(uv[1])/UnitScale}
}

// Stored normals point inwards.
func EncodeSkinnedNormal(n mgl32.Vec3) ([3]int16, error) {
	return Quantize16Vec(n.Mul(-1), UnitScale)
}

func DecodeSkinnedNormal(n [3]int16) mgl32.Vec3 {
	return Dequantize16Vec(n, UnitScale).Mul(-1)
}
