package cmdl

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/mgs2_tools/3rdparty/half"
	"github.com/mogaika/mgs2_tools/pack/geom"
	"github.com/mogaika/mgs2_tools/utils"
)

const (
	TAG_POSITION = "POS0"
	TAG_NORMAL   = "NRM0"
	TAG_INDEX    = "OIDX"
	TAG_UV_BASE  = "TEX"
	MAX_UV       = 3
)

// SectionData is a decoded section payload, one element per vertex.
type SectionData interface {
	ElementSize() int
	Len() int
	parse(bs *utils.BufStack, count int) error
	marshal(w *utils.BufWriter)
}

// PositionSection is stored as vec4 with w fixed to 1.0.
type PositionSection struct {
	Positions []mgl32.Vec3
}

func (s *PositionSection) ElementSize() int { return 0x10 }
func (s *PositionSection) Len() int         { return len(s.Positions) }

func (s *PositionSection) parse(bs *utils.BufStack, count int) error {
	s.Positions = make([]mgl32.Vec3, count)
	for i := range s.Positions {
		s.Positions[i] = mgl32.Vec3{bs.ReadLF(), bs.ReadLF(), bs.ReadLF()}
		if w := bs.ReadLF(); w != 1.0 {
			return utils.FormatViolationf("position %d has w %v", i, w)
		}
	}
	return bs.Err()
}

func (s *PositionSection) marshal(w *utils.BufWriter) {
	for _, p := range s.Positions {
		w.WriteLF(p[0])
		w.WriteLF(p[1])
		w.WriteLF(p[2])
		w.WriteLF(1.0)
	}
}

// NormalSection keeps the packed 11/11/10 words so unchanged files write back
// bit exact.
type NormalSection struct {
	Packed []uint32
}

func (s *NormalSection) ElementSize() int { return 4 }
func (s *NormalSection) Len() int         { return len(s.Packed) }

func (s *NormalSection) parse(bs *utils.BufStack, count int) error {
	s.Packed = make([]uint32, count)
	for i := range s.Packed {
		s.Packed[i] = bs.ReadLU32()
	}
	return bs.Err()
}

func (s *NormalSection) marshal(w *utils.BufWriter) {
	for _, n := range s.Packed {
		w.WriteLU32(n)
	}
}

func (s *NormalSection) Normals() []mgl32.Vec3 {
	r := make([]mgl32.Vec3, len(s.Packed))
	for i, n := range s.Packed {
		r[i] = geom.DecodeNormal(n)
	}
	return r
}

type UVSection struct {
	Channel int
	UV      [][2]half.Float16
}

func (s *UVSection) ElementSize() int { return 4 }
func (s *UVSection) Len() int         { return len(s.UV) }

func (s *UVSection) parse(bs *utils.BufStack, count int) error {
	s.UV = make([][2]half.Float16, count)
	for i := range s.UV {
		s.UV[i][0] = half.Float16(bs.ReadLU16())
		s.UV[i][1] = half.Float16(bs.ReadLU16())
	}
	return bs.Err()
}

func (s *UVSection) marshal(w *utils.BufWriter) {
	for _, uv := range s.UV {
		w.WriteLU16(uint16(uv[0]))
		w.WriteLU16(uint16(uv[1]))
	}
}

// Coords returns texture coordinates with v back in bottom-up order.
func (s *UVSection) Coords() []mgl32.Vec2 {
	r := make([]mgl32.Vec2, len(s.UV))
	for i, uv := range s.UV {
		r[i] = mgl32.Vec2{uv[0].Float32(), 1 - uv[1].Float32()}
	}
	return r
}

// IndexSection maps every vertex back to the skinned mesh vertex it was
// made of.
type IndexSection struct {
	Indexes []uint32
}

func (s *IndexSection) ElementSize() int { return 4 }
func (s *IndexSection) Len() int         { return len(s.Indexes) }

func (s *IndexSection) parse(bs *utils.BufStack, count int) error {
	s.Indexes = make([]uint32, count)
	for i := range s.Indexes {
		s.Indexes[i] = bs.ReadLU32()
	}
	return bs.Err()
}

func (s *IndexSection) marshal(w *utils.BufWriter) {
	for _, idx := range s.Indexes {
		w.WriteLU32(idx)
	}
}

// newSectionData picks the payload variant for a tag.
func newSectionData(tag string) (SectionData, error) {
	switch tag {
	case TAG_POSITION:
		return &PositionSection{}, nil
	case TAG_NORMAL:
		return &NormalSection{}, nil
	case TAG_INDEX:
		return &IndexSection{}, nil
	}
	if len(tag) == 4 && tag[:3] == TAG_UV_BASE && tag[3] >= '0' && tag[3] < '0'+MAX_UV {
		return &UVSection{Channel: int(tag[3] - '0')}, nil
	}
	return nil, utils.FormatViolationf("unknown section tag %q", tag)
}

func UVTag(channel int) string {
	return TAG_UV_BASE + string(rune('0'+channel))
}

func packUV(uv mgl32.Vec2) [2]half.Float16 {
	return [2]half.Float16{half.NewFloat16(uv[0]), half.NewFloat16(1 - uv[1])}
}

func isFinite(v mgl32.Vec3) bool {
	for _, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return false
		}
	}
	return true
}
