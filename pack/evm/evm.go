package evm

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/mgs2_tools/pack/geom"
	"github.com/mogaika/mgs2_tools/utils"
)

const (
	HEADER_SIZE  = 0x40
	BONE_SIZE    = 0x40
	MESH_SIZE    = 0x70
	VERTEX_SIZE  = 8
	NORMAL_SIZE  = 8
	UV_SIZE      = 8
	WEIGHT_SIZE  = 8
	STREAM_ALIGN = 0x10
	MAX_UV       = 3

	SKIN_TABLE_SIZE  = 8
	SKIN_SLOT_UNUSED = 0xff
	// Weight records keep the skin slot shifted by this.
	SKIN_SLOT_SHIFT = 2
	MAX_INFLUENCES  = 4
	WEIGHT_TOTAL    = 128

	MESH_PAD_COUNT = 5

	// A vertex with this bit clear closes a triangle.
	VERTEX_OPEN_BIT      = 0x8000
	VERTEX_FLAGS_DEFAULT = 0x8fff
	UV_AUX_DEFAULT       = 0x1000
	MESH_FLAG_DEFAULT    = 760
)

// Trace receives decoder tracing when set.
var Trace *utils.Logger

type Header struct {
	NumUnknown uint32
	Min, Max   mgl32.Vec3
	StrCode    uint32
	Flag       uint32
}

// Bone positions are kept in file units, 16 per model unit.
type Bone struct {
	Parent   int32
	Relative mgl32.Vec3
	World    mgl32.Vec3
	Min, Max mgl32.Vec4
}

type Vertex struct {
	Pos   [3]int16
	Flags uint16
}

func (v Vertex) Closing() bool { return v.Flags&VERTEX_OPEN_BIT == 0 }

func (v *Vertex) SetClosing(closing bool) {
	if closing {
		v.Flags &^= VERTEX_OPEN_BIT
	} else {
		v.Flags |= VERTEX_OPEN_BIT
	}
}

type Normal struct {
	Dir [3]int16
	Pad int16
}

type UV struct {
	Coord [2]int16
	Aux   uint32
}

// Weights pairs up to four weights out of WEIGHT_TOTAL with skin table slots,
// heaviest first.
type Weights struct {
	Weights [MAX_INFLUENCES]uint8
	Slots   [MAX_INFLUENCES]uint8
}

type SkinTable [SKIN_TABLE_SIZE]uint8

// Mesh is one material slot of the model.
type Mesh struct {
	Flag           uint32
	ColorMap       uint32
	SpecularMap    uint32
	EnvironmentMap uint32
	// Number of weight pairs used by the vertices.
	NumSkin   uint32
	SkinTable SkinTable

	Vertices []Vertex
	Normals  []Normal
	UVs      [MAX_UV][]UV
	Weights  []Weights

	// SourceVertex is filled by Build: the source vertex every stream
	// vertex was made of. It is not stored in the file.
	SourceVertex []int `yaml:"-"`
}

func (m *Mesh) Closing() []bool {
	closing := make([]bool, len(m.Vertices))
	for i, v := range m.Vertices {
		closing[i] = v.Closing()
	}
	return closing
}

func (m *Mesh) Positions() [][3]int16 {
	pos := make([][3]int16, len(m.Vertices))
	for i, v := range m.Vertices {
		pos[i] = v.Pos
	}
	return pos
}

type EVM struct {
	Header Header
	Bones  []Bone
	Meshes []Mesh
}

func (e *EVM) Parents() []int {
	parents := make([]int, len(e.Bones))
	for i := range e.Bones {
		parents[i] = int(e.Bones[i].Parent)
	}
	return parents
}

func readVec3(bs *utils.BufStack) mgl32.Vec3 {
	return mgl32.Vec3{bs.ReadLF(), bs.ReadLF(), bs.ReadLF()}
}

func readVec4(bs *utils.BufStack) mgl32.Vec4 {
	return mgl32.Vec4{bs.ReadLF(), bs.ReadLF(), bs.ReadLF(), bs.ReadLF()}
}

func writeVec(w *utils.BufWriter, v []float32) {
	for _, f := range v {
		w.WriteLF(f)
	}
}

func checkZeros(bs *utils.BufStack, name string, count int) error {
	for i := 0; i < count; i++ {
		if v := bs.ReadLU32(); v != 0 {
			return utils.FormatViolationf("%s[%d] is 0x%x", name, i, v)
		}
	}
	return nil
}

func NewFromData(buf []byte) (*EVM, error) {
	bs := utils.NewBufStack("evm", buf)
	e := &EVM{}
	h := &e.Header
	h.NumUnknown = bs.ReadLU32()
	numBones := int(bs.ReadLU32())
	h.Min = readVec3(bs)
	h.Max = readVec3(bs)
	h.StrCode = bs.ReadLU32()
	if err := checkZeros(bs, "header pad", 1); err != nil {
		return nil, err
	}
	h.Flag = bs.ReadLU32()
	numMeshes := int(bs.ReadLI32())
	meshOffset := int(bs.ReadLU32())
	if err := checkZeros(bs, "header pad2", 3); err != nil {
		return nil, err
	}
	if err := bs.Err(); err != nil {
		return nil, err
	}
	if numBones*BONE_SIZE > len(buf) || numMeshes < 0 || numMeshes*MESH_SIZE > len(buf) {
		return nil, utils.FormatViolationf("%d bones and %d meshes do not fit into 0x%x bytes", numBones, numMeshes, len(buf))
	}
	Trace.Printf("[evm] strcode 0x%x flag %d: %d bones, %d meshes at 0x%x", h.StrCode, h.Flag, numBones, numMeshes, meshOffset)

	e.Bones = make([]Bone, numBones)
	for i := range e.Bones {
		b := &e.Bones[i]
		bbs := bs.SubBuf("bone", HEADER_SIZE+i*BONE_SIZE).SetSize(BONE_SIZE)
		if err := checkZeros(bbs, "bone pad", 1); err != nil {
			return nil, errors.Wrapf(err, "Bone %d", i)
		}
		b.Parent = bbs.ReadLI32()
		b.Relative = readVec3(bbs)
		b.World = readVec3(bbs)
		b.Min = readVec4(bbs)
		b.Max = readVec4(bbs)
		if err := bbs.Err(); err != nil {
			return nil, errors.Wrapf(err, "Bone %d", i)
		}
	}
	if err := geom.CheckTree(e.Parents()); err != nil {
		return nil, errors.Wrapf(err, "Bone hierarchy")
	}

	e.Meshes = make([]Mesh, numMeshes)
	for i := range e.Meshes {
		mbs := bs.SubBuf("mesh", meshOffset+i*MESH_SIZE).SetSize(MESH_SIZE)
		if err := e.Meshes[i].parse(mbs, bs); err != nil {
			return nil, errors.Wrapf(err, "Mesh %d", i)
		}
	}
	return e, nil
}

func (m *Mesh) parse(bs *utils.BufStack, file *utils.BufStack) error {
	m.Flag = bs.ReadLU32()
	if err := checkZeros(bs, "pad", 1); err != nil {
		return err
	}
	m.ColorMap = bs.ReadLU32()
	if err := checkZeros(bs, "pad2", 1); err != nil {
		return err
	}
	m.SpecularMap = bs.ReadLU32()
	if err := checkZeros(bs, "pad3", 1); err != nil {
		return err
	}
	m.EnvironmentMap = bs.ReadLU32()
	if err := checkZeros(bs, "pad4", 1); err != nil {
		return err
	}
	numVertex := int(bs.ReadLU32())
	m.NumSkin = bs.ReadLU32()
	copy(m.SkinTable[:], bs.Read(SKIN_TABLE_SIZE))

	var offsets [3 + MAX_UV]int
	for i := range offsets {
		offsets[i] = int(bs.ReadLU32())
		if i < len(offsets)-1 {
			if err := checkZeros(bs, fmt.Sprintf("pad%d", 5+i), 1); err != nil {
				return err
			}
		}
	}
	vertexOffset, normalOffset := offsets[0], offsets[1]
	uvOffsets := offsets[2 : 2+MAX_UV]
	weightOffset := offsets[2+MAX_UV]
	if err := checkZeros(bs, "pad10", MESH_PAD_COUNT); err != nil {
		return err
	}
	if err := bs.Err(); err != nil {
		return err
	}
	if m.NumSkin > MAX_INFLUENCES {
		return utils.FormatViolationf("%d skin pairs per vertex, at most %d fit", m.NumSkin, MAX_INFLUENCES)
	}
	if numVertex*VERTEX_SIZE > len(file.Raw()) {
		return utils.FormatViolationf("%d vertices do not fit into file", numVertex)
	}

	vbs := file.SubBuf("vertices", vertexOffset)
	m.Vertices = make([]Vertex, numVertex)
	for i := range m.Vertices {
		v := &m.Vertices[i]
		v.Pos = [3]int16{vbs.ReadLI16(), vbs.ReadLI16(), vbs.ReadLI16()}
		v.Flags = vbs.ReadLU16()
	}
	if err := vbs.Err(); err != nil {
		return err
	}

	nbs := file.SubBuf("normals", normalOffset)
	m.Normals = make([]Normal, numVertex)
	for i := range m.Normals {
		n := &m.Normals[i]
		n.Dir = [3]int16{nbs.ReadLI16(), nbs.ReadLI16(), nbs.ReadLI16()}
		n.Pad = nbs.ReadLI16()
	}
	if err := nbs.Err(); err != nil {
		return err
	}

	for ch, off := range uvOffsets {
		if off == 0 {
			continue
		}
		ubs := file.SubBuf(fmt.Sprintf("uv%d", ch), off)
		uvs := make([]UV, numVertex)
		for i := range uvs {
			uvs[i].Coord = [2]int16{ubs.ReadLI16(), ubs.ReadLI16()}
			uvs[i].Aux = ubs.ReadLU32()
		}
		if err := ubs.Err(); err != nil {
			return err
		}
		m.UVs[ch] = uvs
	}

	if weightOffset != 0 {
		wbs := file.SubBuf("weights", weightOffset)
		m.Weights = make([]Weights, numVertex)
		for i := range m.Weights {
			copy(m.Weights[i].Weights[:], wbs.Read(MAX_INFLUENCES))
			copy(m.Weights[i].Slots[:], wbs.Read(MAX_INFLUENCES))
		}
		if err := wbs.Err(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks stream lengths, skin table sizes and the bone hierarchy.
func (e *EVM) Validate() error {
	if err := geom.CheckTree(e.Parents()); err != nil {
		return errors.Wrapf(err, "Bone hierarchy")
	}
	for i := range e.Meshes {
		m := &e.Meshes[i]
		n := len(m.Vertices)
		if len(m.Normals) != n {
			return utils.DataInconsistencyf("mesh %d: %d normals for %d vertices", i, len(m.Normals), n)
		}
		for ch, uvs := range m.UVs {
			if uvs != nil && len(uvs) != n {
				return utils.DataInconsistencyf("mesh %d: uv%d has %d entries for %d vertices", i, ch, len(uvs), n)
			}
		}
		if m.Weights != nil && len(m.Weights) != n {
			return utils.DataInconsistencyf("mesh %d: %d weights for %d vertices", i, len(m.Weights), n)
		}
		if m.NumSkin > MAX_INFLUENCES {
			return utils.DataInconsistencyf("mesh %d: %d skin pairs per vertex, at most %d fit", i, m.NumSkin, MAX_INFLUENCES)
		}
	}
	return nil
}

type streamOffsets struct {
	vertex, normal, weight int
	uv                     [MAX_UV]int
}

// layout puts the bones and mesh records first, then streams in phase
// order: vertices of every mesh, normals, each uv channel, weights. Every
// stream starts 16 byte aligned and absent streams get offset 0.
func (e *EVM) layout() (meshOffset int, offsets []streamOffsets, size int) {
	meshOffset = HEADER_SIZE + BONE_SIZE*len(e.Bones)
	pos := utils.AlignUp(meshOffset+MESH_SIZE*len(e.Meshes), STREAM_ALIGN)
	offsets = make([]streamOffsets, len(e.Meshes))

	place := func(present func(m *Mesh) bool, elemSize int, count func(m *Mesh) int, set func(o *streamOffsets, off int)) {
		for i := range e.Meshes {
			m := &e.Meshes[i]
			if !present(m) {
				continue
			}
			set(&offsets[i], pos)
			pos = utils.AlignUp(pos+elemSize*count(m), STREAM_ALIGN)
		}
	}
	always := func(m *Mesh) bool { return true }
	numVertex := func(m *Mesh) int { return len(m.Vertices) }

	place(always, VERTEX_SIZE, numVertex, func(o *streamOffsets, off int) { o.vertex = off })
	place(always, NORMAL_SIZE, numVertex, func(o *streamOffsets, off int) { o.normal = off })
	for ch := 0; ch < MAX_UV; ch++ {
		ch := ch
		place(func(m *Mesh) bool { return m.UVs[ch] != nil }, UV_SIZE, numVertex,
			func(o *streamOffsets, off int) { o.uv[ch] = off })
	}
	place(func(m *Mesh) bool { return m.Weights != nil }, WEIGHT_SIZE, numVertex,
		func(o *streamOffsets, off int) { o.weight = off })
	return meshOffset, offsets, pos
}

func (e *EVM) MarshalToBinary() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	meshOffset, offsets, size := e.layout()

	w := utils.NewBufWriter(size)
	h := &e.Header
	w.WriteLU32(h.NumUnknown)
	w.WriteLU32(uint32(len(e.Bones)))
	writeVec(w, h.Min[:])
	writeVec(w, h.Max[:])
	w.WriteLU32(h.StrCode)
	w.WriteLU32(0)
	w.WriteLU32(h.Flag)
	w.WriteLI32(int32(len(e.Meshes)))
	w.WriteLU32(uint32(meshOffset))
	w.Zero(3 * 4)

	for _, b := range e.Bones {
		w.WriteLU32(0)
		w.WriteLI32(b.Parent)
		writeVec(w, b.Relative[:])
		writeVec(w, b.World[:])
		writeVec(w, b.Min[:])
		writeVec(w, b.Max[:])
	}

	for i := range e.Meshes {
		m := &e.Meshes[i]
		o := &offsets[i]
		for _, v := range []uint32{
			m.Flag, 0, m.ColorMap, 0, m.SpecularMap, 0, m.EnvironmentMap, 0,
			uint32(len(m.Vertices)), m.NumSkin,
		} {
			w.WriteLU32(v)
		}
		w.Write(m.SkinTable[:])
		for _, v := range []uint32{
			uint32(o.vertex), 0, uint32(o.normal), 0,
			uint32(o.uv[0]), 0, uint32(o.uv[1]), 0, uint32(o.uv[2]), 0,
			uint32(o.weight),
		} {
			w.WriteLU32(v)
		}
		w.Zero(MESH_PAD_COUNT * 4)
	}

	for i := range e.Meshes {
		m := &e.Meshes[i]
		o := &offsets[i]
		w.Seek(o.vertex)
		for _, v := range m.Vertices {
			for _, c := range v.Pos {
				w.WriteLI16(c)
			}
			w.WriteLU16(v.Flags)
		}
		w.Seek(o.normal)
		for _, n := range m.Normals {
			for _, c := range n.Dir {
				w.WriteLI16(c)
			}
			w.WriteLI16(n.Pad)
		}
		for ch, uvs := range m.UVs {
			if uvs == nil {
				continue
			}
			w.Seek(o.uv[ch])
			for _, uv := range uvs {
				w.WriteLI16(uv.Coord[0])
				w.WriteLI16(uv.Coord[1])
				w.WriteLU32(uv.Aux)
			}
		}
		if m.Weights != nil {
			w.Seek(o.weight)
			for _, wt := range m.Weights {
				w.Write(wt.Weights[:])
				w.Write(wt.Slots[:])
			}
		}
	}
	w.Seek(size)
	return w.Bytes(), nil
}
