package kms

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/mgs2_tools/pack/geom"
	"github.com/mogaika/mgs2_tools/utils"
)

const (
	HEADER_SIZE       = 0x40
	MESH_SIZE         = 0x50
	VERTEX_GROUP_SIZE = 0x60
	VERTEX_SIZE       = 8
	NORMAL_SIZE       = 8
	UV_SIZE           = 4
	STREAM_ALIGN      = 0x10
	MAX_UV            = 3

	MESH_PAD_COUNT         = 7
	VERTEX_GROUP_PAD_COUNT = 7

	// A normal with this bit clear closes a triangle.
	NORMAL_OPEN_BIT      = 0x8000
	NORMAL_FLAGS_DEFAULT = 0x8fff

	MESH_FLAG_DEFAULT         = 1
	VERTEX_GROUP_FLAG_ROOT    = 760
	VERTEX_GROUP_FLAG_DEFAULT = 761
)

// Trace receives decoder tracing when set.
var Trace *utils.Logger

type Header struct {
	Type     uint32
	NumBones int32
	StrCode  uint32
	Min, Max mgl32.Vec3
	// Model origin, root meshes are placed relative to it.
	Pos mgl32.Vec3
}

// Vertex weight is the share of the owning mesh bone in 4.12 fixed point,
// the rest goes to the parent mesh bone.
type Vertex struct {
	Pos    [3]int16
	Weight int16
}

type Normal struct {
	Dir   [3]int16
	Flags uint16
}

func (n Normal) Closing() bool { return n.Flags&NORMAL_OPEN_BIT == 0 }

func (n *Normal) SetClosing(closing bool) {
	if closing {
		n.Flags &^= NORMAL_OPEN_BIT
	} else {
		n.Flags |= NORMAL_OPEN_BIT
	}
}

type UV [2]int16

type VertexGroup struct {
	Flag           uint32
	ColorMap       uint32
	SpecularMap    uint32
	EnvironmentMap uint32

	Vertices []Vertex
	Normals  []Normal
	// nil for channels the group does not carry
	UVs [MAX_UV][]UV

	// SourceVertex is filled by Build: the source vertex every stream
	// vertex was made of. It is not stored in the file.
	SourceVertex []int `yaml:"-"`
}

func (vg *VertexGroup) Closing() []bool {
	closing := make([]bool, len(vg.Normals))
	for i, n := range vg.Normals {
		closing[i] = n.Closing()
	}
	return closing
}

func (vg *VertexGroup) Positions() [][3]int16 {
	pos := make([][3]int16, len(vg.Vertices))
	for i, v := range vg.Vertices {
		pos[i] = v.Pos
	}
	return pos
}

type Mesh struct {
	Flag     uint32
	Min, Max mgl32.Vec3
	// Position relative to the parent mesh, or to the header origin for roots.
	Pos    mgl32.Vec3
	Parent int32

	VertexGroups []VertexGroup
}

type KMS struct {
	Header Header
	Meshes []Mesh
}

func (k *KMS) Parents() []int {
	parents := make([]int, len(k.Meshes))
	for i := range k.Meshes {
		parents[i] = int(k.Meshes[i].Parent)
	}
	return parents
}

func readVec3(bs *utils.BufStack) mgl32.Vec3 {
	return mgl32.Vec3{bs.ReadLF(), bs.ReadLF(), bs.ReadLF()}
}

func writeVec3(w *utils.BufWriter, v mgl32.Vec3) {
	w.WriteLF(v[0])
	w.WriteLF(v[1])
	w.WriteLF(v[2])
}

func checkZeros(bs *utils.BufStack, name string, count int) error {
	for i := 0; i < count; i++ {
		if v := bs.ReadLU32(); v != 0 {
			return utils.FormatViolationf("%s[%d] is 0x%x", name, i, v)
		}
	}
	return nil
}

func NewFromData(buf []byte) (*KMS, error) {
	bs := utils.NewBufStack("kms", buf)
	k := &KMS{}
	h := &k.Header
	h.Type = bs.ReadLU32()
	numMesh := int(bs.ReadLU32())
	h.NumBones = bs.ReadLI32()
	if err := checkZeros(bs, "header pad", 1); err != nil {
		return nil, err
	}
	h.StrCode = bs.ReadLU32()
	if err := checkZeros(bs, "header pad2", 2); err != nil {
		return nil, err
	}
	h.Min = readVec3(bs)
	h.Max = readVec3(bs)
	h.Pos = readVec3(bs)
	if err := bs.Err(); err != nil {
		return nil, err
	}
	if numMesh*MESH_SIZE > len(buf) {
		return nil, utils.FormatViolationf("%d meshes do not fit into 0x%x bytes", numMesh, len(buf))
	}
	Trace.Printf("[kms] type %d strcode 0x%x: %d meshes, %d bones", h.Type, h.StrCode, numMesh, h.NumBones)

	k.Meshes = make([]Mesh, numMesh)
	for i := range k.Meshes {
		mbs := bs.SubBuf("mesh", HEADER_SIZE+i*MESH_SIZE).SetSize(MESH_SIZE)
		if err := k.Meshes[i].parse(mbs, bs); err != nil {
			return nil, errors.Wrapf(err, "Mesh %d", i)
		}
	}
	if err := geom.CheckTree(k.Parents()); err != nil {
		return nil, errors.Wrapf(err, "Mesh hierarchy")
	}
	return k, nil
}

func (m *Mesh) parse(bs *utils.BufStack, file *utils.BufStack) error {
	m.Flag = bs.ReadLU32()
	numGroups := int(bs.ReadLU32())
	m.Min = readVec3(bs)
	m.Max = readVec3(bs)
	m.Pos = readVec3(bs)
	m.Parent = bs.ReadLI32()
	groupsOffset := int(bs.ReadLU32())
	if err := checkZeros(bs, "mesh pad", MESH_PAD_COUNT); err != nil {
		return err
	}
	if err := bs.Err(); err != nil {
		return err
	}
	if numGroups*VERTEX_GROUP_SIZE > len(file.Raw()) {
		return utils.FormatViolationf("%d vertex groups do not fit into file", numGroups)
	}

	m.VertexGroups = make([]VertexGroup, numGroups)
	for i := range m.VertexGroups {
		gbs := file.SubBuf("vertexgroup", groupsOffset+i*VERTEX_GROUP_SIZE).SetSize(VERTEX_GROUP_SIZE)
		if err := m.VertexGroups[i].parse(gbs, file); err != nil {
			return errors.Wrapf(err, "Vertex group %d", i)
		}
	}
	return nil
}

func (vg *VertexGroup) parse(bs *utils.BufStack, file *utils.BufStack) error {
	vg.Flag = bs.ReadLU32()
	numVertex := int(bs.ReadLU32())
	vg.ColorMap = bs.ReadLU32()
	if err := checkZeros(bs, "pad", 1); err != nil {
		return err
	}
	vg.SpecularMap = bs.ReadLU32()
	if err := checkZeros(bs, "pad2", 1); err != nil {
		return err
	}
	vg.EnvironmentMap = bs.ReadLU32()
	if err := checkZeros(bs, "pad3", 1); err != nil {
		return err
	}
	vertexOffset := int(bs.ReadLU32())
	if err := checkZeros(bs, "pad4", 1); err != nil {
		return err
	}
	normalOffset := int(bs.ReadLU32())
	if err := checkZeros(bs, "pad5", 1); err != nil {
		return err
	}
	var uvOffsets [MAX_UV]int
	for ch := range uvOffsets {
		uvOffsets[ch] = int(bs.ReadLU32())
		if ch < MAX_UV-1 {
			if err := checkZeros(bs, fmt.Sprintf("pad%d", 6+ch), 1); err != nil {
				return err
			}
		}
	}
	if err := checkZeros(bs, "pad8", VERTEX_GROUP_PAD_COUNT); err != nil {
		return err
	}
	if err := bs.Err(); err != nil {
		return err
	}
	if numVertex*UV_SIZE > len(file.Raw()) {
		return utils.FormatViolationf("%d vertices do not fit into file", numVertex)
	}

	vbs := file.SubBuf("vertices", vertexOffset)
	vg.Vertices = make([]Vertex, numVertex)
	for i := range vg.Vertices {
		v := &vg.Vertices[i]
		v.Pos = [3]int16{vbs.ReadLI16(), vbs.ReadLI16(), vbs.ReadLI16()}
		v.Weight = vbs.ReadLI16()
	}
	if err := vbs.Err(); err != nil {
		return err
	}

	nbs := file.SubBuf("normals", normalOffset)
	vg.Normals = make([]Normal, numVertex)
	for i := range vg.Normals {
		n := &vg.Normals[i]
		n.Dir = [3]int16{nbs.ReadLI16(), nbs.ReadLI16(), nbs.ReadLI16()}
		n.Flags = nbs.ReadLU16()
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
			uvs[i] = UV{ubs.ReadLI16(), ubs.ReadLI16()}
		}
		if err := ubs.Err(); err != nil {
			return err
		}
		vg.UVs[ch] = uvs
	}
	return nil
}

// Validate checks per group stream lengths and the mesh hierarchy.
func (k *KMS) Validate() error {
	if err := geom.CheckTree(k.Parents()); err != nil {
		return errors.Wrapf(err, "Mesh hierarchy")
	}
	for i := range k.Meshes {
		for j := range k.Meshes[i].VertexGroups {
			vg := &k.Meshes[i].VertexGroups[j]
			n := len(vg.Vertices)
			if len(vg.Normals) != n {
				return utils.DataInconsistencyf("mesh %d group %d: %d normals for %d vertices", i, j, len(vg.Normals), n)
			}
			for ch, uvs := range vg.UVs {
				if uvs != nil && len(uvs) != n {
					return utils.DataInconsistencyf("mesh %d group %d: uv%d has %d entries for %d vertices", i, j, ch, len(uvs), n)
				}
			}
		}
	}
	return nil
}

type streamKind int

const (
	streamVertices streamKind = iota
	streamNormals
	streamUV0
)

type groupOffsets struct {
	vertex, normal int
	uv             [MAX_UV]int
}

// layout places all streams after the descriptors in phase order: vertices of
// every group, then normals, then each uv channel. Every stream starts 16
// byte aligned, absent uv streams get offset 0.
func (k *KMS) layout() (groupsOffset []int, offsets [][]groupOffsets, size int) {
	numGroups := 0
	for i := range k.Meshes {
		numGroups += len(k.Meshes[i].VertexGroups)
	}

	pos := HEADER_SIZE + MESH_SIZE*len(k.Meshes)
	groupsOffset = make([]int, len(k.Meshes))
	offsets = make([][]groupOffsets, len(k.Meshes))
	for i := range k.Meshes {
		groupsOffset[i] = pos
		pos += VERTEX_GROUP_SIZE * len(k.Meshes[i].VertexGroups)
		offsets[i] = make([]groupOffsets, len(k.Meshes[i].VertexGroups))
	}

	place := func(kind streamKind) {
		for i := range k.Meshes {
			for j := range k.Meshes[i].VertexGroups {
				vg := &k.Meshes[i].VertexGroups[j]
				o := &offsets[i][j]
				switch {
				case kind == streamVertices:
					o.vertex = pos
					pos += VERTEX_SIZE * len(vg.Vertices)
				case kind == streamNormals:
					o.normal = pos
					pos += NORMAL_SIZE * len(vg.Normals)
				default:
					ch := int(kind - streamUV0)
					if vg.UVs[ch] == nil {
						continue
					}
					o.uv[ch] = pos
					pos += UV_SIZE * len(vg.UVs[ch])
				}
				pos = utils.AlignUp(pos, STREAM_ALIGN)
			}
		}
	}
	place(streamVertices)
	place(streamNormals)
	for ch := 0; ch < MAX_UV; ch++ {
		place(streamUV0 + streamKind(ch))
	}
	return groupsOffset, offsets, pos
}

func (k *KMS) MarshalToBinary() ([]byte, error) {
	if err := k.Validate(); err != nil {
		return nil, err
	}
	groupsOffset, offsets, size := k.layout()

	w := utils.NewBufWriter(size)
	h := &k.Header
	w.WriteLU32(h.Type)
	w.WriteLU32(uint32(len(k.Meshes)))
	w.WriteLI32(h.NumBones)
	w.WriteLU32(0)
	w.WriteLU32(h.StrCode)
	w.Zero(2 * 4)
	writeVec3(w, h.Min)
	writeVec3(w, h.Max)
	writeVec3(w, h.Pos)

	for i := range k.Meshes {
		m := &k.Meshes[i]
		w.WriteLU32(m.Flag)
		w.WriteLU32(uint32(len(m.VertexGroups)))
		writeVec3(w, m.Min)
		writeVec3(w, m.Max)
		writeVec3(w, m.Pos)
		w.WriteLI32(m.Parent)
		w.WriteLU32(uint32(groupsOffset[i]))
		w.Zero(MESH_PAD_COUNT * 4)
	}

	for i := range k.Meshes {
		for j := range k.Meshes[i].VertexGroups {
			vg := &k.Meshes[i].VertexGroups[j]
			o := &offsets[i][j]
			for _, v := range []uint32{
				vg.Flag, uint32(len(vg.Vertices)), vg.ColorMap, 0,
				vg.SpecularMap, 0, vg.EnvironmentMap, 0,
				uint32(o.vertex), 0, uint32(o.normal), 0,
				uint32(o.uv[0]), 0, uint32(o.uv[1]), 0, uint32(o.uv[2]),
			} {
				w.WriteLU32(v)
			}
			w.Zero(VERTEX_GROUP_PAD_COUNT * 4)
		}
	}

	for i := range k.Meshes {
		for j := range k.Meshes[i].VertexGroups {
			vg := &k.Meshes[i].VertexGroups[j]
			o := &offsets[i][j]

			w.Seek(o.vertex)
			for _, v := range vg.Vertices {
				for _, c := range v.Pos {
					w.WriteLI16(c)
				}
				w.WriteLI16(v.Weight)
			}
			w.Seek(o.normal)
			for _, n := range vg.Normals {
				for _, c := range n.Dir {
					w.WriteLI16(c)
				}
				w.WriteLU16(n.Flags)
			}
			for ch, uvs := range vg.UVs {
				if uvs == nil {
					continue
				}
				w.Seek(o.uv[ch])
				for _, uv := range uvs {
					w.WriteLI16(uv[0])
					w.WriteLI16(uv[1])
				}
			}
		}
	}
	w.Seek(size)
	return w.Bytes(), nil
}
