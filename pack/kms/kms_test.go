package kms

import (
	"encoding/binary"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/mgs2_tools/pack/geom"
	"github.com/mogaika/mgs2_tools/utils"
)

var up = [3]mgl32.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}}

func quadMesh(world mgl32.Vec3, parent int) SourceMesh {
	uv := [][3]mgl32.Vec2{{{0, 0}, {0.5, 0.25}, {1, 1}}}
	return SourceMesh{
		World:  world,
		Parent: parent,
		Positions: []mgl32.Vec3{
			world.Add(mgl32.Vec3{0, 0, 0}), world.Add(mgl32.Vec3{8, 0, 0}),
			world.Add(mgl32.Vec3{0, 8, 0}), world.Add(mgl32.Vec3{8, 8, 0}),
		},
		Weights:   []float32{1, 0.5, 0.25, 1},
		Materials: []SourceMaterial{{ColorMap: 0x1234}},
		Polygons: []geom.Polygon{
			{Vertices: []int{0, 1, 2}, Normals: up, UVs: uv},
			{Vertices: []int{2, 1, 3}, Normals: up, UVs: uv},
		},
	}
}

func twoMeshSource() Source {
	return Source{
		Type:    1,
		StrCode: 0xabcd,
		Pos:     mgl32.Vec3{1, 2, 3},
		Meshes: []SourceMesh{
			quadMesh(mgl32.Vec3{11, 2, 3}, -1),
			quadMesh(mgl32.Vec3{16, 2, 3}, 0),
		},
	}
}

func TestWorldPosition(t *testing.T) {
	k := &KMS{
		Header: Header{Pos: mgl32.Vec3{1, 2, 3}},
		Meshes: []Mesh{
			{Parent: -1, Pos: mgl32.Vec3{10, 0, 0}},
			{Parent: 0, Pos: mgl32.Vec3{5, 0, 0}},
		},
	}
	pos, err := k.WorldPosition(1)
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec3{16, 2, 3}, pos)

	k.Meshes[0].Parent = 1
	_, err = k.WorldPosition(1)
	assert.True(t, errors.Is(err, utils.ErrDataInconsistency))
}

func TestBuild(t *testing.T) {
	k, err := Build(twoMeshSource())
	require.NoError(t, err)

	assert.Equal(t, int32(2), k.Header.NumBones)
	assert.Equal(t, mgl32.Vec3{10, 0, 0}, k.Meshes[0].Pos)
	assert.Equal(t, mgl32.Vec3{5, 0, 0}, k.Meshes[1].Pos)
	assert.Equal(t, uint32(MESH_FLAG_DEFAULT), k.Meshes[0].Flag)
	assert.Equal(t, uint32(VERTEX_GROUP_FLAG_ROOT), k.Meshes[0].VertexGroups[0].Flag)
	assert.Equal(t, uint32(VERTEX_GROUP_FLAG_DEFAULT), k.Meshes[1].VertexGroups[0].Flag)
	assert.Equal(t, mgl32.Vec3{8, 8, 0}, k.Meshes[1].Max)

	vg := k.Meshes[0].VertexGroups[0]
	assert.Equal(t, []int{0, 2, 1, 3}, vg.SourceVertex)
	assert.Equal(t, []bool{false, false, true, true}, vg.Closing())
	assert.Equal(t, Vertex{Pos: [3]int16{0, 8, 0}, Weight: 1024}, vg.Vertices[1])
	assert.Equal(t, Normal{Dir: [3]int16{0, 0, -4096}, Flags: NORMAL_FLAGS_DEFAULT}, vg.Normals[0])
	assert.Equal(t, uint16(NORMAL_FLAGS_DEFAULT&^NORMAL_OPEN_BIT), vg.Normals[3].Flags)
	assert.Equal(t, UV{4096, 0}, vg.UVs[0][1])
	assert.Nil(t, vg.UVs[1])

	src := twoMeshSource()
	src.NumBones = 21
	k, err = Build(src)
	require.NoError(t, err)
	assert.Equal(t, int32(21), k.Header.NumBones)
}

func TestRoundTrip(t *testing.T) {
	k, err := Build(twoMeshSource())
	require.NoError(t, err)
	raw, err := k.MarshalToBinary()
	require.NoError(t, err)

	back, err := NewFromData(raw)
	require.NoError(t, err)
	for i := range k.Meshes {
		for j := range k.Meshes[i].VertexGroups {
			k.Meshes[i].VertexGroups[j].SourceVertex = nil
		}
	}
	assert.Equal(t, k, back)

	again, err := back.MarshalToBinary()
	require.NoError(t, err)
	assert.Equal(t, raw, again)
}

func TestStreamLayout(t *testing.T) {
	k, err := Build(twoMeshSource())
	require.NoError(t, err)
	k.Meshes[1].VertexGroups[0].UVs[0] = nil
	raw, err := k.MarshalToBinary()
	require.NoError(t, err)

	group := func(mesh int) []byte {
		off := binary.LittleEndian.Uint32(raw[HEADER_SIZE+mesh*MESH_SIZE+0x30:])
		return raw[off : off+VERTEX_GROUP_SIZE]
	}
	field := func(g []byte, i int) int { return int(binary.LittleEndian.Uint32(g[i*4:])) }
	g0, g1 := group(0), group(1)

	assert.Equal(t, HEADER_SIZE+2*MESH_SIZE, int(binary.LittleEndian.Uint32(raw[HEADER_SIZE+0x30:])))
	// vertices of both groups come before any normals
	assert.Equal(t, HEADER_SIZE+2*MESH_SIZE+2*VERTEX_GROUP_SIZE, field(g0, 8))
	assert.Equal(t, field(g0, 8)+0x20, field(g1, 8))
	assert.Equal(t, field(g1, 8)+0x20, field(g0, 10))
	assert.Equal(t, field(g0, 10)+0x20, field(g1, 10))
	assert.Equal(t, field(g1, 10)+0x20, field(g0, 12))
	assert.Zero(t, field(g1, 12))
	assert.Zero(t, field(g0, 14))
	for _, off := range []int{field(g0, 8), field(g1, 8), field(g0, 10), field(g1, 10), field(g0, 12)} {
		assert.Zero(t, off%STREAM_ALIGN)
	}
	assert.Len(t, raw, field(g0, 12)+0x10)
}

func TestDecode(t *testing.T) {
	k, err := Build(twoMeshSource())
	require.NoError(t, err)
	model, err := k.Decode()
	require.NoError(t, err)

	require.Len(t, model.Meshes, 2)
	m := model.Meshes[1]
	assert.Equal(t, "bone1", m.Name)
	assert.Equal(t, mgl32.Vec3{16, 2, 3}, m.World)
	g := m.Groups[0]
	assert.Equal(t, mgl32.Vec3{16, 10, 3}, g.Positions[1])
	assert.Equal(t, mgl32.Vec3{0, 0, 1}, g.Normals[0])
	assert.Equal(t, [][3]int{{0, 2, 1}, {1, 2, 3}}, g.Faces)
	assert.Equal(t, []float32{1, 0.25, 0.5, 1}, g.Weights)
	assert.Equal(t, []float32{0, 0.75, 0.5, 0}, g.ParentWeights)
	assert.Nil(t, model.Meshes[0].Groups[0].ParentWeights)
	require.Len(t, g.UVs, 1)
	assert.Equal(t, mgl32.Vec2{0.5, 0.25}, g.UVs[0][2])
	assert.Equal(t, uint32(0x1234), g.ColorMap)

	for i := range k.Meshes[1].VertexGroups[0].Vertices {
		k.Meshes[1].VertexGroups[0].Vertices[i].Pos[0] = 100
	}
	model, err = k.Decode()
	require.NoError(t, err)
	assert.Equal(t, float32(16+8), model.Meshes[1].Groups[0].Positions[0][0])
}

func TestNullUVDropped(t *testing.T) {
	src := twoMeshSource()
	for i := range src.Meshes[0].Polygons {
		src.Meshes[0].Polygons[i].UVs = [][3]mgl32.Vec2{{}}
	}
	k, err := Build(src)
	require.NoError(t, err)
	assert.Nil(t, k.Meshes[0].VertexGroups[0].UVs[0])

	k.Meshes[0].VertexGroups[0].UVs[0] = make([]UV, 4)
	for i := range k.Meshes[0].VertexGroups[0].UVs[0] {
		k.Meshes[0].VertexGroups[0].UVs[0][i] = nullUV
	}
	model, err := k.Decode()
	require.NoError(t, err)
	assert.Empty(t, model.Meshes[0].Groups[0].UVs)
}

func TestWindingRepair(t *testing.T) {
	mesh := quadMesh(mgl32.Vec3{}, -1)
	mesh.Materials = []SourceMaterial{{}, {}}
	mesh.Polygons = []geom.Polygon{
		{Vertices: []int{0, 1, 2}, Normals: up},
		{Vertices: []int{2, 3, 1}, Normals: up, Material: 1},
	}
	k, err := Build(Source{Meshes: []SourceMesh{mesh}})
	require.NoError(t, err)

	prev := k.Meshes[0].VertexGroups[0]
	assert.Equal(t, []int{0, 2, 1}, prev.SourceVertex)
	cur := k.Meshes[0].VertexGroups[1]
	assert.Equal(t, []int{1, 3, 2}, cur.SourceVertex)
	assert.Equal(t, []bool{false, false, true}, cur.Closing())

	faces, err := geom.DecodeStrip(cur.Closing())
	require.NoError(t, err)
	tri := [3]int{cur.SourceVertex[faces[0][0]], cur.SourceVertex[faces[0][1]], cur.SourceVertex[faces[0][2]]}
	// same triangle as {2, 3, 1} rotated
	assert.Equal(t, [3]int{1, 2, 3}, tri)
}

func TestFormatViolations(t *testing.T) {
	k, err := Build(twoMeshSource())
	require.NoError(t, err)
	good, err := k.MarshalToBinary()
	require.NoError(t, err)
	g0 := int(binary.LittleEndian.Uint32(good[HEADER_SIZE+0x30:]))

	for _, offset := range []int{0xC, 0x14, HEADER_SIZE + 0x34, HEADER_SIZE + 0x4C, g0 + 0xC, g0 + 0x3C, g0 + 0x5C} {
		raw := append([]byte(nil), good...)
		raw[offset] = 1
		_, err := NewFromData(raw)
		assert.True(t, errors.Is(err, utils.ErrFormatViolation), "offset 0x%x: %v", offset, err)
	}

	_, err = NewFromData(good[:0x20])
	assert.True(t, errors.Is(err, utils.ErrFormatViolation))

	raw := append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(raw[HEADER_SIZE+0x2C:], 1)
	_, err = NewFromData(raw)
	assert.True(t, errors.Is(err, utils.ErrDataInconsistency), "%v", err)

	k.Meshes[0].VertexGroups[0].Normals = k.Meshes[0].VertexGroups[0].Normals[:2]
	_, err = k.MarshalToBinary()
	assert.True(t, errors.Is(err, utils.ErrDataInconsistency))
}
