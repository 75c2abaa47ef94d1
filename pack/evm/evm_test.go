package evm

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

func armSource() Source {
	uv := [][3]mgl32.Vec2{{{0, 0}, {1, 0}, {0, 1}}}
	return Source{
		StrCode: 0x1234,
		Flag:    3,
		Bones: []SourceBone{
			{Parent: -1},
			{Parent: 0, World: mgl32.Vec3{1, 0, 0}},
			{Parent: 1, World: mgl32.Vec3{1, 1, 0}},
		},
		Positions: []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}},
		Influences: [][]Influence{
			{{Bone: 0, Weight: 1}},
			{{Bone: 0, Weight: 0.5}, {Bone: 1, Weight: 0.5}},
			{{Bone: 1, Weight: 0.25}, {Bone: 2, Weight: 0.75}},
			{{Bone: 2, Weight: 1}},
		},
		Materials: []SourceMaterial{{ColorMap: 7}, {Flag: 72}},
		Polygons: []geom.Polygon{
			{Vertices: []int{0, 1, 2}, Normals: up, UVs: uv},
			{Vertices: []int{2, 1, 3}, Normals: up, UVs: uv, Material: 1},
		},
	}
}

func TestPackWeights(t *testing.T) {
	table := NewSkinTable([]int{3, 7, 1})
	assert.Equal(t, SkinTable{1, 3, 7, 0xff, 0xff, 0xff, 0xff, 0xff}, table)

	var packTests = []struct {
		name    string
		infl    []Influence
		weights [4]uint8
		slots   [4]uint8
		count   int
	}{
		{"single", []Influence{{Bone: 7, Weight: 1}}, [4]uint8{128}, [4]uint8{2 << 2}, 1},
		{"even", []Influence{{Bone: 1, Weight: 0.5}, {Bone: 3, Weight: 0.5}}, [4]uint8{64, 64}, [4]uint8{0, 1 << 2}, 2},
		{"thirds", []Influence{{Bone: 1, Weight: 1.0 / 3}, {Bone: 3, Weight: 1.0 / 3}, {Bone: 7, Weight: 1.0 / 3}},
			[4]uint8{43, 43, 42}, [4]uint8{0, 1 << 2, 2 << 2}, 3},
		{"sorted and topped up", []Influence{{Bone: 1, Weight: 0.2}, {Bone: 7, Weight: 0.7}},
			[4]uint8{90, 38}, [4]uint8{2 << 2, 0}, 2},
		{"rounded away", []Influence{{Bone: 3, Weight: 0.001}, {Bone: 1, Weight: 1}}, [4]uint8{128}, [4]uint8{0}, 1},
		{"trimmed to zero", []Influence{{Bone: 1, Weight: 0.5}, {Bone: 3, Weight: 0.5}, {Bone: 7, Weight: 0.004}},
			[4]uint8{64, 64, 0}, [4]uint8{0, 1 << 2, 0}, 2},
	}
	for _, test := range packTests {
		w, count, err := PackWeights(test.infl, table)
		require.NoError(t, err, test.name)
		assert.Equal(t, test.weights, w.Weights, test.name)
		assert.Equal(t, test.slots, w.Slots, test.name)
		assert.Equal(t, test.count, count, test.name)

		sum := 0
		for i, v := range w.Weights {
			sum += int(v)
			if i > 0 {
				assert.LessOrEqual(t, v, w.Weights[i-1], test.name)
			}
		}
		assert.Equal(t, WEIGHT_TOTAL, sum, test.name)
	}

	for _, infl := range [][]Influence{
		nil,
		{{Bone: 1, Weight: 0}},
		{{Bone: 2, Weight: 1}},
		{{Bone: 1, Weight: 1.5}},
		{{Bone: 1, Weight: 0.2}, {Bone: 1, Weight: 0.2}, {Bone: 3, Weight: 0.2}, {Bone: 7, Weight: 0.2}, {Bone: 7, Weight: 0.2}},
	} {
		_, _, err := PackWeights(infl, table)
		assert.True(t, errors.Is(err, utils.ErrDataInconsistency), "%v: %v", infl, err)
	}
}

func TestUnpackWeights(t *testing.T) {
	table := NewSkinTable([]int{4, 9})
	infl, err := Weights{Weights: [4]uint8{96, 32}, Slots: [4]uint8{1 << 2, 0}}.Unpack(2, table)
	require.NoError(t, err)
	assert.Equal(t, []Influence{{Bone: 9, Weight: 0.75}, {Bone: 4, Weight: 0.25}}, infl)

	for _, w := range []Weights{
		{Weights: [4]uint8{100}},
		{Weights: [4]uint8{32, 96}},
		{Weights: [4]uint8{128}, Slots: [4]uint8{5 << 2}},
	} {
		_, err := w.Unpack(2, table)
		assert.True(t, errors.Is(err, utils.ErrDataInconsistency), "%v: %v", w, err)
	}
}

func TestMergeSkinTables(t *testing.T) {
	tables := MergeSkinTables([][]int{
		{0, 1, 2, 3},
		{6, 5, 4, 3},
		{8, 7},
		{8, 9},
	})
	shared := SkinTable{0, 1, 2, 3, 4, 5, 6, 0xff}
	assert.Equal(t, []SkinTable{
		shared,
		shared,
		{7, 8, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		{8, 9, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
	}, tables)
}

func TestBuild(t *testing.T) {
	e, err := Build(armSource())
	require.NoError(t, err)

	require.Len(t, e.Bones, 3)
	assert.Equal(t, mgl32.Vec3{0, 16, 0}, e.Bones[2].Relative)
	assert.Equal(t, mgl32.Vec3{16, 16, 0}, e.Bones[2].World)
	assert.Equal(t, mgl32.Vec4{16, 16, 0, 0}, e.Bones[0].Max)
	assert.Equal(t, mgl32.Vec3{16, 16, 0}, e.Header.Max)

	require.Len(t, e.Meshes, 2)
	m := e.Meshes[0]
	assert.Equal(t, uint32(MESH_FLAG_DEFAULT), m.Flag)
	assert.Equal(t, uint32(72), e.Meshes[1].Flag)
	assert.Equal(t, SkinTable{0, 1, 2, 0xff, 0xff, 0xff, 0xff, 0xff}, m.SkinTable)
	assert.Equal(t, uint32(2), m.NumSkin)
	assert.Equal(t, []int{0, 2, 1}, m.SourceVertex)
	assert.Equal(t, Vertex{Pos: [3]int16{0, 16, 0}, Flags: VERTEX_FLAGS_DEFAULT}, m.Vertices[1])
	assert.True(t, m.Vertices[2].Closing())
	assert.Equal(t, Weights{Weights: [4]uint8{96, 32}, Slots: [4]uint8{2 << 2, 1 << 2}}, m.Weights[1])
	assert.Equal(t, UV{Coord: [2]int16{0, 0}, Aux: UV_AUX_DEFAULT}, m.UVs[0][1])
	assert.Equal(t, Normal{Dir: [3]int16{0, 0, -4096}}, m.Normals[0])

	src := armSource()
	src.Bones[0].Parent = 2
	_, err = Build(src)
	assert.True(t, errors.Is(err, utils.ErrDataInconsistency))

	src = armSource()
	src.Influences[3] = nil
	_, err = Build(src)
	assert.True(t, errors.Is(err, utils.ErrDataInconsistency))
}

func TestRoundTrip(t *testing.T) {
	e, err := Build(armSource())
	require.NoError(t, err)
	raw, err := e.MarshalToBinary()
	require.NoError(t, err)

	mesh := func(i int) []byte { return raw[HEADER_SIZE+3*BONE_SIZE+i*MESH_SIZE:] }
	field := func(b []byte, off int) int { return int(binary.LittleEndian.Uint32(b[off:])) }
	assert.Equal(t, HEADER_SIZE+3*BONE_SIZE, field(raw, 0x30))
	var streams []int
	for _, off := range []int{0x30, 0x38, 0x40, 0x58} {
		streams = append(streams, field(mesh(0), off), field(mesh(1), off))
	}
	assert.Equal(t, []int{0x1e0, 0x200, 0x220, 0x240, 0x260, 0x280, 0x2a0, 0x2c0}, streams)
	assert.Zero(t, field(mesh(0), 0x48))
	assert.Len(t, raw, 0x2e0)

	back, err := NewFromData(raw)
	require.NoError(t, err)
	for i := range e.Meshes {
		e.Meshes[i].SourceVertex = nil
	}
	assert.Equal(t, e, back)

	again, err := back.MarshalToBinary()
	require.NoError(t, err)
	assert.Equal(t, raw, again)
}

func TestDecode(t *testing.T) {
	e, err := Build(armSource())
	require.NoError(t, err)

	pos, err := e.BoneWorldPosition(2)
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec3{16, 16, 0}, pos)

	model, err := e.Decode()
	require.NoError(t, err)
	assert.Equal(t, ModelBone{Name: "bone2", Parent: 1, World: mgl32.Vec3{1, 1, 0}}, model.Bones[2])

	m := model.Meshes[0]
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, m.Positions[1])
	assert.Equal(t, mgl32.Vec3{0, 0, 1}, m.Normals[1])
	assert.Equal(t, [][3]int{{0, 2, 1}}, m.Faces)
	assert.Equal(t, []Influence{{Bone: 2, Weight: 0.75}, {Bone: 1, Weight: 0.25}}, m.Influences[1])
	require.Len(t, m.UVs, 1)
	assert.Equal(t, mgl32.Vec2{0, 1}, m.UVs[0][1])
	assert.Equal(t, uint32(7), m.ColorMap)

	e.Meshes[0].Weights[0].Weights[0] = 100
	_, err = e.Decode()
	assert.True(t, errors.Is(err, utils.ErrDataInconsistency))
}

func TestWindingRepair(t *testing.T) {
	src := armSource()
	src.Polygons[1].Vertices = []int{2, 3, 1}
	e, err := Build(src)
	require.NoError(t, err)

	cur := e.Meshes[1]
	assert.Equal(t, []int{1, 3, 2}, cur.SourceVertex)
	assert.Equal(t, []bool{false, false, true}, cur.Closing())
	w, _, err := PackWeights(src.Influences[1], cur.SkinTable)
	require.NoError(t, err)
	assert.Equal(t, w, cur.Weights[0])
	assert.Equal(t, [3]int16{16, 0, 0}, cur.Vertices[0].Pos)
}

func TestFormatViolations(t *testing.T) {
	e, err := Build(armSource())
	require.NoError(t, err)
	good, err := e.MarshalToBinary()
	require.NoError(t, err)
	mesh0 := HEADER_SIZE + 3*BONE_SIZE

	for _, offset := range []int{0x24, 0x34, 0x3c, HEADER_SIZE, mesh0 + 4, mesh0 + 0x1c, mesh0 + 0x34, mesh0 + 0x5c, mesh0 + 0x6c} {
		raw := append([]byte(nil), good...)
		raw[offset] = 1
		_, err := NewFromData(raw)
		assert.True(t, errors.Is(err, utils.ErrFormatViolation), "offset 0x%x: %v", offset, err)
	}

	raw := append([]byte(nil), good...)
	raw[mesh0+0x24] = 5
	_, err = NewFromData(raw)
	assert.True(t, errors.Is(err, utils.ErrFormatViolation), "numskin: %v", err)

	_, err = NewFromData(good[:0x30])
	assert.True(t, errors.Is(err, utils.ErrFormatViolation))

	raw = append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(raw[HEADER_SIZE+4:], 1)
	_, err = NewFromData(raw)
	assert.True(t, errors.Is(err, utils.ErrDataInconsistency), "cycle: %v", err)
}
