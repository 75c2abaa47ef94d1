package cmdl

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/mgs2_tools/pack/geom"
	"github.com/mogaika/mgs2_tools/utils"
)

func quadSource() BuildSource {
	n := [3]mgl32.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}}
	uv := [][3]mgl32.Vec2{{{0, 0}, {0.25, 0.75}, {1, 1}}}
	return BuildSource{Meshes: []BuildMesh{{
		Positions:     []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}},
		OriginalIndex: []int{3, 2, 1, 0},
		NumMaterials:  2,
		Polygons: []geom.Polygon{
			{Vertices: []int{0, 1, 2}, Normals: n, UVs: uv},
			{Vertices: []int{2, 1, 3}, Normals: n, UVs: uv},
			{Vertices: []int{1, 3, 0}, Material: 1, Normals: n},
		},
	}}}
}

func TestBuildStripGroups(t *testing.T) {
	c, err := Build(quadSource())
	require.NoError(t, err)

	// two triangles share an edge: 4 stream vertices, the lone one takes 3
	assert.Equal(t, 7, c.VertexCount())
	assert.Equal(t, [][3]uint32{{0, 2, 1}, {1, 2, 3}, {4, 6, 5}}, c.Faces)
	require.Len(t, c.Meshes, 2)
	assert.Equal(t, Mesh{Max: mgl32.Vec3{1, 1, 0}, VertexCount: 4, FaceCount: 6}, c.Meshes[0])
	assert.Equal(t, uint32(4), c.Meshes[1].StartVertex)
	assert.Equal(t, uint32(6), c.Meshes[1].StartFace)
	assert.Equal(t, uint32(1), c.Meshes[1].SubMeshIndex)

	pos := c.Positions()
	for _, f := range c.Faces[:2] {
		tri := [3]mgl32.Vec3{pos[f[0]], pos[f[1]], pos[f[2]]}
		normal := tri[1].Sub(tri[0]).Cross(tri[2].Sub(tri[0]))
		assert.True(t, normal.Z() > 0, "face %v lost its winding", f)
	}

	oidx := c.Section(TAG_INDEX).Data.(*IndexSection)
	assert.Equal(t, []uint32{3, 1, 2, 0, 2, 3, 0}, oidx.Indexes)

	nrm := c.Section(TAG_NORMAL).Data.(*NormalSection).Normals()
	assert.Equal(t, mgl32.Vec3{0, 0, -1}, nrm[0])

	uv := c.Section(UVTag(0)).Data.(*UVSection)
	assert.Equal(t, mgl32.Vec2{0.25, 0.75}, uv.Coords()[2])
	assert.Zero(t, uv.UV[4][0])
}

func TestRoundTrip(t *testing.T) {
	c, err := Build(quadSource())
	require.NoError(t, err)
	raw, err := c.MarshalToBinary()
	require.NoError(t, err)

	assert.Equal(t, []byte(CMDL_MAGIC), raw[:4])
	assert.Equal(t, uint32(CMDL_VERSION), binary.BigEndian.Uint32(raw[4:]))
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(raw[0xC:]))
	assert.Equal(t, []byte("0SOP"), raw[HEADER_SIZE:HEADER_SIZE+4])
	for i := range c.Sections {
		off := int(binary.LittleEndian.Uint32(raw[HEADER_SIZE+i*SECTION_SIZE+8:])) + BODY_OFFSET
		assert.Zero(t, off%PAYLOAD_ALIGN, "section %d", i)
	}

	back, err := NewFromData(raw)
	require.NoError(t, err)
	assert.Equal(t, c, back)

	again, err := back.MarshalToBinary()
	require.NoError(t, err)
	assert.Equal(t, raw, again)
}

func TestReservedFields(t *testing.T) {
	c, err := Build(quadSource())
	require.NoError(t, err)
	good, err := c.MarshalToBinary()
	require.NoError(t, err)

	tail := int(binary.BigEndian.Uint32(good[8:])) + BODY_OFFSET
	mesh0 := tail + 4 + len(c.Faces)*12 + 8
	posOff := int(binary.LittleEndian.Uint32(good[HEADER_SIZE+8:])) + BODY_OFFSET

	var violationTests = []struct {
		name   string
		offset int
		value  byte
	}{
		{"magic", 0, 'X'},
		{"version", 7, 2},
		{"section pad", HEADER_SIZE + 0xC, 1},
		{"section size pad", HEADER_SIZE + 0x1C, 1},
		{"tag", HEADER_SIZE + 2 + SECTION_SIZE, 'Z'},
		{"faces pad", tail + 4 + len(c.Faces)*12 + 3, 1},
		{"unknown18", mesh0 + 24, 0},
		{"unknown1c", mesh0 + 26, 1},
		{"fill", mesh0 + 47, 0x7f},
		{"unknown36", mesh0 + 55, 1},
	}
	for _, test := range violationTests {
		raw := append([]byte(nil), good...)
		raw[test.offset] = test.value
		_, err := NewFromData(raw)
		assert.True(t, errors.Is(err, utils.ErrFormatViolation), "%s: %v", test.name, err)
	}

	raw := append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(raw[posOff+12:], math.Float32bits(0.5))
	_, err = NewFromData(raw)
	assert.True(t, errors.Is(err, utils.ErrFormatViolation), "w: %v", err)
}

func TestInconsistentData(t *testing.T) {
	c, err := Build(quadSource())
	require.NoError(t, err)

	c.Meshes[1].VertexCount = 10
	_, err = c.MarshalToBinary()
	assert.True(t, errors.Is(err, utils.ErrDataInconsistency))

	c.Meshes[1].VertexCount = 3
	c.Section(TAG_INDEX).Data.(*IndexSection).Indexes = []uint32{1}
	_, err = c.MarshalToBinary()
	assert.True(t, errors.Is(err, utils.ErrDataInconsistency))

	src := quadSource()
	src.Meshes[0].Polygons[0].Vertices = []int{0, 1, 2, 3}
	_, err = Build(src)
	assert.True(t, errors.Is(err, utils.ErrUnsupportedVariant))

	src = quadSource()
	src.Meshes[0].NumMaterials = 3
	_, err = Build(src)
	assert.True(t, errors.Is(err, utils.ErrDataInconsistency))
}

func TestArticulatedScale(t *testing.T) {
	src := quadSource()
	src.Articulated = true
	c, err := Build(src)
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec3{1.0 / 16, 1.0 / 16, 0}, c.Meshes[0].Max)
}
