package cmdl

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/mgs2_tools/3rdparty/half"
	"github.com/mogaika/mgs2_tools/pack/geom"
	"github.com/mogaika/mgs2_tools/utils"
)

type BuildMesh struct {
	Positions []mgl32.Vec3
	// OriginalIndex maps a vertex to its skinned mesh index, identity if nil.
	OriginalIndex []int
	NumMaterials  int
	Polygons      []geom.Polygon
}

type BuildSource struct {
	Meshes []BuildMesh
	// Articulated models keep positions in 1/16 units.
	Articulated bool
}

type builder struct {
	c         *CMDL
	pos       *PositionSection
	nrm       *NormalSection
	uvs       []*UVSection
	oidx      *IndexSection
	scale     float32
	oidxBase  int
	faceCount int
}

// Build turns triangulated meshes into a container. Every material of a
// mesh becomes one submesh with its triangles strip compressed into a run of
// stream vertices.
func Build(src BuildSource) (*CMDL, error) {
	b := &builder{
		c:     &CMDL{},
		pos:   &PositionSection{},
		nrm:   &NormalSection{},
		oidx:  &IndexSection{},
		scale: 1,
	}
	if src.Articulated {
		b.scale = 1.0 / geom.EVMPositionScale
	}

	numUV := 0
	for _, m := range src.Meshes {
		if n := geom.NumUVChannels(m.Polygons); n > numUV {
			numUV = n
		}
	}
	if numUV > MAX_UV {
		return nil, utils.UnsupportedVariantf("%d uv channels, at most %d fit", numUV, MAX_UV)
	}
	for i := 0; i < numUV; i++ {
		b.uvs = append(b.uvs, &UVSection{Channel: i})
	}

	for i := range src.Meshes {
		if err := b.addMesh(i, &src.Meshes[i]); err != nil {
			return nil, errors.Wrapf(err, "Mesh %d", i)
		}
	}

	b.c.Sections = append(b.c.Sections,
		Section{Tag: TAG_POSITION, Unknown06: SECTION_DEFAULT_UNKNOWN06, Data: b.pos},
		Section{Tag: TAG_NORMAL, Unknown06: SECTION_DEFAULT_UNKNOWN06, Data: b.nrm})
	for i, uv := range b.uvs {
		b.c.Sections = append(b.c.Sections, Section{Tag: UVTag(i), Unknown06: SECTION_DEFAULT_UNKNOWN06, Data: uv})
	}
	b.c.Sections = append(b.c.Sections, Section{Tag: TAG_INDEX, Unknown06: SECTION_DEFAULT_UNKNOWN06, Data: b.oidx})

	if err := b.c.Validate(); err != nil {
		return nil, err
	}
	return b.c, nil
}

func (b *builder) addMesh(iMesh int, m *BuildMesh) error {
	if m.OriginalIndex != nil && len(m.OriginalIndex) != len(m.Positions) {
		return utils.DataInconsistencyf("%d original indexes for %d vertices", len(m.OriginalIndex), len(m.Positions))
	}

	bbox := utils.NewBBox()
	for _, p := range m.Positions {
		bbox.Add(p.Mul(b.scale))
	}

	groups, err := geom.GroupPolygons(m.Polygons, len(m.Positions), m.NumMaterials)
	if err != nil {
		return err
	}

	for iGroup, group := range groups {
		if len(group) == 0 {
			return utils.DataInconsistencyf("submesh %d has no triangles", iGroup)
		}
		stream := geom.EncodeGroupStrip(m.Polygons, group)
		faces, err := geom.DecodeStrip(geom.StripClosing(stream))
		if err != nil {
			return errors.Wrapf(err, "Submesh %d", iGroup)
		}

		start := b.pos.Len()
		for _, sv := range stream {
			t := &m.Polygons[sv.Face]
			p := m.Positions[sv.Vertex].Mul(b.scale)
			n := t.Normals[sv.Corner].Mul(-1)
			if !isFinite(p) || !isFinite(n) {
				return utils.DataInconsistencyf("submesh %d vertex %d is not finite", iGroup, sv.Vertex)
			}
			b.pos.Positions = append(b.pos.Positions, p)
			b.nrm.Packed = append(b.nrm.Packed, geom.EncodeNormal(n))
			for ch, uv := range b.uvs {
				if ch < len(t.UVs) {
					uv.UV = append(uv.UV, packUV(t.UVs[ch][sv.Corner]))
				} else {
					uv.UV = append(uv.UV, [2]half.Float16{})
				}
			}
			orig := sv.Vertex
			if m.OriginalIndex != nil {
				orig = m.OriginalIndex[sv.Vertex]
			}
			b.oidx.Indexes = append(b.oidx.Indexes, uint32(orig+b.oidxBase))
		}

		for _, f := range faces {
			b.c.Faces = append(b.c.Faces, [3]uint32{uint32(start + f[0]), uint32(start + f[1]), uint32(start + f[2])})
		}
		b.c.Meshes = append(b.c.Meshes, Mesh{
			Min:          bbox.Min,
			Max:          bbox.Max,
			StartVertex:  uint32(start),
			VertexCount:  uint32(len(stream)),
			StartFace:    uint32(b.faceCount * 3),
			FaceCount:    uint32(len(faces) * 3),
			MeshIndex:    uint32(iMesh),
			SubMeshIndex: uint32(iGroup),
		})
		b.faceCount += len(faces)
	}
	b.oidxBase += len(m.Positions)
	return nil
}
