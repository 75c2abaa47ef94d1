package kms

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/mgs2_tools/pack/geom"
	"github.com/mogaika/mgs2_tools/utils"
)

type SourceMaterial struct {
	ColorMap    uint32
	SpecularMap uint32
	EnvMap      uint32
	// Flag of the vertex group, zero picks the default.
	Flag uint32
}

type SourceMesh struct {
	// World position of the mesh bone.
	World  mgl32.Vec3
	Parent int
	// Flag of the mesh, zero picks the default.
	Flag uint32
	// Model space vertex positions.
	Positions []mgl32.Vec3
	// Weight of every vertex toward the mesh bone, all 1 if nil.
	Weights   []float32
	Materials []SourceMaterial
	Polygons  []geom.Polygon
}

type Source struct {
	Type    uint32
	StrCode uint32
	Pos     mgl32.Vec3
	// Zero stores the mesh count.
	NumBones int
	Meshes   []SourceMesh
}

// Build quantizes meshes into a container. Every material becomes one vertex
// group holding its triangles as a strip. Groups that would continue the
// previous group of the mesh with inverted winding get their head rewritten.
func Build(src Source) (*KMS, error) {
	parents := make([]int, len(src.Meshes))
	world := make([]mgl32.Vec3, len(src.Meshes))
	for i := range src.Meshes {
		parents[i] = src.Meshes[i].Parent
		world[i] = src.Meshes[i].World
	}
	rel, err := geom.RelativePositions(parents, world, src.Pos)
	if err != nil {
		return nil, errors.Wrapf(err, "Mesh hierarchy")
	}

	k := &KMS{
		Header: Header{
			Type:     src.Type,
			NumBones: int32(len(src.Meshes)),
			StrCode:  src.StrCode,
			Pos:      src.Pos,
		},
		Meshes: make([]Mesh, len(src.Meshes)),
	}
	if src.NumBones != 0 {
		k.Header.NumBones = int32(src.NumBones)
	}

	bbox := utils.NewBBox()
	for i := range src.Meshes {
		sm := &src.Meshes[i]
		m := &k.Meshes[i]
		m.Flag = sm.Flag
		if m.Flag == 0 {
			m.Flag = MESH_FLAG_DEFAULT
		}
		m.Parent = int32(sm.Parent)
		m.Pos = rel[i]
		if err := buildMesh(m, sm, i); err != nil {
			return nil, errors.Wrapf(err, "Mesh %d", i)
		}
		for _, p := range sm.Positions {
			bbox.Add(p)
		}
	}
	if !bbox.Empty() {
		k.Header.Min = bbox.Min
		k.Header.Max = bbox.Max
	}
	return k, nil
}

func buildMesh(m *Mesh, sm *SourceMesh, iMesh int) error {
	if sm.Weights != nil && len(sm.Weights) != len(sm.Positions) {
		return utils.DataInconsistencyf("%d weights for %d vertices", len(sm.Weights), len(sm.Positions))
	}
	groups, err := geom.GroupPolygons(sm.Polygons, len(sm.Positions), len(sm.Materials))
	if err != nil {
		return err
	}

	local := make([][3]int16, len(sm.Positions))
	bbox := utils.NewBBox()
	for i, p := range sm.Positions {
		q, err := geom.Quantize16Vec(p.Sub(sm.World), geom.KMSPositionScale)
		if err != nil {
			return errors.Wrapf(err, "Vertex %d", i)
		}
		local[i] = q
		bbox.Add(geom.Dequantize16Vec(q, geom.KMSPositionScale))
	}
	if !bbox.Empty() {
		m.Min = bbox.Min
		m.Max = bbox.Max
	}

	m.VertexGroups = make([]VertexGroup, len(groups))
	for iGroup, group := range groups {
		vg := &m.VertexGroups[iGroup]
		mat := sm.Materials[iGroup]
		vg.Flag = mat.Flag
		if vg.Flag == 0 {
			vg.Flag = VERTEX_GROUP_FLAG_DEFAULT
			if iMesh == 0 {
				vg.Flag = VERTEX_GROUP_FLAG_ROOT
			}
		}
		vg.ColorMap = mat.ColorMap
		vg.SpecularMap = mat.SpecularMap
		vg.EnvironmentMap = mat.EnvMap
		if err := buildGroup(vg, sm, local, group); err != nil {
			return errors.Wrapf(err, "Vertex group %d", iGroup)
		}
		if iGroup > 0 {
			repairWinding(&m.VertexGroups[iGroup-1], vg)
		}
	}
	return nil
}

func buildGroup(vg *VertexGroup, sm *SourceMesh, local [][3]int16, group []int) error {
	stream := geom.EncodeGroupStrip(sm.Polygons, group)
	numUV := 0
	for _, i := range group {
		if n := len(sm.Polygons[i].UVs); n > numUV {
			numUV = n
		}
	}
	if numUV > MAX_UV {
		return utils.UnsupportedVariantf("%d uv channels, at most %d fit", numUV, MAX_UV)
	}

	vg.Vertices = make([]Vertex, len(stream))
	vg.Normals = make([]Normal, len(stream))
	vg.SourceVertex = make([]int, len(stream))
	for ch := 0; ch < numUV; ch++ {
		vg.UVs[ch] = make([]UV, len(stream))
	}
	for i, sv := range stream {
		poly := &sm.Polygons[sv.Face]
		w := float32(1)
		if sm.Weights != nil {
			w = sm.Weights[sv.Vertex]
		}
		qw, err := geom.Quantize16(w, geom.UnitScale)
		if err != nil {
			return errors.Wrapf(err, "Weight of vertex %d", sv.Vertex)
		}
		vg.Vertices[i] = Vertex{Pos: local[sv.Vertex], Weight: qw}

		dir, err := geom.EncodeSkinnedNormal(poly.Normals[sv.Corner])
		if err != nil {
			return errors.Wrapf(err, "Normal of polygon %d", sv.Face)
		}
		vg.Normals[i] = Normal{Dir: dir, Flags: NORMAL_FLAGS_DEFAULT}
		vg.Normals[i].SetClosing(sv.Closing)

		for ch := 0; ch < numUV; ch++ {
			uv := nullUV
			if ch < len(poly.UVs) {
				q, err := geom.EncodeUV(poly.UVs[ch][sv.Corner])
				if err != nil {
					return errors.Wrapf(err, "UV%d of polygon %d", ch, sv.Face)
				}
				uv = q
			}
			vg.UVs[ch][i] = uv
		}
		vg.SourceVertex[i] = sv.Vertex
	}

	for ch := 0; ch < numUV; ch++ {
		if isNullUV(vg.UVs[ch]) {
			vg.UVs[ch] = nil
		}
	}
	return nil
}

// repairWinding rewrites the head of cur when it starts on the edge prev
// ended with an odd closing run.
func repairWinding(prev, cur *VertexGroup) {
	fix := geom.FindWindingFix(prev.Positions(), prev.Closing(), cur.Positions(), cur.Closing())
	if fix == nil {
		return
	}
	Trace.Printf("[kms] rewriting strip head: order %v", fix.Order)
	closing := geom.ApplyWindingFixClosing(fix, cur.Closing())
	cur.Vertices = geom.ApplyWindingFix(fix, cur.Vertices)
	cur.Normals = geom.ApplyWindingFix(fix, cur.Normals)
	for i := range cur.Normals {
		cur.Normals[i].SetClosing(closing[i])
	}
	for ch := range cur.UVs {
		cur.UVs[ch] = geom.ApplyWindingFix(fix, cur.UVs[ch])
	}
	cur.SourceVertex = geom.ApplyWindingFix(fix, cur.SourceVertex)
}
