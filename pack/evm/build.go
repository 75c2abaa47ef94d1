package evm

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/mgs2_tools/pack/geom"
	"github.com/mogaika/mgs2_tools/utils"
)

type SourceBone struct {
	Parent int
	World  mgl32.Vec3
}

type SourceMaterial struct {
	ColorMap    uint32
	SpecularMap uint32
	EnvMap      uint32
	// Zero picks the default.
	Flag uint32
}

// Source is a skinned model in model units.
type Source struct {
	NumUnknown uint32
	StrCode    uint32
	Flag       uint32

	Bones      []SourceBone
	Positions  []mgl32.Vec3
	Influences [][]Influence
	Materials  []SourceMaterial
	Polygons   []geom.Polygon
}

// Build turns every material into one mesh. Bones used by neighbouring
// meshes are merged into shared skin tables, weights are quantized to sum
// to WEIGHT_TOTAL, and a mesh that would continue the previous one with
// inverted winding gets its strip head rewritten.
func Build(src Source) (*EVM, error) {
	if len(src.Influences) != len(src.Positions) {
		return nil, utils.DataInconsistencyf("%d influence lists for %d vertices", len(src.Influences), len(src.Positions))
	}
	for v, infl := range src.Influences {
		for _, in := range infl {
			if in.Bone < 0 || in.Bone >= len(src.Bones) {
				return nil, utils.DataInconsistencyf("vertex %d uses bone %d of %d", v, in.Bone, len(src.Bones))
			}
		}
	}

	e := &EVM{Header: Header{NumUnknown: src.NumUnknown, StrCode: src.StrCode, Flag: src.Flag}}
	bbox := utils.NewBBox()
	for _, p := range src.Positions {
		bbox.Add(p.Mul(geom.EVMPositionScale))
	}
	if !bbox.Empty() {
		e.Header.Min = bbox.Min
		e.Header.Max = bbox.Max
	}
	if err := e.buildBones(src.Bones); err != nil {
		return nil, errors.Wrapf(err, "Bone hierarchy")
	}

	groups, err := geom.GroupPolygons(src.Polygons, len(src.Positions), len(src.Materials))
	if err != nil {
		return nil, err
	}
	sets := make([][]int, len(groups))
	for iGroup, group := range groups {
		var set skinSet
		for _, i := range group {
			for _, v := range src.Polygons[i].Vertices {
				for _, in := range src.Influences[v] {
					if err := set.add(in.Bone); err != nil {
						return nil, errors.Wrapf(err, "Material %d", iGroup)
					}
				}
			}
		}
		sets[iGroup] = set
	}
	tables := MergeSkinTables(sets)

	numUV := geom.NumUVChannels(src.Polygons)
	if numUV > MAX_UV {
		return nil, utils.UnsupportedVariantf("%d uv channels, at most %d fit", numUV, MAX_UV)
	}

	e.Meshes = make([]Mesh, len(groups))
	for iGroup, group := range groups {
		m := &e.Meshes[iGroup]
		mat := src.Materials[iGroup]
		m.Flag = mat.Flag
		if m.Flag == 0 {
			m.Flag = MESH_FLAG_DEFAULT
		}
		m.ColorMap = mat.ColorMap
		m.SpecularMap = mat.SpecularMap
		m.EnvironmentMap = mat.EnvMap
		m.SkinTable = tables[iGroup]
		if err := buildMesh(m, &src, group, numUV); err != nil {
			return nil, errors.Wrapf(err, "Material %d", iGroup)
		}
		if iGroup > 0 {
			repairWinding(&e.Meshes[iGroup-1], m)
		}
	}
	return e, nil
}

// buildBones stores bone positions in file units. Every bone gets the model
// bounding box.
func (e *EVM) buildBones(bones []SourceBone) error {
	parents := make([]int, len(bones))
	world := make([]mgl32.Vec3, len(bones))
	for i, b := range bones {
		parents[i] = b.Parent
		world[i] = b.World.Mul(geom.EVMPositionScale)
	}
	rel, err := geom.RelativePositions(parents, world, mgl32.Vec3{})
	if err != nil {
		return err
	}
	e.Bones = make([]Bone, len(bones))
	for i := range bones {
		e.Bones[i] = Bone{
			Parent:   int32(parents[i]),
			Relative: rel[i],
			World:    world[i],
			Min:      e.Header.Min.Vec4(0),
			Max:      e.Header.Max.Vec4(0),
		}
	}
	return nil
}

func buildMesh(m *Mesh, src *Source, group []int, numUV int) error {
	stream := geom.EncodeGroupStrip(src.Polygons, group)

	packed := make(map[int]Weights)
	m.Vertices = make([]Vertex, len(stream))
	m.Normals = make([]Normal, len(stream))
	m.Weights = make([]Weights, len(stream))
	m.SourceVertex = make([]int, len(stream))
	for ch := 0; ch < numUV; ch++ {
		m.UVs[ch] = make([]UV, len(stream))
	}

	for i, sv := range stream {
		poly := &src.Polygons[sv.Face]
		pos, err := geom.Quantize16Vec(src.Positions[sv.Vertex], geom.EVMPositionScale)
		if err != nil {
			return errors.Wrapf(err, "Vertex %d", sv.Vertex)
		}
		m.Vertices[i] = Vertex{Pos: pos, Flags: VERTEX_FLAGS_DEFAULT}
		m.Vertices[i].SetClosing(sv.Closing)

		dir, err := geom.EncodeSkinnedNormal(poly.Normals[sv.Corner])
		if err != nil {
			return errors.Wrapf(err, "Normal of polygon %d", sv.Face)
		}
		m.Normals[i] = Normal{Dir: dir}

		for ch := 0; ch < numUV; ch++ {
			uv := UV{Aux: UV_AUX_DEFAULT}
			if ch < len(poly.UVs) {
				q, err := geom.EncodeUV(poly.UVs[ch][sv.Corner])
				if err != nil {
					return errors.Wrapf(err, "UV%d of polygon %d", ch, sv.Face)
				}
				uv.Coord = q
			}
			m.UVs[ch][i] = uv
		}

		w, ok := packed[sv.Vertex]
		if !ok {
			var count int
			w, count, err = PackWeights(src.Influences[sv.Vertex], m.SkinTable)
			if err != nil {
				return errors.Wrapf(err, "Vertex %d", sv.Vertex)
			}
			packed[sv.Vertex] = w
			if uint32(count) > m.NumSkin {
				m.NumSkin = uint32(count)
			}
		}
		m.Weights[i] = w
		m.SourceVertex[i] = sv.Vertex
	}
	return nil
}

func repairWinding(prev, cur *Mesh) {
	fix := geom.FindWindingFix(prev.Positions(), prev.Closing(), cur.Positions(), cur.Closing())
	if fix == nil {
		return
	}
	Trace.Printf("[evm] rewriting strip head: order %v", fix.Order)
	closing := geom.ApplyWindingFixClosing(fix, cur.Closing())
	cur.Vertices = geom.ApplyWindingFix(fix, cur.Vertices)
	for i := range cur.Vertices {
		cur.Vertices[i].SetClosing(closing[i])
	}
	cur.Normals = geom.ApplyWindingFix(fix, cur.Normals)
	for ch := range cur.UVs {
		cur.UVs[ch] = geom.ApplyWindingFix(fix, cur.UVs[ch])
	}
	cur.Weights = geom.ApplyWindingFix(fix, cur.Weights)
	cur.SourceVertex = geom.ApplyWindingFix(fix, cur.SourceVertex)
}
