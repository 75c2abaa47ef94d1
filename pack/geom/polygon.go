package geom

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/mgs2_tools/utils"
)

// Polygon is one source face handed to the exporters. Normals and UVs are
// per corner, UVs indexed by channel.
type Polygon struct {
	Vertices []int
	Material int
	Normals  [3]mgl32.Vec3
	UVs      [][3]mgl32.Vec2
}

// GroupPolygons splits polygons by material, keeping submission order inside
// every group. Only triangles are accepted.
func GroupPolygons(polys []Polygon, numVertex, numMaterials int) ([][]int, error) {
	groups := make([][]int, numMaterials)
	for i, p := range polys {
		if len(p.Vertices) != 3 {
			return nil, utils.UnsupportedVariantf("polygon %d has %d vertices, expected a triangle", i, len(p.Vertices))
		}
		if p.Material < 0 || p.Material >= numMaterials {
			return nil, utils.DataInconsistencyf("polygon %d uses material %d of %d", i, p.Material, numMaterials)
		}
		for _, v := range p.Vertices {
			if v < 0 || v >= numVertex {
				return nil, utils.DataInconsistencyf("polygon %d references vertex %d of %d", i, v, numVertex)
			}
		}
		groups[p.Material] = append(groups[p.Material], i)
	}
	return groups, nil
}

// EncodeGroupStrip strip compresses the polygons listed in group. Face of the
// returned vertices indexes polys, not group.
func EncodeGroupStrip(polys []Polygon, group []int) []StripVertex {
	tris := make([][3]int, len(group))
	for k, i := range group {
		v := polys[i].Vertices
		tris[k] = [3]int{v[0], v[1], v[2]}
	}
	stream := EncodeStrip(tris)
	for i := range stream {
		stream[i].Face = group[stream[i].Face]
	}
	return stream
}

// NumUVChannels is the largest channel count of polys.
func NumUVChannels(polys []Polygon) int {
	n := 0
	for _, p := range polys {
		if len(p.UVs) > n {
			n = len(p.UVs)
		}
	}
	return n
}
