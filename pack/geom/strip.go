package geom

import (
	"github.com/mogaika/mgs2_tools/utils"
)

// StripVertex is one element of a compressed vertex stream. Vertex is the
// source vertex index, Face and Corner point at the source triangle corner
// the per-corner attributes (normal, uv) must be taken from.
type StripVertex struct {
	Vertex  int
	Face    int
	Corner  int
	Closing bool
}

// Source triangles are wound opposite to the stream order.
var stripCornerOrder = [3]int{0, 2, 1}

// EncodeStrip compresses triangles into a vertex stream where every vertex
// flagged Closing finishes a triangle made of it and the two vertices
// before it. A triangle that continues the strip costs one vertex, any other
// costs three.
func EncodeStrip(tris [][3]int) []StripVertex {
	stream := make([]StripVertex, 0, len(tris)*3)
	flip := false
	for iFace, tri := range tris {
		var ordered [3]int
		for k, corner := range stripCornerOrder {
			ordered[k] = tri[corner]
		}

		checkIndex, addIndex := 2, 1
		if flip {
			checkIndex, addIndex = 1, 2
		}

		if n := len(stream); n >= 2 &&
			ordered[checkIndex] == stream[n-1].Vertex &&
			ordered[0] == stream[n-2].Vertex {
			stream = append(stream, StripVertex{
				Vertex:  ordered[addIndex],
				Face:    iFace,
				Corner:  stripCornerOrder[addIndex],
				Closing: true,
			})
			flip = !flip
			continue
		}

		for k := range ordered {
			stream = append(stream, StripVertex{
				Vertex:  ordered[k],
				Face:    iFace,
				Corner:  stripCornerOrder[k],
				Closing: k == 2,
			})
		}
		flip = false
	}
	return stream
}

// DecodeStrip expands closing flags to triangles of stream positions.
func DecodeStrip(closing []bool) ([][3]int, error) {
	tris := make([][3]int, 0, len(closing))
	flip := false
	for j, c := range closing {
		if !c {
			flip = false
			continue
		}
		if j < 2 {
			return nil, utils.DataInconsistencyf("vertex %d closes a triangle without two predecessors", j)
		}
		if flip {
			tris = append(tris, [3]int{j - 2, j - 1, j})
		} else {
			tris = append(tris, [3]int{j - 2, j, j - 1})
		}
		flip = !flip
	}
	return tris, nil
}

func StripClosing(stream []StripVertex) []bool {
	closing := make([]bool, len(stream))
	for i := range stream {
		closing[i] = stream[i].Closing
	}
	return closing
}
