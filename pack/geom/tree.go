package geom

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/mgs2_tools/utils"
)

// CheckTree verifies a parent index array: parents are -1 or a valid node,
// there is at least one root and no chain loops.
func CheckTree(parents []int) error {
	if len(parents) == 0 {
		return nil
	}
	roots := 0
	for i, p := range parents {
		if p == -1 {
			roots++
		} else if p < 0 || p >= len(parents) {
			return utils.DataInconsistencyf("node %d has parent %d outside of %d nodes", i, p, len(parents))
		}
	}
	if roots == 0 {
		return utils.DataInconsistencyf("none of %d nodes is a root", len(parents))
	}
	for i := range parents {
		if _, err := Ancestors(parents, i); err != nil {
			return err
		}
	}
	return nil
}

// Ancestors lists the chain from the parent of node up to the root. A chain
// longer than the node count means a loop.
func Ancestors(parents []int, node int) ([]int, error) {
	if node < 0 || node >= len(parents) {
		return nil, utils.DataInconsistencyf("node %d outside of %d nodes", node, len(parents))
	}
	var chain []int
	for p := parents[node]; p != -1; p = parents[p] {
		if p < 0 || p >= len(parents) {
			return nil, utils.DataInconsistencyf("node %d has parent %d outside of %d nodes", node, p, len(parents))
		}
		if len(chain) >= len(parents) {
			return nil, utils.DataInconsistencyf("parent chain of node %d loops", node)
		}
		chain = append(chain, p)
	}
	return chain, nil
}

// WorldPosition sums relative positions of node and all its ancestors.
func WorldPosition(parents []int, relative []mgl32.Vec3, node int) (mgl32.Vec3, error) {
	chain, err := Ancestors(parents, node)
	if err != nil {
		return mgl32.Vec3{}, err
	}
	pos := relative[node]
	for _, p := range chain {
		pos = pos.Add(relative[p])
	}
	return pos, nil
}

// RelativePositions is the inverse of WorldPosition: node position minus its
// parent world position, roots relative to base.
func RelativePositions(parents []int, world []mgl32.Vec3, base mgl32.Vec3) ([]mgl32.Vec3, error) {
	if err := CheckTree(parents); err != nil {
		return nil, err
	}
	rel := make([]mgl32.Vec3, len(world))
	for i, p := range parents {
		if p == -1 {
			rel[i] = world[i].Sub(base)
		} else {
			rel[i] = world[i].Sub(world[p])
		}
	}
	return rel, nil
}
