package geom

import (
	"github.com/mogaika/mgs2_tools/utils"
)

// WindingFix rewrites the head of a vertex stream: element i of the new head
// is a copy of old element Order[i], the first Consumed old elements are
// dropped and the rest follow unchanged.
type WindingFix struct {
	Order    []int
	Consumed int
	Closing  []bool
}

// FindWindingFix detects a group that would be stitched onto the previous
// group with inverted winding: the previous strip ends on an odd run of
// closing vertices and the new group starts on the same edge. Returns nil
// when the group is fine.
func FindWindingFix(prevPos [][3]int16, prevClosing []bool, curPos [][3]int16, curClosing []bool) *WindingFix {
	if len(prevPos) < 2 || len(curPos) < 3 {
		return nil
	}

	odd := false
	for j := len(prevClosing) - 1; j >= 0 && prevClosing[j]; j-- {
		odd = !odd
	}
	if !odd {
		return nil
	}
	if !utils.SameXYZ(prevPos[len(prevPos)-2], curPos[0]) || !utils.SameXYZ(prevPos[len(prevPos)-1], curPos[1]) {
		return nil
	}

	if len(curPos) == 3 || !curClosing[3] {
		return &WindingFix{
			Order:    []int{1, 2, 0},
			Consumed: 3,
			Closing:  []bool{false, false, true},
		}
	}

	fix := &WindingFix{
		Order:    []int{3, 2, 1, 0},
		Consumed: 4,
		Closing:  []bool{!curClosing[3], !curClosing[2], !curClosing[1], !curClosing[0]},
	}
	if len(curPos) > 4 && curClosing[4] {
		fix.Order = append(fix.Order, fix.Order[1], fix.Order[0])
		fix.Closing = append(fix.Closing, fix.Closing[1], fix.Closing[0])
	}
	return fix
}

// ApplyWindingFix returns s with its head rewritten. Every stream parallel to
// the vertices goes through the same fix.
func ApplyWindingFix[T any](fix *WindingFix, s []T) []T {
	if fix == nil || s == nil {
		return s
	}
	r := make([]T, 0, len(s)-fix.Consumed+len(fix.Order))
	for _, i := range fix.Order {
		r = append(r, s[i])
	}
	return append(r, s[fix.Consumed:]...)
}

func ApplyWindingFixClosing(fix *WindingFix, closing []bool) []bool {
	if fix == nil {
		return closing
	}
	r := make([]bool, 0, len(closing)-fix.Consumed+len(fix.Order))
	r = append(r, fix.Closing...)
	return append(r, closing[fix.Consumed:]...)
}
