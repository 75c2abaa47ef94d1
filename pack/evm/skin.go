package evm

import (
	"sort"

	"github.com/mogaika/mgs2_tools/pack/geom"
	"github.com/mogaika/mgs2_tools/utils"
)

// Influence is the share of one skeleton bone in a vertex.
type Influence struct {
	Bone   int
	Weight float32
}

func NewSkinTable(bones []int) SkinTable {
	sorted := append([]int(nil), bones...)
	sort.Ints(sorted)
	var t SkinTable
	for i := range t {
		t[i] = SKIN_SLOT_UNUSED
	}
	for i, b := range sorted {
		t[i] = uint8(b)
	}
	return t
}

func (t SkinTable) Slot(bone int) (int, bool) {
	for i, b := range t {
		if b != SKIN_SLOT_UNUSED && int(b) == bone {
			return i, true
		}
	}
	return 0, false
}

// Bone returns the skeleton bone of slot, false for unused slots.
func (t SkinTable) Bone(slot int) (int, bool) {
	if slot < 0 || slot >= len(t) || t[slot] == SKIN_SLOT_UNUSED {
		return 0, false
	}
	return int(t[slot]), true
}

// skinSet is the list of distinct bones used by a mesh in first use order.
type skinSet []int

func (s skinSet) contains(bone int) bool {
	for _, b := range s {
		if b == bone {
			return true
		}
	}
	return false
}

func (s skinSet) union(o skinSet) skinSet {
	u := append(skinSet(nil), s...)
	for _, b := range o {
		if !u.contains(b) {
			u = append(u, b)
		}
	}
	return u
}

func (s *skinSet) add(bone int) error {
	if s.contains(bone) {
		return nil
	}
	if bone < 0 || bone >= SKIN_SLOT_UNUSED {
		return utils.DataInconsistencyf("bone %d does not fit into a skin table", bone)
	}
	if len(*s) == SKIN_TABLE_SIZE {
		return utils.DataInconsistencyf("more than %d bones %v and %d", SKIN_TABLE_SIZE, *s, bone)
	}
	*s = append(*s, bone)
	return nil
}

// MergeSkinTables walks the meshes left to right and joins neighbours into
// one shared table while the union still fits. When the next mesh does not
// fit, the run so far gets its sorted union and a new run starts with that
// mesh. Meshes of the final run keep their own sorted tables.
func MergeSkinTables(sets [][]int) []SkinTable {
	tables := make([]SkinTable, len(sets))
	start := 0
	var run skinSet
	for j, s := range sets {
		u := run.union(s)
		if len(u) <= SKIN_TABLE_SIZE {
			run = u
			continue
		}
		t := NewSkinTable(run)
		for k := start; k < j; k++ {
			tables[k] = t
		}
		Trace.Printf("[evm] skin run %d..%d shares %v", start, j-1, t)
		start = j
		run = skinSet(nil).union(s)
	}
	for j := start; j < len(sets); j++ {
		tables[j] = NewSkinTable(sets[j])
	}
	return tables
}

// PackWeights quantizes influences to pairs that sum to exactly
// WEIGHT_TOTAL, heaviest first. Rounding error is moved onto the last
// nonzero pair. Returns the record and the number of nonzero pairs.
func PackWeights(infl []Influence, table SkinTable) (Weights, int, error) {
	var w Weights
	if len(infl) > MAX_INFLUENCES {
		return w, 0, utils.DataInconsistencyf("%d influences, at most %d fit", len(infl), MAX_INFLUENCES)
	}

	type pair struct {
		slot   int
		weight int
	}
	pairs := make([]pair, MAX_INFLUENCES)
	for i, in := range infl {
		slot, ok := table.Slot(in.Bone)
		if !ok {
			return w, 0, utils.DataInconsistencyf("bone %d is not in skin table %v", in.Bone, table)
		}
		q := int(geom.Round(in.Weight * WEIGHT_TOTAL))
		if q < 0 || q > WEIGHT_TOTAL || in.Weight != in.Weight {
			return w, 0, utils.DataInconsistencyf("weight %v of bone %d is out of range", in.Weight, in.Bone)
		}
		pairs[i] = pair{slot: slot, weight: q}
	}
	sort.SliceStable(pairs, func(a, b int) bool { return pairs[a].weight > pairs[b].weight })

	count, sum := 0, 0
	for i := range pairs {
		if pairs[i].weight == 0 {
			pairs[i].slot = 0
			continue
		}
		count++
		sum += pairs[i].weight
	}
	if count == 0 {
		return w, 0, utils.DataInconsistencyf("vertex has no weight")
	}
	for sum < WEIGHT_TOTAL {
		pairs[count-1].weight++
		sum++
	}
	for sum > WEIGHT_TOTAL {
		pairs[count-1].weight--
		sum--
		if pairs[count-1].weight == 0 {
			count--
			pairs[count].slot = 0
		}
	}

	for i, p := range pairs {
		w.Weights[i] = uint8(p.weight)
		w.Slots[i] = uint8(p.slot << SKIN_SLOT_SHIFT)
	}
	return w, count, nil
}

// Unpack resolves the first numSkin pairs to skeleton bones. The record must
// hold a valid distribution: sorted, summing to WEIGHT_TOTAL.
func (w Weights) Unpack(numSkin int, table SkinTable) ([]Influence, error) {
	sum := 0
	for i, v := range w.Weights {
		sum += int(v)
		if i > 0 && v > w.Weights[i-1] {
			return nil, utils.DataInconsistencyf("weights %v are not sorted", w.Weights)
		}
	}
	if sum != WEIGHT_TOTAL {
		return nil, utils.DataInconsistencyf("weights %v sum to %d", w.Weights, sum)
	}

	infl := make([]Influence, 0, numSkin)
	for i := 0; i < numSkin && i < MAX_INFLUENCES; i++ {
		if w.Weights[i] == 0 {
			continue
		}
		slot := int(w.Slots[i] >> SKIN_SLOT_SHIFT)
		bone, ok := table.Bone(slot)
		if !ok {
			return nil, utils.DataInconsistencyf("weight pair %d uses empty skin slot %d", i, slot)
		}
		infl = append(infl, Influence{Bone: bone, Weight: float32(w.Weights[i]) / WEIGHT_TOTAL})
	}
	return infl, nil
}
