package rctree

import (
	"fmt"
	"slices"

	"github.com/OpenTraceLab/OpenTraceRCX/pkg/parasitics"
)

// localCapNodes maps the database ids of a net's capacitance nodes onto
// dense local indices. The local index of an id is its position in
// first-seen order; lookups go through the sorted copy.
type localCapNodes struct {
	order  []uint32 // first-seen order
	sorted []uint32
	back   []int // sorted position -> order position
	pos    map[uint32]int
}

// build collects the endpoints of rsegs. seen is scratch space owned by the
// caller; it is cleared before use.
func (m *localCapNodes) build(rsegs []parasitics.RSeg, seen map[uint32]struct{}) {
	clear(seen)
	m.order = m.order[:0]
	for _, rs := range rsegs {
		for _, id := range [2]uint32{rs.SourceNode(), rs.TargetNode()} {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			m.order = append(m.order, id)
		}
	}
	clear(seen)

	m.sorted = append(m.sorted[:0], m.order...)
	slices.Sort(m.sorted)

	m.back = m.back[:0]
	jj := 0
	for ; jj < len(m.sorted); jj++ {
		if m.order[jj] != m.sorted[jj] {
			break
		}
		m.back = append(m.back, jj)
	}
	if jj == len(m.sorted) {
		return
	}

	// Ids arrived out of order.
	if m.pos == nil {
		m.pos = make(map[uint32]int, len(m.order)-jj)
	}
	clear(m.pos)
	for k := jj; k < len(m.order); k++ {
		m.pos[m.order[k]] = k
	}
	for k := jj; k < len(m.sorted); k++ {
		m.back = append(m.back, m.pos[m.sorted[k]])
	}
}

func (m *localCapNodes) lookup(id uint32) (int, bool) {
	i, ok := slices.BinarySearch(m.sorted, id)
	if !ok {
		return 0, false
	}
	return m.back[i], true
}

func (m *localCapNodes) size() int { return len(m.sorted) }

// localIndex is lookup for ids that must belong to the current net.
func (t *Tree) localIndex(id uint32) (int, error) {
	i, ok := t.capMap.lookup(id)
	if !ok {
		return 0, fmt.Errorf("%w: %d has no local index on net %d", ErrCapNodeNotFound, id, t.net.ID())
	}
	return i, nil
}

// NetLocalCapNode returns the local index of capacitance node id in the
// current net.
func (t *Tree) NetLocalCapNode(id uint32) (int, bool) {
	return t.capMap.lookup(id)
}
