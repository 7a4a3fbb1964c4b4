package rctree

import (
	"go.uber.org/zap"

	"github.com/OpenTraceLab/OpenTraceRCX/pkg/parasitics"
)

const unvisited = -1

// IsTree checks that the nodes of the current net form one tree rooted at
// the driver: every node is reached exactly once and nothing is left over.
// It returns a *StructureError otherwise.
func (t *Tree) IsTree(net parasitics.Net) error {
	cnt := len(t.nodes) - int(t.base)
	if cnt <= 0 {
		return nil
	}
	if cap(t.stamps) < cnt {
		t.stamps = make([]int64, cnt)
	}
	vis := t.stamps[:cnt]
	for i := range vis {
		vis[i] = unvisited
	}

	type visit struct{ node, parent uint32 }
	var stack []visit
	components := 0
	for ii := t.base; ii < uint32(len(t.nodes)); ii++ {
		if vis[ii-t.base] != unvisited {
			continue
		}
		components++
		if components > 1 {
			t.netLogger(net).Warn("routing is not connected", zap.Uint32("node", ii))
			return &StructureError{Kind: ErrNotConnected, NetID: net.ID(), NetName: net.Name(), Node: ii}
		}

		stack = append(stack[:0], visit{ii, ii})
		for len(stack) > 0 {
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if prev := vis[v.node-t.base]; prev != unvisited {
				t.netLogger(net).Warn("node has two parents",
					zap.Uint32("node", v.node),
					zap.Int64("parent", prev),
					zap.Uint32("other_parent", v.parent))
				return &StructureError{
					Kind:    ErrTwoParents,
					NetID:   net.ID(),
					NetName: net.Name(),
					Node:    v.node,
					Parents: [2]uint32{uint32(prev), v.parent},
				}
			}
			vis[v.node-t.base] = int64(v.parent)

			kids := t.Children(v.node)
			for k := len(kids) - 1; k >= 0; k-- {
				stack = append(stack, visit{kids[k], v.node})
			}
		}
	}
	return nil
}
