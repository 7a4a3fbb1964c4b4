package rctree

// MakeGraph copies the node graph of the current net into Tnodes and
// returns how many were made. The driver is made first, so Tnodes()[0] is
// the root. The Tnodes share nothing with the node table.
func (t *Tree) MakeGraph() int {
	cnt := len(t.nodes)
	if cap(t.tmap) < cnt {
		t.tmap = make([]*Tnode, cnt)
	}
	t.tmap = t.tmap[:cnt]
	clear(t.tmap)
	clear(t.tnodes)
	t.tnodes = t.tnodes[:0]

	for id := t.base; id < uint32(cnt); id++ {
		tn := t.makeTnode(id)
		for k, child := range t.Children(id) {
			tn.Children[k] = t.makeTnode(child)
		}
	}
	return len(t.tnodes)
}

func (t *Tree) makeTnode(id uint32) *Tnode {
	if tn := t.tmap[id]; tn != nil {
		return tn
	}
	node := t.nodes[id]
	tn := newTnode(node, t.childCount(node))
	t.tmap[id] = tn
	t.tnodes = append(t.tnodes, tn)
	return tn
}

// Tnodes returns the Tnodes made by the last MakeGraph in creation order.
func (t *Tree) Tnodes() []*Tnode { return t.tnodes }
