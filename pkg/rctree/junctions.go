package rctree

// InsertZeroJunctions moves the fanout of every node with two or more
// children onto a zero-valued copy of the node, so nodes carrying R and C
// have at most one child. It returns the node count afterwards.
func (t *Tree) InsertZeroJunctions() int {
	if t.driver() == nil {
		return 0
	}
	// Copies are appended past last and are not revisited.
	last := uint32(len(t.nodes))
	for id := t.driverID; id < last; id++ {
		node := t.nodes[id]
		cnt := t.childCount(node)
		if cnt < 2 {
			continue
		}
		t.duplicateJunction(node, cnt)
	}
	return t.NodeCount()
}

// duplicateJunction hands the child run of node to a new zero-valued
// junction and makes that junction the only child of node.
func (t *Tree) duplicateJunction(node *RCNode, cnt int) {
	jnode, jid := t.allocNode(cnt, false)
	jnode.firstChild = node.firstChild
	jnode.childCap = node.childCap
	jnode.X, jnode.Y = node.X, node.Y
	jnode.NetID = node.NetID
	jnode.CapNodeID = node.CapNodeID
	jnode.SplitCount = node.SplitCount
	jnode.JunctionID = node.JunctionID

	t.makeChildren(node, 1)
	// A fresh run of one slot cannot overflow.
	_ = t.addChild(node, jid)
}
