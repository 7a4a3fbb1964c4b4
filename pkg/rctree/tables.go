package rctree

import "fmt"

// NodeRef addresses a node of the current node table. It stops resolving
// once the table is reset for another net.
type NodeRef struct {
	ID  uint32
	Gen uint32
}

// Ref returns a handle to node id of the current table.
func (t *Tree) Ref(id uint32) NodeRef {
	return NodeRef{ID: id, Gen: t.gen}
}

// Node resolves a handle.
func (t *Tree) Node(ref NodeRef) (*RCNode, error) {
	if ref.Gen != t.gen {
		return nil, fmt.Errorf("%w: generation %d, table at %d", ErrStaleRef, ref.Gen, t.gen)
	}
	if ref.ID == 0 || int(ref.ID) >= len(t.nodes) {
		return nil, fmt.Errorf("%w: node %d out of range", ErrStaleRef, ref.ID)
	}
	return t.nodes[ref.ID], nil
}

// NodeCount returns the number of nodes built for the current net,
// including inserted junctions.
func (t *Tree) NodeCount() int {
	return len(t.nodes) - int(t.base)
}

// DriverID returns the local id of the current net's driver node.
func (t *Tree) DriverID() uint32 { return t.driverID }

// Children returns the child ids of node id. The slice aliases the index
// table and is only valid until the next mutation.
func (t *Tree) Children(id uint32) []uint32 {
	if id == 0 || int(id) >= len(t.nodes) {
		return nil
	}
	n := t.nodes[id]
	return t.children[n.firstChild : n.firstChild+t.childCount(n)]
}

// allocNode takes a node from the pool, gives it the next local id and,
// when withChildren is set, reserves childCnt child slots for it.
func (t *Tree) allocNode(childCnt int, withChildren bool) (*RCNode, uint32) {
	n := t.pool.Get(t.cornerCount)
	id := uint32(len(t.nodes))
	t.nodes = append(t.nodes, n)
	t.itermIndex = append(t.itermIndex, 0)
	t.btermIndex = append(t.btermIndex, 0)
	if withChildren {
		t.makeChildren(n, childCnt)
	}
	return n, id
}

// makeChildren reserves cnt slots plus the terminator.
func (t *Tree) makeChildren(n *RCNode, cnt int) int {
	n.firstChild = len(t.children)
	n.childCap = cnt
	for i := 0; i <= cnt; i++ {
		t.children = append(t.children, 0)
	}
	return n.firstChild
}

// addChild writes child into the first free slot of parent.
func (t *Tree) addChild(parent *RCNode, child uint32) error {
	end := parent.firstChild + parent.childCap
	for i := parent.firstChild; i < end; i++ {
		if t.children[i] == 0 {
			t.children[i] = child
			return nil
		}
	}
	return fmt.Errorf("%w: node %d already has %d children", ErrChildOverflow, child, parent.childCap)
}

// childCount scans the child run of n up to the terminator.
func (t *Tree) childCount(n *RCNode) int {
	cnt := 0
	for i := n.firstChild; t.children[i] != 0; i++ {
		cnt++
	}
	return cnt
}

// reset returns every node to the pool and truncates the tables.
// Storage is kept for the next net.
func (t *Tree) reset() {
	for _, n := range t.nodes {
		t.pool.Put(n)
	}
	clear(t.nodes)
	t.nodes = t.nodes[:0]
	t.children = t.children[:0]
	t.itermIndex = t.itermIndex[:0]
	t.btermIndex = t.btermIndex[:0]
	t.gen++
}
