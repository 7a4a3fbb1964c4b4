package rctree

// RCNode is one point of a net's RC graph while the tree is being built.
// RCNodes belong to the Tree's pool and are recycled on reset.
type RCNode struct {
	Res    []float64 // per corner
	GndCap []float64 // per corner
	Cap    []float64 // total capacitance per corner

	X, Y int

	// TermMap is the instance terminal number (positive), the negated block
	// terminal number, or 0 for a plain junction.
	TermMap    int32
	NetID      uint32
	CapNodeID  uint32
	SplitCount int
	JunctionID uint32

	firstChild int // offset into the children index table
	childCap   int // slots reserved at firstChild, excluding the terminator
}

func (n *RCNode) reset(corners int) {
	n.Res = resize(n.Res, corners)
	n.GndCap = resize(n.GndCap, corners)
	n.Cap = resize(n.Cap, corners)
	n.X, n.Y = 0, 0
	n.TermMap = 0
	n.NetID = 0
	n.CapNodeID = 0
	n.SplitCount = 0
	n.JunctionID = 0
	n.firstChild = 0
	n.childCap = 0
}

// resize returns a zeroed slice of length n, reusing s when it is big enough.
func resize(s []float64, n int) []float64 {
	if cap(s) < n {
		return make([]float64, n)
	}
	s = s[:n]
	for i := range s {
		s[i] = 0
	}
	return s
}

// Tnode is a node of a finished RC tree. Tnodes are independent of the Tree
// that produced them.
type Tnode struct {
	Res    []float64
	GndCap []float64
	Cap    []float64

	X, Y       int
	TermMap    int32
	NetID      uint32
	CapNodeID  uint32
	SplitCount int
	JunctionID uint32

	Children []*Tnode
}

func newTnode(n *RCNode, childCnt int) *Tnode {
	t := &Tnode{
		Res:        append([]float64(nil), n.Res...),
		GndCap:     append([]float64(nil), n.GndCap...),
		Cap:        append([]float64(nil), n.Cap...),
		X:          n.X,
		Y:          n.Y,
		TermMap:    n.TermMap,
		NetID:      n.NetID,
		CapNodeID:  n.CapNodeID,
		SplitCount: 1,
		JunctionID: n.JunctionID,
	}
	if childCnt > 0 {
		t.Children = make([]*Tnode, childCnt)
	}
	return t
}

// ChildCount returns the number of children.
func (t *Tnode) ChildCount() int { return len(t.Children) }

// Walk visits the tree rooted at t depth-first, parents before children.
// Returning false from fn stops the walk.
func (t *Tnode) Walk(fn func(node *Tnode, depth int) bool) {
	type frame struct {
		node  *Tnode
		depth int
	}
	stack := []frame{{t, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.node == nil {
			continue
		}
		if !fn(f.node, f.depth) {
			return
		}
		for i := len(f.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{f.node.Children[i], f.depth + 1})
		}
	}
}

// Free releases the tree rooted at root, children before parents. Each
// node's child array is cleared so no part of the tree stays reachable
// through a retained node.
func Free(root *Tnode) {
	if root == nil {
		return
	}
	type frame struct {
		node     *Tnode
		expanded bool
	}
	stack := []frame{{node: root}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if !top.expanded {
			top.expanded = true
			for _, c := range top.node.Children {
				if c != nil {
					stack = append(stack, frame{node: c})
				}
			}
			continue
		}
		n := top.node
		stack = stack[:len(stack)-1]
		for i := range n.Children {
			n.Children[i] = nil
		}
		n.Children = nil
	}
}
