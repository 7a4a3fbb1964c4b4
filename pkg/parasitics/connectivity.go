package parasitics

// unionFind groups capacitance nodes joined by resistor segments.
type unionFind struct {
	parent map[uint32]uint32
	rank   map[uint32]int
}

func newUnionFind() *unionFind {
	return &unionFind{
		parent: make(map[uint32]uint32),
		rank:   make(map[uint32]int),
	}
}

func (uf *unionFind) add(id uint32) {
	if _, ok := uf.parent[id]; !ok {
		uf.parent[id] = id
		uf.rank[id] = 0
	}
}

// find returns the representative of id, compressing the path behind it.
func (uf *unionFind) find(id uint32) uint32 {
	root := id
	for uf.parent[root] != root {
		root = uf.parent[root]
	}
	for id != root {
		next := uf.parent[id]
		uf.parent[id] = root
		id = next
	}
	return root
}

func (uf *unionFind) union(a, b uint32) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	switch {
	case uf.rank[ra] < uf.rank[rb]:
		uf.parent[ra] = rb
	case uf.rank[ra] > uf.rank[rb]:
		uf.parent[rb] = ra
	default:
		uf.parent[rb] = ra
		uf.rank[ra]++
	}
}

// Components returns the number of connected components formed by the
// resistor segments of net. A net without segments has zero components.
func Components(net Net) int {
	uf := newUnionFind()
	for _, rs := range net.RSegs() {
		uf.add(rs.SourceNode())
		uf.add(rs.TargetNode())
		uf.union(rs.SourceNode(), rs.TargetNode())
	}
	roots := make(map[uint32]struct{})
	for id := range uf.parent {
		roots[uf.find(id)] = struct{}{}
	}
	return len(roots)
}
