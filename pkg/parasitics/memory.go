package parasitics

import (
	"fmt"
	"sync"
)

// NodeFlags describe what a capacitance node stands for.
type NodeFlags uint8

const (
	FlagITerm NodeFlags = 1 << iota
	FlagBTerm
	FlagBranch
	FlagInternal
)

// MemoryDB is an in-memory Provider, used by the file loaders and tests.
//
// Nets and capacitance nodes are numbered from 1 in creation order.
type MemoryDB struct {
	mu       sync.RWMutex
	corners  int
	control  Control
	nets     []*MemNet
	netByID  map[uint32]*MemNet
	capNodes []*MemCapNode // index 0 unused
	blocks   map[int]*MemoryDB
}

// NewMemoryDB creates an empty block storing the given number of corners.
func NewMemoryDB(corners int) *MemoryDB {
	if corners < 1 {
		corners = 1
	}
	return &MemoryDB{
		corners:  corners,
		netByID:  make(map[uint32]*MemNet),
		capNodes: []*MemCapNode{nil},
	}
}

// CornerCount implements Provider.
func (db *MemoryDB) CornerCount() int { return db.corners }

// Control implements Provider.
func (db *MemoryDB) Control() Control {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.control
}

// SetControl replaces the extraction-control flags.
func (db *MemoryDB) SetControl(c Control) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.control = c
}

// Nets implements Provider.
func (db *MemoryDB) Nets() []Net {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]Net, len(db.nets))
	for i, n := range db.nets {
		out[i] = n
	}
	return out
}

// Net implements Provider.
func (db *MemoryDB) Net(id uint32) (Net, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	n, ok := db.netByID[id]
	if !ok {
		return nil, false
	}
	return n, true
}

// NetByName returns the first net with the given name.
func (db *MemoryDB) NetByName(name string) (*MemNet, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, n := range db.nets {
		if n.name == name {
			return n, true
		}
	}
	return nil, false
}

// CapNode implements Provider.
func (db *MemoryDB) CapNode(id uint32) (CapNode, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if id == 0 || int(id) >= len(db.capNodes) {
		return nil, false
	}
	return db.capNodes[id], true
}

// CornerBlock implements Provider.
func (db *MemoryDB) CornerBlock(corner int) Provider {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if blk, ok := db.blocks[corner]; ok {
		return blk
	}
	return db
}

// AttachCornerBlock registers a separate block holding the parasitics of one
// extraction corner. Nets are matched by id.
func (db *MemoryDB) AttachCornerBlock(corner int, blk *MemoryDB) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.blocks == nil {
		db.blocks = make(map[int]*MemoryDB)
	}
	db.blocks[corner] = blk
}

// AddNet creates a net and returns it.
func (db *MemoryDB) AddNet(name string, sig SigType) *MemNet {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := &MemNet{
		db:    db,
		id:    uint32(len(db.nets) + 1),
		name:  name,
		sig:   sig,
		jids:  make(map[int32]uint32),
		terms: -1,
	}
	db.nets = append(db.nets, n)
	db.netByID[n.id] = n
	return n
}

// AddCapNode creates a capacitance node on net. node is the terminal number
// for terminals and the junction id otherwise.
func (db *MemoryDB) AddCapNode(net *MemNet, node uint32, flags NodeFlags) *MemCapNode {
	db.mu.Lock()
	defer db.mu.Unlock()
	cn := &MemCapNode{
		id:    uint32(len(db.capNodes)),
		net:   net.id,
		node:  node,
		flags: flags,
	}
	db.capNodes = append(db.capNodes, cn)
	net.capNodes = append(net.capNodes, cn.id)
	return cn
}

func (db *MemoryDB) capNode(id uint32) *MemCapNode {
	if id == 0 || int(id) >= len(db.capNodes) {
		return nil
	}
	return db.capNodes[id]
}

// MarkBranches flags every non-terminal node touched by three or more
// segments as a branch point.
func (db *MemoryDB) MarkBranches() {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, cn := range db.capNodes[1:] {
		if cn.flags&(FlagITerm|FlagBTerm) == 0 && cn.children >= 3 {
			cn.flags |= FlagBranch
		}
	}
}

// MergeRSegs implements Merger. Each run is replaced by a single segment
// spanning from the first segment's source to the last segment's target and
// carrying the summed resistance and capacitance.
func (db *MemoryDB) MergeRSegs(netID uint32, runs [][]RSeg) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	net, ok := db.netByID[netID]
	if !ok {
		return fmt.Errorf("parasitics: net %d not found", netID)
	}
	for _, run := range runs {
		if len(run) < 2 {
			continue
		}
		first, ok1 := run[0].(*MemRSeg)
		last, ok2 := run[len(run)-1].(*MemRSeg)
		if !ok1 || !ok2 {
			return fmt.Errorf("parasitics: net %d: foreign segment in merge run", netID)
		}
		merged := &MemRSeg{
			id:     last.id,
			src:    first.src,
			tgt:    last.tgt,
			shape:  last.shape,
			x:      last.x,
			y:      last.y,
			res:    make([]float64, db.corners),
			gndCap: make([]float64, db.corners),
			ccCap:  make([]float64, db.corners),
		}
		drop := make(map[*MemRSeg]bool, len(run))
		for _, rs := range run {
			m, ok := rs.(*MemRSeg)
			if !ok {
				return fmt.Errorf("parasitics: net %d: foreign segment in merge run", netID)
			}
			for c := 0; c < db.corners; c++ {
				merged.res[c] += m.res[c]
				merged.gndCap[c] += m.gndCap[c]
				merged.ccCap[c] += m.ccCap[c]
			}
			drop[m] = true
			if cn := db.capNode(m.src); cn != nil {
				cn.children--
			}
			if cn := db.capNode(m.tgt); cn != nil {
				cn.children--
			}
		}
		if cn := db.capNode(merged.src); cn != nil {
			cn.children++
		}
		if cn := db.capNode(merged.tgt); cn != nil {
			cn.children++
		}

		kept := net.rsegs[:0:0]
		for _, rs := range net.rsegs {
			switch {
			case rs == last:
				kept = append(kept, merged)
			case drop[rs]:
			default:
				kept = append(kept, rs)
			}
		}
		net.rsegs = kept
	}
	return nil
}

// MarkPreMerged implements Merger.
func (db *MemoryDB) MarkPreMerged(maxCap float64) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.control.PreMerged = true
	db.control.PreMergeCap = maxCap
}

// MemNet is the Net implementation of MemoryDB.
type MemNet struct {
	db       *MemoryDB
	id       uint32
	name     string
	sig      SigType
	terms    int
	capNodes []uint32
	rsegs    []*MemRSeg
	zero     *MemRSeg
	wire     bool
	jids     map[int32]uint32
}

func (n *MemNet) ID() uint32       { return n.id }
func (n *MemNet) Name() string     { return n.name }
func (n *MemNet) SigType() SigType { return n.sig }
func (n *MemNet) HasWire() bool    { return n.wire }

// TermCount returns the explicit terminal count, or the number of terminal
// capacitance nodes when none was set.
func (n *MemNet) TermCount() int {
	if n.terms >= 0 {
		return n.terms
	}
	n.db.mu.RLock()
	defer n.db.mu.RUnlock()
	cnt := 0
	for _, id := range n.capNodes {
		if cn := n.db.capNode(id); cn != nil && cn.flags&(FlagITerm|FlagBTerm) != 0 {
			cnt++
		}
	}
	return cnt
}

// SetTermCount overrides the terminal count.
func (n *MemNet) SetTermCount(cnt int) { n.terms = cnt }

// RSegs implements Net.
func (n *MemNet) RSegs() []RSeg {
	n.db.mu.RLock()
	defer n.db.mu.RUnlock()
	out := make([]RSeg, len(n.rsegs))
	for i, rs := range n.rsegs {
		out[i] = rs
	}
	return out
}

// ZeroRSeg implements Net.
func (n *MemNet) ZeroRSeg() RSeg {
	if n.zero == nil {
		return nil
	}
	return n.zero
}

// RCDisconnected implements Net.
func (n *MemNet) RCDisconnected() bool {
	return Components(n) > 1
}

// TermJunction implements Net.
func (n *MemNet) TermJunction(termMap int32) uint32 {
	return n.jids[termMap]
}

// SetTermJunction records the wire junction a terminal lands on and marks
// the net as having a wire.
func (n *MemNet) SetTermJunction(termMap int32, jid uint32) {
	n.wire = true
	n.jids[termMap] = jid
}

// SetZeroRSeg sets the anchor segment of the net. gnd and cc hold one value
// per corner; missing entries are zero.
func (n *MemNet) SetZeroRSeg(driver uint32, x, y int, gnd, cc []float64) *MemRSeg {
	rs := n.newRSeg(0, 0, driver, 0, x, y, nil, gnd, cc)
	n.zero = rs
	return rs
}

// AddRSeg appends a resistor segment from src to tgt. Both nodes must belong
// to the net.
func (n *MemNet) AddRSeg(src, tgt, shape uint32, x, y int, res, gnd, cc []float64) (*MemRSeg, error) {
	n.db.mu.Lock()
	defer n.db.mu.Unlock()
	s := n.db.capNode(src)
	t := n.db.capNode(tgt)
	if s == nil || s.net != n.id {
		return nil, fmt.Errorf("parasitics: net %s: source node %d not on net", n.name, src)
	}
	if t == nil || t.net != n.id {
		return nil, fmt.Errorf("parasitics: net %s: target node %d not on net", n.name, tgt)
	}
	rs := n.newRSeg(uint32(len(n.rsegs)+1), src, tgt, shape, x, y, res, gnd, cc)
	n.rsegs = append(n.rsegs, rs)
	s.children++
	t.children++
	return rs, nil
}

func (n *MemNet) newRSeg(id, src, tgt, shape uint32, x, y int, res, gnd, cc []float64) *MemRSeg {
	corners := n.db.corners
	rs := &MemRSeg{
		id:     id,
		src:    src,
		tgt:    tgt,
		shape:  shape,
		x:      x,
		y:      y,
		res:    make([]float64, corners),
		gndCap: make([]float64, corners),
		ccCap:  make([]float64, corners),
	}
	copy(rs.res, res)
	copy(rs.gndCap, gnd)
	copy(rs.ccCap, cc)
	return rs
}

// MemRSeg is the RSeg implementation of MemoryDB.
type MemRSeg struct {
	id     uint32
	src    uint32
	tgt    uint32
	shape  uint32
	x, y   int
	res    []float64
	gndCap []float64
	ccCap  []float64
}

func (r *MemRSeg) ID() uint32         { return r.id }
func (r *MemRSeg) SourceNode() uint32 { return r.src }
func (r *MemRSeg) TargetNode() uint32 { return r.tgt }
func (r *MemRSeg) ShapeID() uint32    { return r.shape }
func (r *MemRSeg) Coords() (int, int) { return r.x, r.y }

// Resistance implements RSeg.
func (r *MemRSeg) Resistance(corner int) float64 {
	if corner < 0 || corner >= len(r.res) {
		return 0
	}
	return r.res[corner]
}

// GndTotalCap implements RSeg.
func (r *MemRSeg) GndTotalCap(gnd, total []float64, mcf float64) {
	for c := range r.gndCap {
		if c < len(gnd) {
			gnd[c] = r.gndCap[c]
		}
		if c < len(total) {
			total[c] = r.gndCap[c] + mcf*r.ccCap[c]
		}
	}
}

// AddGndTotalCap implements RSeg.
func (r *MemRSeg) AddGndTotalCap(gnd, total []float64, mcf float64) {
	for c := range r.gndCap {
		if c < len(gnd) {
			gnd[c] += r.gndCap[c]
		}
		if c < len(total) {
			total[c] += r.gndCap[c] + mcf*r.ccCap[c]
		}
	}
}

// AllRes implements RSeg.
func (r *MemRSeg) AllRes(res []float64) {
	copy(res, r.res)
}

// AddAllRes implements RSeg.
func (r *MemRSeg) AddAllRes(res []float64) {
	for c := range r.res {
		if c < len(res) {
			res[c] += r.res[c]
		}
	}
}

// MemCapNode is the CapNode implementation of MemoryDB.
type MemCapNode struct {
	id       uint32
	net      uint32
	node     uint32
	flags    NodeFlags
	children int
}

func (c *MemCapNode) ID() uint32         { return c.id }
func (c *MemCapNode) Node() uint32       { return c.node }
func (c *MemCapNode) IsITerm() bool      { return c.flags&FlagITerm != 0 }
func (c *MemCapNode) IsBTerm() bool      { return c.flags&FlagBTerm != 0 }
func (c *MemCapNode) IsBranch() bool     { return c.flags&FlagBranch != 0 }
func (c *MemCapNode) ChildrenCount() int { return c.children }

// IsTreeNode implements CapNode.
func (c *MemCapNode) IsTreeNode() bool {
	return c.flags&(FlagITerm|FlagBTerm|FlagBranch) != 0
}

// SetBranch sets or clears the branch flag.
func (c *MemCapNode) SetBranch(on bool) {
	if on {
		c.flags |= FlagBranch
	} else {
		c.flags &^= FlagBranch
	}
}
