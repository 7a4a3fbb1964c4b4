package rctree

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/OpenTraceLab/OpenTraceRCX/pkg/parasitics"
)

// capScale converts extracted capacitance to the units stored on nodes.
const capScale = 1e-3

// Tree builds RC trees for the nets of one provider. The node pool and the
// index tables are reused from net to net.
type Tree struct {
	p    parasitics.Provider
	log  *zap.Logger
	pool *pool

	nodes    []*RCNode // slot 0 is a placeholder
	children []uint32
	gen      uint32
	base     uint32 // first local id of the current net

	junctions  []uint32 // local capnode index -> node id
	itermIndex []uint32 // node id -> instance terminal number
	btermIndex []uint32 // node id -> block terminal number
	itermCnt   int
	btermCnt   int
	driverID   uint32
	itermID    uint32
	btermID    uint32

	capMap localCapNodes
	seen   map[uint32]struct{}

	tnodes []*Tnode
	tmap   []*Tnode
	stamps []int64 // parent of each visited node

	// per net
	net         parasitics.Net
	cornerNet   parasitics.Net
	block       parasitics.Provider
	cornerIndex int
	cornerCount int
	foreign     bool

	gnd   []float64
	total []float64
	res   []float64
}

// Option configures a Tree.
type Option func(*Tree)

// WithLogger sets the logger used for net diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(t *Tree) {
		if l != nil {
			t.log = l
		}
	}
}

// NewTree creates a tree builder reading from p.
func NewTree(p parasitics.Provider, opts ...Option) *Tree {
	t := &Tree{
		p:           p,
		log:         zap.NewNop(),
		pool:        newPool(),
		seen:        make(map[uint32]struct{}),
		cornerCount: p.CornerCount(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// PoolStats reports checked-out and ever-allocated RC nodes.
func (t *Tree) PoolStats() (live, total int64) {
	return t.pool.Stats()
}

// ITermCount returns the number of nodes of the current net tagged with an
// instance terminal.
func (t *Tree) ITermCount() int { return t.itermCnt }

// BTermCount returns the number of nodes of the current net tagged with a
// block terminal.
func (t *Tree) BTermCount() int { return t.btermCnt }

// DriverITerm returns the instance terminal driving the current net, or 0.
func (t *Tree) DriverITerm() uint32 { return t.itermID }

// DriverBTerm returns the block terminal driving the current net, or 0.
func (t *Tree) DriverBTerm() uint32 { return t.btermID }

// TermOf returns the terminal recorded for node id: the instance terminal
// number, or the negated block terminal number, or 0.
func (t *Tree) TermOf(id uint32) int32 {
	if int(id) >= len(t.itermIndex) {
		return 0
	}
	if it := t.itermIndex[id]; it != 0 {
		return int32(it)
	}
	return -int32(t.btermIndex[id])
}

// MakeTree builds, validates and materializes the RC tree of net. The
// returned root is the driver; n is the number of materialized nodes.
// All errors are scoped to the net.
func (t *Tree) MakeTree(net parasitics.Net, cfg *Config) (*Tnode, int, error) {
	if net.RCDisconnected() {
		t.netLogger(net).Warn("RC network is disconnected")
		return nil, 0, fmt.Errorf("%w: net %d %s", ErrRCDisconnected, net.ID(), net.Name())
	}
	if err := t.BuildGraph(net, cfg); err != nil {
		return nil, 0, err
	}
	n := t.MakeGraph()
	if n == 0 {
		return nil, 0, fmt.Errorf("%w: net %d", ErrDriverMissing, net.ID())
	}
	return t.tnodes[0], n, nil
}

// MakeTreeByID looks the net up by id and builds its tree. With
// Config.PrintTag set the tree is also written to <tag>_net<id>_tnode.
func (t *Tree) MakeTreeByID(netID uint32, cfg *Config) (*Tnode, int, error) {
	net, ok := t.p.Net(netID)
	if !ok {
		return nil, 0, fmt.Errorf("%w: id %d", ErrNetNotFound, netID)
	}
	root, n, err := t.MakeTree(net, cfg)
	if cfg != nil && cfg.PrintTag != "" {
		if err != nil {
			t.log.Warn("failed to make rc tree", zap.Uint32("net_id", netID), zap.Error(err))
		} else if werr := root.WriteTnodesFile(cfg.DebugDir, cfg.PrintTag, t.cornerCount); werr != nil {
			t.log.Warn("cannot write tnode dump", zap.Uint32("net_id", netID), zap.Error(werr))
		}
	}
	return root, n, err
}

// BuildGraph grows and validates the node graph of net without
// materializing it. On success the graph stays in the node table, rooted at
// DriverID, until the next build resets it.
func (t *Tree) BuildGraph(net parasitics.Net, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := t.netLogger(net)

	ctrl := t.p.Control()
	t.foreign = ctrl.Foreign
	if t.foreign && cfg.ForBuffering && !ctrl.RSegCoords {
		log.Warn("extraction data is from SPEF without coordinates, can't make RC tree")
		return ErrForeignNoCoords
	}

	t.net = net
	t.cornerNet = net
	t.cornerIndex = cfg.Corner
	t.block = t.p.CornerBlock(cfg.Corner)
	if cfg.PreMerge {
		if _, err := PreMergeBlock(t.block, cfg.MaxCap, 0); err != nil {
			log.Warn("pre-merge failed", zap.Error(err))
		}
	}
	if t.block != t.p {
		t.cornerIndex = 0
		cn, ok := t.block.Net(net.ID())
		if !ok {
			return fmt.Errorf("%w: id %d in corner block %d", ErrNetNotFound, net.ID(), cfg.Corner)
		}
		t.cornerNet = cn
	}
	t.cornerCount = t.block.CornerCount()
	if t.cornerIndex >= t.cornerCount {
		return fmt.Errorf("rctree: corner %d out of range (%d corners)", t.cornerIndex, t.cornerCount)
	}
	premerged := t.block.Control().PreMerged

	rsegs := t.cornerNet.RSegs()
	if len(rsegs) == 0 {
		log.Warn("net has no extraction data")
		return fmt.Errorf("%w: net %d %s", ErrNoRSegs, net.ID(), net.Name())
	}

	var flow, nodes io.Writer
	if cfg.Test > 1 {
		if f := t.openDebugFile(cfg.DebugDir, "flow.dbg"); f != nil {
			defer f.Close()
			flow = f
		}
		if f := t.openDebugFile(cfg.DebugDir, "node.dbg"); f != nil {
			defer f.Close()
			nodes = f
		}
	}

	if net.TermCount() < 2 {
		log.Warn("net has fewer than two terms, can't make RC tree", zap.Int("terms", net.TermCount()))
		return fmt.Errorf("%w: net %d has %d", ErrTooFewTerms, net.ID(), net.TermCount())
	}
	zrc := t.cornerNet.ZeroRSeg()
	if zrc == nil {
		log.Warn("net has no zero resistor segment")
		return fmt.Errorf("%w: net %d", ErrDriverMissing, net.ID())
	}

	if err := t.init(zrc, rsegs, cfg.Reset); err != nil {
		return err
	}

	t.gnd = resize(t.gnd, t.cornerCount)
	t.total = resize(t.total, t.cornerCount)
	t.res = resize(t.res, t.cornerCount)
	zrc.GndTotalCap(t.gnd, t.total, cfg.MillerFactor)

	var firstRC parasitics.RSeg
	firstFlag := false
	warned := false
	for i, rc := range rsegs {
		if firstRC == nil {
			firstRC = rc
			firstFlag = true
		}
		tgt, ok := t.block.CapNode(rc.TargetNode())
		if !ok {
			return fmt.Errorf("%w: %d on net %d", ErrCapNodeNotFound, rc.TargetNode(), net.ID())
		}

		switch {
		case i == 0:
			rc.AddGndTotalCap(t.gnd, t.total, cfg.MillerFactor)
			rc.AllRes(t.res)
		case firstFlag:
			rc.GndTotalCap(t.gnd, t.total, cfg.MillerFactor)
			rc.AllRes(t.res)
		default:
			rc.AddGndTotalCap(t.gnd, t.total, cfg.MillerFactor)
			rc.AddAllRes(t.res)
		}

		var shapeID uint32
		if !t.foreign {
			shapeID = rc.ShapeID()
		}
		if flow != nil {
			fmt.Fprintf(flow, "shape %d (rc=%d)\n", shapeID, rc.ID())
		}

		dangling := parasitics.IsDangling(tgt)
		flush := tgt.IsTreeNode() ||
			t.total[t.cornerIndex] > cfg.MaxCap ||
			dangling ||
			(!t.foreign && shapeID == 0)
		if rc.SourceNode() == rc.TargetNode() || !flush {
			if premerged && !warned {
				log.Warn("shouldn't merge rc again after pre-merge", zap.Uint32("rseg", rc.ID()))
				warned = true
			}
			firstFlag = false
			continue
		}
		if dangling {
			if flow != nil {
				fmt.Fprintf(flow, "\t\t\t---> DANGLING ignored\n")
			}
			firstRC = nil
			continue
		}

		start, err := t.localIndex(firstRC.SourceNode())
		if err != nil {
			return err
		}
		end, err := t.localIndex(rc.TargetNode())
		if err != nil {
			return err
		}
		x, y := rc.Coords()
		if err := t.makeNode(start, end, tgt, x, y, flow); err != nil {
			log.Warn("cannot link node", zap.Error(err))
			return err
		}
		firstRC = nil
	}

	driver := t.driver()
	if driver == nil {
		log.Warn("driver node of the tree is missing")
		return fmt.Errorf("%w: net %d", ErrDriverMissing, net.ID())
	}
	x, y := zrc.Coords()
	if x == 0 && y == 0 {
		log.Info("driver node is at 0,0")
	}
	driver.X, driver.Y = x, y

	if nodes != nil {
		t.PrintTree(nodes, net.ID(), "Node graph after RC traversal")
	}
	if err := t.IsTree(net); err != nil {
		return err
	}
	if cfg.DummyJunctions {
		t.InsertZeroJunctions()
		if nodes != nil {
			t.PrintTree(nodes, net.ID(), "Node graph after dummy Junctions")
		}
		if err := t.IsTree(net); err != nil {
			return err
		}
	}
	return nil
}

// init prepares the tables for a new net and creates the driver node from
// the source of the first segment.
func (t *Tree) init(zrc parasitics.RSeg, rsegs []parasitics.RSeg, recycle bool) error {
	rc := rsegs[0]
	t.capMap.build(rsegs, t.seen)

	capNode, ok := t.block.CapNode(rc.SourceNode())
	if !ok {
		return fmt.Errorf("%w: %d on net %d", ErrCapNodeNotFound, rc.SourceNode(), t.net.ID())
	}
	start, err := t.localIndex(rc.SourceNode())
	if err != nil {
		return err
	}

	t.itermID, t.btermID = 0, 0
	if capNode.IsBTerm() {
		t.btermID = capNode.Node()
	} else if capNode.IsITerm() {
		t.itermID = capNode.Node()
	}

	t.junctions = t.junctions[:0]
	for i := 0; i < t.capMap.size(); i++ {
		t.junctions = append(t.junctions, 0)
	}
	t.itermCnt, t.btermCnt = 0, 0
	if recycle {
		t.reset()
	}
	if len(t.nodes) == 0 {
		// id 0 terminates child runs
		t.nodes = append(t.nodes, nil)
		t.itermIndex = append(t.itermIndex, 0)
		t.btermIndex = append(t.btermIndex, 0)
	}
	t.base = uint32(len(t.nodes))
	t.driverID = t.base

	t.makeFirstNode(zrc, rc, capNode, start)
	return nil
}

func (t *Tree) makeFirstNode(zrc, rc parasitics.RSeg, capNode parasitics.CapNode, index int) *RCNode {
	node, id := t.allocNode(capNode.ChildrenCount(), true)
	t.tagTerminal(node, id, capNode)
	if !capNode.IsITerm() && !capNode.IsBTerm() && node.JunctionID == 0 {
		node.JunctionID = rc.ShapeID()
	}
	node.NetID = t.net.ID()
	node.CapNodeID = capNode.ID()
	node.SplitCount = 1
	node.X, node.Y = zrc.Coords()
	t.junctions[index] = id
	return node
}

// makeNode emits the accumulated run ending on tgt and hangs it below the
// node standing for the run's first source.
func (t *Tree) makeNode(start, end int, tgt parasitics.CapNode, x, y int, flow io.Writer) error {
	node, id := t.allocNode(tgt.ChildrenCount(), true)
	if parent := t.junctions[start]; parent != 0 {
		if err := t.addChild(t.nodes[parent], id); err != nil {
			return fmt.Errorf("parent %d: %w", parent, err)
		}
	}
	t.junctions[end] = id

	t.tagTerminal(node, id, tgt)
	node.NetID = t.net.ID()
	node.CapNodeID = tgt.ID()
	node.SplitCount = 1
	node.X, node.Y = x, y
	for c := 0; c < t.cornerCount; c++ {
		node.GndCap[c] = capScale * t.gnd[c]
		node.Cap[c] = capScale * t.total[c]
		node.Res[c] = t.res[c]
	}

	if flow != nil {
		t.printFlowNode(flow, tgt, node, id)
	}
	return nil
}

// tagTerminal records the terminal identity of a node: instance terminals
// positive, block terminals negated, junction id otherwise.
func (t *Tree) tagTerminal(node *RCNode, id uint32, cn parasitics.CapNode) {
	node.JunctionID = 0
	switch {
	case cn.IsITerm():
		t.itermIndex[id] = cn.Node()
		t.itermCnt++
		node.TermMap = int32(cn.Node())
		if t.net.HasWire() {
			node.JunctionID = t.net.TermJunction(node.TermMap)
		}
	case cn.IsBTerm():
		t.btermIndex[id] = cn.Node()
		t.btermCnt++
		node.TermMap = -int32(cn.Node())
		if t.net.HasWire() {
			node.JunctionID = t.net.TermJunction(node.TermMap)
		}
	default:
		node.JunctionID = cn.Node()
	}
}

func (t *Tree) driver() *RCNode {
	if t.driverID == 0 || int(t.driverID) >= len(t.nodes) {
		return nil
	}
	return t.nodes[t.driverID]
}

// openDebugFile creates <netid>.<suffix>. Failures are logged and the dump
// is skipped.
func (t *Tree) openDebugFile(dir, suffix string) *os.File {
	name := filepath.Join(dir, fmt.Sprintf("%d.%s", t.net.ID(), suffix))
	f, err := os.Create(name)
	if err != nil {
		t.log.Info("cannot open debug file", zap.String("file", name), zap.Error(err))
		return nil
	}
	return f
}

func (t *Tree) netLogger(net parasitics.Net) *zap.Logger {
	return t.log.With(zap.Uint32("net_id", net.ID()), zap.String("net_name", net.Name()))
}
