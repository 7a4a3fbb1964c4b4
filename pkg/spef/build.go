package spef

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/OpenTraceRCX/pkg/parasitics"
)

// BuildOptions controls the conversion of a parsed file into a database.
type BuildOptions struct {
	// CapScale converts file capacitance to femtofarads. Zero derives it
	// from *C_UNIT (default 1 PF).
	CapScale float64
	// ResScale converts file resistance to ohms. Zero derives it from
	// *R_UNIT (default 1 OHM).
	ResScale float64
}

// LoadFile parses and builds a SPEF file with default options.
func LoadFile(path string) (*parasitics.MemoryDB, error) {
	p, err := NewParser()
	if err != nil {
		return nil, err
	}
	f, err := p.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("spef: %s: %w", path, err)
	}
	return Build(f, BuildOptions{})
}

// Build converts a parsed file into a single-corner database flagged as
// foreign extraction. Resistor segments of each net are ordered depth
// first from the driver; every segment carries the capacitance of its
// target node and the zero segment carries the driver's.
func Build(f *File, opts BuildOptions) (*parasitics.MemoryDB, error) {
	capScale, err := unitScale(f, "*C_UNIT", opts.CapScale, capUnits, 1e3)
	if err != nil {
		return nil, err
	}
	resScale, err := unitScale(f, "*R_UNIT", opts.ResScale, resUnits, 1)
	if err != nil {
		return nil, err
	}

	b := &builder{
		db:       parasitics.NewMemoryDB(1),
		names:    f.NameMapping(),
		ports:    make(map[string]*Port),
		portNum:  make(map[string]uint32),
		itermNum: make(map[string]uint32),
		supply:   make(map[string]parasitics.SigType),
		capScale: capScale,
		resScale: resScale,
	}
	for i, p := range f.Ports {
		name := b.resolve(p.Name)
		b.ports[name] = p
		b.portNum[name] = uint32(i + 1)
	}
	for _, n := range f.PowerNets {
		b.supply[b.resolve(n)] = parasitics.SigPower
	}
	for _, n := range f.GroundNets {
		b.supply[b.resolve(n)] = parasitics.SigGround
	}

	for _, dn := range f.Nets {
		if err := b.addNet(dn); err != nil {
			return nil, err
		}
	}
	b.db.SetControl(parasitics.Control{Foreign: true, RSegCoords: b.coords})
	b.db.MarkBranches()
	return b.db, nil
}

var capUnits = map[string]float64{"FF": 1, "PF": 1e3, "NF": 1e6, "UF": 1e9}
var resUnits = map[string]float64{"OHM": 1, "KOHM": 1e3, "MOHM": 1e6}

func unitScale(f *File, key string, override float64, units map[string]float64, def float64) (float64, error) {
	if override != 0 {
		return override, nil
	}
	vals, ok := f.HeaderValues(key)
	if !ok {
		return def, nil
	}
	if len(vals) != 2 {
		return 0, fmt.Errorf("spef: %s: expected value and unit, got %v", key, vals)
	}
	num, err := strconv.ParseFloat(vals[0], 64)
	if err != nil {
		return 0, fmt.Errorf("spef: %s: %w", key, err)
	}
	unit, ok := units[strings.ToUpper(vals[1])]
	if !ok {
		return 0, fmt.Errorf("spef: %s: unknown unit %q", key, vals[1])
	}
	return num * unit, nil
}

type builder struct {
	db       *parasitics.MemoryDB
	names    map[string]string
	ports    map[string]*Port
	portNum  map[string]uint32
	itermNum map[string]uint32
	supply   map[string]parasitics.SigType
	capScale float64
	resScale float64
	coords   bool
}

// resolve expands a name map index (*12) to its name.
func (b *builder) resolve(name string) string {
	if strings.HasPrefix(name, "*") {
		if n, ok := b.names[name]; ok {
			return n
		}
	}
	return unquote(name)
}

func (b *builder) key(n *NodeName) string {
	name := b.resolve(n.Name)
	if n.Pin == "" {
		return name
	}
	return name + ":" + b.resolve(n.Pin)
}

type spefNode struct {
	key   string
	kind  string // "*P", "*I", "*N" or "" for internal nodes
	id    uint32 // capacitance node id in the database
	x, y  int
	gnd   float64
	cc    float64
	xy    bool
	used  bool // capacitance already carried by a segment
	order int
}

type resEdge struct {
	a, b *spefNode
	res  float64
}

func (b *builder) addNet(dn *DNet) error {
	netName := b.resolve(dn.Name)
	sig, ok := b.supply[netName]
	if !ok {
		sig = parasitics.SigSignal
	}
	net := b.db.AddNet(netName, sig)

	nodes := make(map[string]*spefNode)
	var order []*spefNode
	get := func(n *NodeName) *spefNode {
		k := b.key(n)
		if sn, ok := nodes[k]; ok {
			return sn
		}
		sn := &spefNode{key: k, order: len(order)}
		nodes[k] = sn
		order = append(order, sn)
		return sn
	}

	terms := 0
	var driver *spefNode
	for _, c := range dn.Conns {
		sn := get(c.Node)
		if c.Kind != "*N" {
			sn.kind = c.Kind
			terms++
		}
		if xy, ok := c.Coords(); ok {
			sn.x, sn.y, sn.xy = int(xy.X), int(xy.Y), true
		} else if c.Kind == "*P" {
			if p, ok := b.ports[b.key(c.Node)]; ok {
				for _, a := range p.Attrs {
					if a.Coords != nil {
						sn.x, sn.y, sn.xy = int(a.Coords.X), int(a.Coords.Y), true
					}
				}
			}
		}
		if driver == nil && c.Kind != "*N" && isDriver(c) {
			driver = sn
		}
	}
	net.SetTermCount(terms)

	for _, ce := range dn.Caps {
		sn := get(ce.Node)
		if ce.Other == nil {
			sn.gnd += ce.Value * b.capScale
		} else {
			sn.cc += ce.Value * b.capScale
		}
	}

	var edges []resEdge
	for _, re := range dn.Res {
		edges = append(edges, resEdge{a: get(re.A), b: get(re.B), res: re.Value * b.resScale})
	}

	if driver == nil {
		for _, c := range dn.Conns {
			if c.Kind != "*N" {
				driver = nodes[b.key(c.Node)]
				break
			}
		}
	}
	if driver == nil && len(edges) > 0 {
		driver = edges[0].a
	}

	// Capacitance nodes in first-seen order.
	junction := uint32(0)
	for _, sn := range order {
		var flags parasitics.NodeFlags
		var num uint32
		switch sn.kind {
		case "*P":
			flags = parasitics.FlagBTerm
			num = b.portNumber(sn.key)
		case "*I":
			flags = parasitics.FlagITerm
			num = b.itermNumber(sn.key)
		default:
			flags = parasitics.FlagInternal
			junction++
			num = junction
		}
		if sn.xy {
			b.coords = true
		}
		sn.id = b.db.AddCapNode(net, num, flags).ID()
	}

	if driver == nil {
		return nil
	}
	driver.used = true
	net.SetZeroRSeg(driver.id, driver.x, driver.y, []float64{driver.gnd}, []float64{driver.cc})

	for _, e := range orderEdges(driver, edges) {
		tgt := e.b
		var gnd, cc float64
		if !tgt.used {
			gnd, cc = tgt.gnd, tgt.cc
			tgt.used = true
		}
		if _, err := net.AddRSeg(e.a.id, tgt.id, 0, tgt.x, tgt.y,
			[]float64{e.res}, []float64{gnd}, []float64{cc}); err != nil {
			return fmt.Errorf("spef: net %s: %w", netName, err)
		}
	}
	return nil
}

// isDriver reports whether a connection drives the net: an input port or
// an output pin.
func isDriver(c *Conn) bool {
	switch c.Kind {
	case "*P":
		return c.Dir == "I" || c.Dir == "B"
	case "*I":
		return c.Dir == "O" || c.Dir == "B"
	}
	return false
}

func (b *builder) portNumber(key string) uint32 {
	if n, ok := b.portNum[key]; ok {
		return n
	}
	n := uint32(len(b.portNum) + 1)
	b.portNum[key] = n
	return n
}

func (b *builder) itermNumber(key string) uint32 {
	if n, ok := b.itermNum[key]; ok {
		return n
	}
	n := uint32(len(b.itermNum) + 1)
	b.itermNum[key] = n
	return n
}

// orderEdges orients the resistors depth first from the driver. Resistors
// not reachable from the driver follow in file order.
func orderEdges(driver *spefNode, edges []resEdge) []resEdge {
	adj := make(map[*spefNode][]int)
	for i, e := range edges {
		if e.a == e.b {
			continue
		}
		adj[e.a] = append(adj[e.a], i)
		adj[e.b] = append(adj[e.b], i)
	}

	type frame struct {
		node *spefNode
		next int
	}
	used := make([]bool, len(edges))
	visited := map[*spefNode]bool{driver: true}
	ordered := make([]resEdge, 0, len(edges))
	stack := []frame{{node: driver}}
	for len(stack) > 0 {
		f := &stack[len(stack)-1]
		if f.next >= len(adj[f.node]) {
			stack = stack[:len(stack)-1]
			continue
		}
		ei := adj[f.node][f.next]
		f.next++
		if used[ei] {
			continue
		}
		used[ei] = true
		e := edges[ei]
		other := e.b
		if other == f.node {
			other = e.a
		}
		ordered = append(ordered, resEdge{a: f.node, b: other, res: e.res})
		if !visited[other] {
			visited[other] = true
			stack = append(stack, frame{node: other})
		}
	}

	for i, e := range edges {
		if !used[i] {
			ordered = append(ordered, e)
		}
	}
	return ordered
}
