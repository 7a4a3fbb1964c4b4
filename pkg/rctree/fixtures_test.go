package rctree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/OpenTraceRCX/pkg/parasitics"
)

// netBuilder assembles a single-corner net by node name.
type netBuilder struct {
	t   *testing.T
	db  *parasitics.MemoryDB
	net *parasitics.MemNet
	ids map[string]uint32
	cns map[string]*parasitics.MemCapNode
}

func newNet(t *testing.T, db *parasitics.MemoryDB, name string) *netBuilder {
	t.Helper()
	return &netBuilder{
		t:   t,
		db:  db,
		net: db.AddNet(name, parasitics.SigSignal),
		ids: make(map[string]uint32),
		cns: make(map[string]*parasitics.MemCapNode),
	}
}

func (b *netBuilder) iterm(name string, num uint32) *netBuilder {
	return b.node(name, num, parasitics.FlagITerm)
}

func (b *netBuilder) bterm(name string, num uint32) *netBuilder {
	return b.node(name, num, parasitics.FlagBTerm)
}

func (b *netBuilder) branch(name string, jid uint32) *netBuilder {
	return b.node(name, jid, parasitics.FlagInternal|parasitics.FlagBranch)
}

func (b *netBuilder) junction(name string, jid uint32) *netBuilder {
	return b.node(name, jid, parasitics.FlagInternal)
}

func (b *netBuilder) node(name string, num uint32, flags parasitics.NodeFlags) *netBuilder {
	cn := b.db.AddCapNode(b.net, num, flags)
	b.ids[name] = cn.ID()
	b.cns[name] = cn
	return b
}

func (b *netBuilder) zero(name string, x, y int, gnd float64) *netBuilder {
	b.net.SetZeroRSeg(b.ids[name], x, y, []float64{gnd}, nil)
	return b
}

// seg adds a segment with ground capacitance only.
func (b *netBuilder) seg(src, tgt string, shape uint32, x int, res, gnd float64) *netBuilder {
	b.t.Helper()
	_, err := b.net.AddRSeg(b.ids[src], b.ids[tgt], shape, x, 0,
		[]float64{res}, []float64{gnd}, nil)
	require.NoError(b.t, err)
	return b
}

func (b *netBuilder) segCC(src, tgt string, shape uint32, x int, res, gnd, cc float64) *netBuilder {
	b.t.Helper()
	_, err := b.net.AddRSeg(b.ids[src], b.ids[tgt], shape, x, 0,
		[]float64{res}, []float64{gnd}, []float64{cc})
	require.NoError(b.t, err)
	return b
}

// passChain is A(iterm 1) -> B1 -> B2 -> C(iterm 2), every segment 10 ohm
// and 2 units of ground capacitance.
func passChain(t *testing.T, db *parasitics.MemoryDB) *netBuilder {
	t.Helper()
	return newNet(t, db, "chain").
		iterm("A", 1).junction("B1", 101).junction("B2", 102).iterm("C", 2).
		zero("A", 1, 2, 0).
		seg("A", "B1", 1, 10, 10, 2).
		seg("B1", "B2", 2, 20, 10, 2).
		seg("B2", "C", 3, 30, 10, 2)
}

// fanout is A(iterm 1) -> B(branch) with B -> C(iterm 2) and B -> D(iterm 3).
func fanout(t *testing.T, db *parasitics.MemoryDB) *netBuilder {
	t.Helper()
	return newNet(t, db, "fan").
		iterm("A", 1).branch("B", 50).iterm("C", 2).iterm("D", 3).
		zero("A", 0, 5, 0).
		seg("A", "B", 1, 10, 10, 2).
		seg("B", "C", 2, 20, 5, 1).
		seg("B", "D", 3, 30, 7, 3)
}

func cfgWith(mod func(*Config)) *Config {
	cfg := DefaultConfig()
	if mod != nil {
		mod(cfg)
	}
	return cfg
}

// sums adds resistance and capacitance over the whole tree.
func sums(root *Tnode) (res, c float64, n int) {
	root.Walk(func(node *Tnode, _ int) bool {
		res += node.Res[0]
		c += node.Cap[0]
		n++
		return true
	})
	return res, c, n
}
