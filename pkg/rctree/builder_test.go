package rctree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/OpenTraceLab/OpenTraceRCX/pkg/parasitics"
)

func TestMakeTreePassThroughChain(t *testing.T) {
	db := parasitics.NewMemoryDB(1)
	b := passChain(t, db)
	tree := NewTree(db, WithLogger(zaptest.NewLogger(t)))

	root, n, err := tree.MakeTree(b.net, cfgWith(func(c *Config) { c.MaxCap = 100 }))
	require.NoError(t, err)
	require.Equal(t, 2, n)

	assert.Equal(t, int32(1), root.TermMap)
	assert.Equal(t, b.ids["A"], root.CapNodeID)
	assert.Equal(t, 1, root.X)
	assert.Equal(t, 2, root.Y)
	assert.Zero(t, root.Res[0])
	assert.Zero(t, root.Cap[0])
	require.Equal(t, 1, root.ChildCount())

	leaf := root.Children[0]
	assert.Equal(t, int32(2), leaf.TermMap)
	assert.Equal(t, b.ids["C"], leaf.CapNodeID)
	assert.Equal(t, 30, leaf.X)
	assert.Equal(t, 30.0, leaf.Res[0])
	assert.InDelta(t, 0.006, leaf.Cap[0], 1e-12)
	assert.InDelta(t, 0.006, leaf.GndCap[0], 1e-12)
	assert.Equal(t, 1, leaf.SplitCount)
	assert.Equal(t, 0, leaf.ChildCount())

	assert.Equal(t, 2, tree.ITermCount())
	assert.Equal(t, 0, tree.BTermCount())
	assert.Equal(t, uint32(1), tree.DriverITerm())
	assert.Zero(t, tree.DriverBTerm())
}

func TestMakeTreeMaxCapBoundary(t *testing.T) {
	build := func(t *testing.T, maxCap float64) *Tnode {
		db := parasitics.NewMemoryDB(1)
		b := newNet(t, db, "long").
			iterm("A", 1).junction("B1", 1).junction("B2", 2).junction("B3", 3).iterm("C", 2).
			zero("A", 0, 0, 0).
			seg("A", "B1", 1, 10, 10, 2).
			seg("B1", "B2", 2, 20, 10, 2).
			seg("B2", "B3", 3, 30, 10, 2).
			seg("B3", "C", 4, 40, 10, 2)
		root, n, err := NewTree(db).MakeTree(b.net, cfgWith(func(c *Config) { c.MaxCap = maxCap }))
		require.NoError(t, err)
		require.Equal(t, 3, n)
		return root
	}

	t.Run("equal to limit accumulates", func(t *testing.T) {
		root := build(t, 4)
		mid := root.Children[0]
		assert.Equal(t, 30.0, mid.Res[0])
		assert.InDelta(t, 6e-3, mid.Cap[0], 1e-12)
		assert.Equal(t, 30, mid.X)

		leaf := mid.Children[0]
		assert.Equal(t, 10.0, leaf.Res[0])
		assert.InDelta(t, 2e-3, leaf.Cap[0], 1e-12)
	})

	t.Run("above limit flushes", func(t *testing.T) {
		root := build(t, 3.99)
		mid := root.Children[0]
		assert.Equal(t, 20.0, mid.Res[0])
		assert.InDelta(t, 4e-3, mid.Cap[0], 1e-12)
		assert.Equal(t, 20, mid.X)

		leaf := mid.Children[0]
		assert.Equal(t, 20.0, leaf.Res[0])
		assert.InDelta(t, 4e-3, leaf.Cap[0], 1e-12)
	})
}

func TestMakeTreeMillerFactor(t *testing.T) {
	db := parasitics.NewMemoryDB(1)
	b := newNet(t, db, "cc").
		iterm("A", 1).iterm("C", 2).
		zero("A", 0, 0, 1).
		segCC("A", "C", 1, 10, 10, 2, 3)

	root, _, err := NewTree(db).MakeTree(b.net, cfgWith(func(c *Config) { c.MillerFactor = 2 }))
	require.NoError(t, err)

	// driver capacitance is folded into the first emitted node
	leaf := root.Children[0]
	assert.InDelta(t, 3e-3, leaf.GndCap[0], 1e-12)
	assert.InDelta(t, 9e-3, leaf.Cap[0], 1e-12)
}

func TestMakeTreeDropsDanglingRun(t *testing.T) {
	db := parasitics.NewMemoryDB(1)
	b := newNet(t, db, "stub").
		iterm("A", 1).branch("B", 7).junction("D", 8).iterm("C", 2).
		zero("A", 0, 0, 0).
		seg("A", "B", 1, 10, 10, 2).
		seg("B", "D", 2, 20, 50, 9).
		seg("B", "C", 3, 30, 5, 1)
	require.True(t, parasitics.IsDangling(b.cns["D"]))

	root, n, err := NewTree(db).MakeTree(b.net, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	res, c, _ := sums(root)
	assert.Equal(t, 15.0, res, "dangling resistance is dropped")
	assert.InDelta(t, 3e-3, c, 1e-12)

	nB := root.Children[0]
	assert.Equal(t, uint32(7), nB.JunctionID)
	require.Equal(t, 1, nB.ChildCount())
	assert.Equal(t, int32(2), nB.Children[0].TermMap)
}

func TestMakeTreeBlockTermDriver(t *testing.T) {
	db := parasitics.NewMemoryDB(1)
	b := newNet(t, db, "port").
		bterm("P", 3).iterm("Q", 4).
		zero("P", 0, 0, 0).
		seg("P", "Q", 1, 10, 10, 2)
	b.net.SetTermJunction(-3, 55)
	b.net.SetTermJunction(4, 77)

	tree := NewTree(db)
	root, _, err := tree.MakeTree(b.net, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, int32(-3), root.TermMap)
	assert.Equal(t, uint32(55), root.JunctionID)
	assert.Equal(t, int32(4), root.Children[0].TermMap)
	assert.Equal(t, uint32(77), root.Children[0].JunctionID)

	assert.Equal(t, uint32(3), tree.DriverBTerm())
	assert.Zero(t, tree.DriverITerm())
	assert.Equal(t, 1, tree.BTermCount())
	assert.Equal(t, 1, tree.ITermCount())
	assert.Equal(t, int32(-3), tree.TermOf(tree.DriverID()))
	assert.Equal(t, int32(4), tree.TermOf(tree.DriverID()+1))
	assert.Zero(t, tree.TermOf(1000))
}

func TestMakeTreeShapeZero(t *testing.T) {
	build := func(t *testing.T, foreign bool) int {
		db := parasitics.NewMemoryDB(1)
		db.SetControl(parasitics.Control{Foreign: foreign})
		b := newNet(t, db, "noshape").
			iterm("A", 1).junction("B1", 1).junction("B2", 2).iterm("C", 2).
			zero("A", 0, 0, 0).
			seg("A", "B1", 0, 10, 10, 2).
			seg("B1", "B2", 0, 20, 10, 2).
			seg("B2", "C", 0, 30, 10, 2)
		_, n, err := NewTree(db).MakeTree(b.net, cfgWith(func(c *Config) { c.MaxCap = 100 }))
		require.NoError(t, err)
		return n
	}

	assert.Equal(t, 4, build(t, false), "segments without shapes are never merged")
	assert.Equal(t, 2, build(t, true), "shape ids are ignored on SPEF data")
}

func TestBuildGraphErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, db *parasitics.MemoryDB) parasitics.Net
		cfg   *Config
		want  error
	}{
		{
			name: "no segments",
			setup: func(t *testing.T, db *parasitics.MemoryDB) parasitics.Net {
				return newNet(t, db, "empty").iterm("A", 1).iterm("B", 2).net
			},
			want: ErrNoRSegs,
		},
		{
			name: "single terminal",
			setup: func(t *testing.T, db *parasitics.MemoryDB) parasitics.Net {
				b := passChain(t, db)
				b.net.SetTermCount(1)
				return b.net
			},
			want: ErrTooFewTerms,
		},
		{
			name: "no zero segment",
			setup: func(t *testing.T, db *parasitics.MemoryDB) parasitics.Net {
				return newNet(t, db, "nozero").iterm("A", 1).iterm("B", 2).
					seg("A", "B", 1, 0, 1, 1).net
			},
			want: ErrDriverMissing,
		},
		{
			name: "spef without coordinates",
			setup: func(t *testing.T, db *parasitics.MemoryDB) parasitics.Net {
				db.SetControl(parasitics.Control{Foreign: true})
				return passChain(t, db).net
			},
			cfg:  cfgWith(func(c *Config) { c.ForBuffering = true }),
			want: ErrForeignNoCoords,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := parasitics.NewMemoryDB(1)
			net := tt.setup(t, db)
			cfg := tt.cfg
			if cfg == nil {
				cfg = DefaultConfig()
			}
			err := NewTree(db).BuildGraph(net, cfg)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBuildGraphCornerOutOfRange(t *testing.T) {
	db := parasitics.NewMemoryDB(1)
	b := passChain(t, db)
	err := NewTree(db).BuildGraph(b.net, cfgWith(func(c *Config) { c.Corner = 1 }))
	assert.ErrorContains(t, err, "out of range")
}

func TestBuildGraphForeignWithCoords(t *testing.T) {
	db := parasitics.NewMemoryDB(1)
	db.SetControl(parasitics.Control{Foreign: true, RSegCoords: true})
	b := passChain(t, db)
	err := NewTree(db).BuildGraph(b.net, cfgWith(func(c *Config) { c.ForBuffering = true }))
	assert.NoError(t, err)
}

func TestMakeTreeDisconnected(t *testing.T) {
	db := parasitics.NewMemoryDB(1)
	b := newNet(t, db, "islands").
		iterm("A", 1).iterm("B", 2).iterm("C", 3).iterm("D", 4).
		zero("A", 0, 0, 0).
		seg("A", "B", 1, 0, 1, 1).
		seg("C", "D", 2, 0, 1, 1)

	core, logs := observer.New(zapcore.WarnLevel)
	_, _, err := NewTree(db, WithLogger(zap.New(core))).MakeTree(b.net, DefaultConfig())
	assert.ErrorIs(t, err, ErrRCDisconnected)
	assert.Equal(t, 1, logs.FilterMessage("RC network is disconnected").Len())
}

func TestMakeTreeByID(t *testing.T) {
	db := parasitics.NewMemoryDB(1)
	b := passChain(t, db)
	tree := NewTree(db)

	_, _, err := tree.MakeTreeByID(99, DefaultConfig())
	assert.ErrorIs(t, err, ErrNetNotFound)

	dir := t.TempDir()
	cfg := cfgWith(func(c *Config) {
		c.PrintTag = "golden"
		c.DebugDir = dir
	})
	root, _, err := tree.MakeTreeByID(b.net.ID(), cfg)
	require.NoError(t, err)
	require.NotNil(t, root)

	data, err := os.ReadFile(filepath.Join(dir, "golden_net1_tnode"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "extTnodes of Net 1:")
	assert.Contains(t, string(data), "NetId 1 has 2 nodes")
}

func TestBuildGraphDebugFiles(t *testing.T) {
	db := parasitics.NewMemoryDB(1)
	b := fanout(t, db)
	dir := t.TempDir()

	err := NewTree(db).BuildGraph(b.net, cfgWith(func(c *Config) {
		c.Test = 2
		c.DebugDir = dir
	}))
	require.NoError(t, err)

	flow, err := os.ReadFile(filepath.Join(dir, "1.flow.dbg"))
	require.NoError(t, err)
	assert.Contains(t, string(flow), "I_TERM= 2")
	assert.Contains(t, string(flow), "JUNCTION= 50")

	nodes, err := os.ReadFile(filepath.Join(dir, "1.node.dbg"))
	require.NoError(t, err)
	assert.Contains(t, string(nodes), "Node graph after RC traversal")
	assert.Contains(t, string(nodes), "Node graph after dummy Junctions")
}

func TestBuildGraphDebugDirMissing(t *testing.T) {
	db := parasitics.NewMemoryDB(1)
	b := passChain(t, db)
	core, logs := observer.New(zapcore.InfoLevel)

	err := NewTree(db, WithLogger(zap.New(core))).BuildGraph(b.net, cfgWith(func(c *Config) {
		c.Test = 2
		c.DebugDir = filepath.Join(t.TempDir(), "missing")
	}))
	require.NoError(t, err, "debug dumps are optional")
	assert.Equal(t, 2, logs.FilterMessage("cannot open debug file").Len())
}

func TestMakeTreeCornerBlock(t *testing.T) {
	db := parasitics.NewMemoryDB(2)
	passChain(t, db)

	blk := parasitics.NewMemoryDB(1)
	net := blk.AddNet("chain", parasitics.SigSignal)
	a := blk.AddCapNode(net, 1, parasitics.FlagITerm)
	c := blk.AddCapNode(net, 2, parasitics.FlagITerm)
	net.SetZeroRSeg(a.ID(), 0, 0, nil, nil)
	_, err := net.AddRSeg(a.ID(), c.ID(), 1, 9, 0, []float64{42}, []float64{8}, nil)
	require.NoError(t, err)
	db.AttachCornerBlock(1, blk)

	tree := NewTree(db)
	root, n, err := tree.MakeTreeByID(1, cfgWith(func(c *Config) { c.Corner = 1 }))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, root.Res, 1, "values are sized to the corner block")
	assert.Equal(t, 42.0, root.Children[0].Res[0])
	assert.InDelta(t, 8e-3, root.Children[0].Cap[0], 1e-12)

	root, n, err = tree.MakeTreeByID(1, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, root.Res, 2)
	assert.Equal(t, 30.0, root.Children[0].Res[0])
}

func TestMakeTreeReset(t *testing.T) {
	db := parasitics.NewMemoryDB(1)
	chain := passChain(t, db)
	fan := fanout(t, db)
	tree := NewTree(db)

	first, _, err := tree.MakeTree(fan.net, DefaultConfig())
	require.NoError(t, err)
	ref := tree.Ref(tree.DriverID())
	node, err := tree.Node(ref)
	require.NoError(t, err)
	assert.Equal(t, int32(1), node.TermMap)

	_, _, err = tree.MakeTree(chain.net, DefaultConfig())
	require.NoError(t, err)
	_, err = tree.Node(ref)
	assert.ErrorIs(t, err, ErrStaleRef)

	again, _, err := tree.MakeTree(fan.net, DefaultConfig())
	require.NoError(t, err)
	if diff := cmp.Diff(first, again); diff != "" {
		t.Errorf("rebuilt tree differs (-first +again):\n%s", diff)
	}
	assert.Equal(t, uint32(1), tree.DriverID())

	live, _ := tree.PoolStats()
	assert.Equal(t, int64(tree.NodeCount()), live, "only the current net holds pooled nodes")
}

func TestMakeTreeWithoutReset(t *testing.T) {
	db := parasitics.NewMemoryDB(1)
	chain := passChain(t, db)
	fan := fanout(t, db)

	fresh, _, err := NewTree(db).MakeTree(fan.net, DefaultConfig())
	require.NoError(t, err)

	tree := NewTree(db)
	noReset := cfgWith(func(c *Config) { c.Reset = false })
	_, _, err = tree.MakeTree(chain.net, noReset)
	require.NoError(t, err)
	ref := tree.Ref(tree.DriverID())

	appended, n, err := tree.MakeTree(fan.net, noReset)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Greater(t, tree.DriverID(), uint32(1), "second net is placed after the first")
	if diff := cmp.Diff(fresh, appended); diff != "" {
		t.Errorf("appended tree differs (-fresh +appended):\n%s", diff)
	}

	_, err = tree.Node(ref)
	assert.NoError(t, err, "tables were not reset")
}

func TestNetLocalCapNode(t *testing.T) {
	db := parasitics.NewMemoryDB(1)
	b := fanout(t, db)
	tree := NewTree(db)
	require.NoError(t, tree.BuildGraph(b.net, DefaultConfig()))

	for i, name := range []string{"A", "B", "C", "D"} {
		idx, ok := tree.NetLocalCapNode(b.ids[name])
		require.True(t, ok, name)
		assert.Equal(t, i, idx, name)
	}
	_, ok := tree.NetLocalCapNode(999)
	assert.False(t, ok)
}

func TestMakeTreeNilConfig(t *testing.T) {
	db := parasitics.NewMemoryDB(1)
	b := passChain(t, db)
	tree := NewTree(db)
	require.NoError(t, tree.BuildGraph(b.net, nil))
	assert.Equal(t, 2, tree.NodeCount())
}
