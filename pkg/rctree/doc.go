// Package rctree builds per-net RC trees from extracted parasitics.
//
// The engine walks a net's resistor segments in driver-first order and grows
// a graph of RC nodes, merging consecutive segments until a terminal, a
// branch point, or the capacitance limit forces a node to be emitted.
// The graph is then validated as a single rooted tree and copied out as a
// standalone tree of Tnodes that callers own.
//
// # Overview
//
// A Tree owns the reusable state for one net at a time:
//   - a pool of RCNodes and the node table that addresses them by local id
//     (slot 0 is a placeholder, so id 0 terminates child lists)
//   - the flat children index table: a zero-terminated run of child ids
//     per node, with the run size fixed when the node is allocated
//   - the local capacitance-node map, which turns the sparse database ids of
//     the net's capacitance nodes into dense indices
//
// # Usage
//
//	db, err := rcxfile.LoadFile("design.rcx")
//	tree := rctree.NewTree(db, rctree.WithLogger(logger))
//
//	cfg := rctree.DefaultConfig()
//	cfg.MaxCap = 20
//
//	net, _ := db.Net(42)
//	root, n, err := tree.MakeTree(net, cfg)
//	if err != nil {
//		// net-scoped failure: the net is skipped
//	}
//	root.PrintTnodes(os.Stdout, db.CornerCount())
//	rctree.Free(root)
//
// For a whole design use BuildAll, which skips power and ground nets and
// records per-net failures without stopping.
//
// # Merging rules
//
// A segment is absorbed into the running sum unless its target node is a
// terminal or branch point, the running total capacitance at the selected
// corner is strictly greater than Config.MaxCap, the target is dangling, or
// (for non-SPEF data) the segment has no shape id. Runs ending on a
// dangling node are dropped. Emitted nodes carry resistance as is and
// capacitance scaled by 1e-3.
//
// A Tree is not safe for concurrent use. Separate Trees over the same
// provider may run in parallel because the capacitance-node visited set is
// owned by the Tree rather than by the database.
package rctree
