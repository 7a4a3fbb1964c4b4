package rcxfile

import (
	"fmt"
	"io"
	"os"

	"github.com/chewxy/sexp"

	"github.com/OpenTraceLab/OpenTraceRCX/pkg/parasitics"
)

// LoadFile reads a parasitics file from disk.
func LoadFile(path string) (*parasitics.MemoryDB, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rcxfile: failed to open file: %w", err)
	}
	defer f.Close()

	db, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("rcxfile: %s: %w", path, err)
	}
	return db, nil
}

// Load reads a parasitics file.
func Load(r io.Reader) (*parasitics.MemoryDB, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("rcxfile: failed to read: %w", err)
	}
	sexps, err := sexp.ParseString(string(data))
	if err != nil {
		return nil, fmt.Errorf("rcxfile: failed to parse s-expression: %w", err)
	}
	if len(sexps) == 0 {
		return nil, fmt.Errorf("rcxfile: empty file")
	}
	root := sexps[0]
	if key := keyOf(root); key != "parasitics" {
		return nil, fmt.Errorf("rcxfile: expected (parasitics ...), got %q", key)
	}
	if n, ok := findNode(root, "version"); ok {
		v, err := getInt(n, 1)
		if err != nil {
			return nil, fmt.Errorf("rcxfile: version: %w", err)
		}
		if v != Version {
			return nil, fmt.Errorf("rcxfile: unsupported version %d", v)
		}
	}

	db, err := loadBlock(root)
	if err != nil {
		return nil, err
	}

	for _, cb := range findAllNodes(root, "corner_block") {
		corner, err := getInt(cb, 1)
		if err != nil {
			return nil, fmt.Errorf("rcxfile: corner_block: %w", err)
		}
		blk, err := loadBlock(cb)
		if err != nil {
			return nil, fmt.Errorf("rcxfile: corner_block %d: %w", corner, err)
		}
		db.AttachCornerBlock(corner, blk)
	}
	return db, nil
}

// loadBlock builds one block from the header and net entries of s.
func loadBlock(s sexp.Sexp) (*parasitics.MemoryDB, error) {
	corners := 1
	if n, ok := findNode(s, "corners"); ok {
		c, err := getInt(n, 1)
		if err != nil {
			return nil, fmt.Errorf("rcxfile: corners: %w", err)
		}
		if c < 1 {
			return nil, fmt.Errorf("rcxfile: corners must be positive, got %d", c)
		}
		corners = c
	}
	db := parasitics.NewMemoryDB(corners)

	var ctrl parasitics.Control
	var err error
	if ctrl.Foreign, err = optBool(s, "foreign"); err != nil {
		return nil, fmt.Errorf("rcxfile: %w", err)
	}
	if ctrl.RSegCoords, err = optBool(s, "rseg_coords"); err != nil {
		return nil, fmt.Errorf("rcxfile: %w", err)
	}
	if ctrl.PreMerged, err = optBool(s, "pre_merged"); err != nil {
		return nil, fmt.Errorf("rcxfile: %w", err)
	}
	if n, ok := findNode(s, "pre_merge_cap"); ok {
		if ctrl.PreMergeCap, err = getFloat(n, 1); err != nil {
			return nil, fmt.Errorf("rcxfile: pre_merge_cap: %w", err)
		}
	}
	db.SetControl(ctrl)

	for _, n := range findAllNodes(s, "net") {
		if err := loadNet(db, n); err != nil {
			return nil, err
		}
	}
	db.MarkBranches()
	return db, nil
}

func loadNet(db *parasitics.MemoryDB, s sexp.Sexp) error {
	nameNode, ok := findNode(s, "name")
	if !ok {
		return fmt.Errorf("rcxfile: net without name")
	}
	name, err := getName(nameNode, 1)
	if err != nil {
		return fmt.Errorf("rcxfile: net name: %w", err)
	}

	sig := parasitics.SigSignal
	if n, ok := findNode(s, "type"); ok {
		str, err := getString(n, 1)
		if err != nil {
			return fmt.Errorf("rcxfile: net %s: type: %w", name, err)
		}
		if sig, err = parasitics.ParseSigType(str); err != nil {
			return fmt.Errorf("rcxfile: net %s: %w", name, err)
		}
	}
	net := db.AddNet(name, sig)

	if n, ok := findNode(s, "terms"); ok {
		cnt, err := getInt(n, 1)
		if err != nil {
			return fmt.Errorf("rcxfile: net %s: terms: %w", name, err)
		}
		net.SetTermCount(cnt)
	}

	// File ids of capacitance nodes are local to the net.
	ids := make(map[uint32]uint32)
	for _, cn := range findAllNodes(s, "capnode") {
		fid, err := getUint(cn, 1)
		if err != nil {
			return fmt.Errorf("rcxfile: net %s: capnode: %w", name, err)
		}
		if _, dup := ids[fid]; dup {
			return fmt.Errorf("rcxfile: net %s: duplicate capnode %d", name, fid)
		}
		var node uint32
		if n, ok := findNode(cn, "node"); ok {
			if node, err = getUint(n, 1); err != nil {
				return fmt.Errorf("rcxfile: net %s: capnode %d: node: %w", name, fid, err)
			}
		}
		var flags parasitics.NodeFlags
		if hasFlag(cn, "iterm") {
			flags |= parasitics.FlagITerm
		}
		if hasFlag(cn, "bterm") {
			flags |= parasitics.FlagBTerm
		}
		if hasFlag(cn, "branch") {
			flags |= parasitics.FlagBranch
		}
		if hasFlag(cn, "internal") {
			flags |= parasitics.FlagInternal
		}
		ids[fid] = db.AddCapNode(net, node, flags).ID()
	}
	resolve := func(fid uint32) (uint32, error) {
		id, ok := ids[fid]
		if !ok {
			return 0, fmt.Errorf("rcxfile: net %s: unknown capnode %d", name, fid)
		}
		return id, nil
	}

	for _, tj := range findAllNodes(s, "termjid") {
		term, err := getInt(tj, 1)
		if err != nil {
			return fmt.Errorf("rcxfile: net %s: termjid: %w", name, err)
		}
		jid, err := getUint(tj, 2)
		if err != nil {
			return fmt.Errorf("rcxfile: net %s: termjid: %w", name, err)
		}
		net.SetTermJunction(int32(term), jid)
	}

	if z, ok := findNode(s, "zero"); ok {
		fid, err := getUint(z, 1)
		if err != nil {
			return fmt.Errorf("rcxfile: net %s: zero: %w", name, err)
		}
		drv, err := resolve(fid)
		if err != nil {
			return err
		}
		x, y, err := optXY(z)
		if err != nil {
			return fmt.Errorf("rcxfile: net %s: zero: %w", name, err)
		}
		gnd, cc, _, err := values(z)
		if err != nil {
			return fmt.Errorf("rcxfile: net %s: zero: %w", name, err)
		}
		net.SetZeroRSeg(drv, x, y, gnd, cc)
	}

	for i, rs := range findAllNodes(s, "rseg") {
		srcF, err := getUint(rs, 1)
		if err != nil {
			return fmt.Errorf("rcxfile: net %s: rseg %d: source: %w", name, i+1, err)
		}
		tgtF, err := getUint(rs, 2)
		if err != nil {
			return fmt.Errorf("rcxfile: net %s: rseg %d: target: %w", name, i+1, err)
		}
		src, err := resolve(srcF)
		if err != nil {
			return err
		}
		tgt, err := resolve(tgtF)
		if err != nil {
			return err
		}
		var shape uint32
		if n, ok := findNode(rs, "shape"); ok {
			if shape, err = getUint(n, 1); err != nil {
				return fmt.Errorf("rcxfile: net %s: rseg %d: shape: %w", name, i+1, err)
			}
		}
		x, y, err := optXY(rs)
		if err != nil {
			return fmt.Errorf("rcxfile: net %s: rseg %d: %w", name, i+1, err)
		}
		gnd, cc, res, err := values(rs)
		if err != nil {
			return fmt.Errorf("rcxfile: net %s: rseg %d: %w", name, i+1, err)
		}
		if _, err := net.AddRSeg(src, tgt, shape, x, y, res, gnd, cc); err != nil {
			return fmt.Errorf("rcxfile: %w", err)
		}
	}
	return nil
}

func optXY(s sexp.Sexp) (int, int, error) {
	n, ok := findNode(s, "at")
	if !ok {
		return 0, 0, nil
	}
	return getXY(n)
}

// values reads the per-corner (gnd ...), (cc ...) and (res ...) entries.
func values(s sexp.Sexp) (gnd, cc, res []float64, err error) {
	if gnd, err = optFloats(s, "gnd"); err != nil {
		return
	}
	if cc, err = optFloats(s, "cc"); err != nil {
		return
	}
	res, err = optFloats(s, "res")
	return
}
