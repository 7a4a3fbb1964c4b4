package rcxfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/OpenTraceRCX/pkg/parasitics"
)

// Version is the file format version written by Write.
const Version = 1

// WriteFile writes p to path.
func WriteFile(path string, p parasitics.Provider) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("rcxfile: failed to create file: %w", err)
	}
	if err := Write(f, p); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write serializes p, including corner blocks that are separate from p.
// Only capacitance nodes reached by the zero segment or a resistor segment
// are written.
func Write(w io.Writer, p parasitics.Provider) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "(parasitics\n  (version %d)\n", Version)
	if err := writeBlock(bw, p, "  "); err != nil {
		return err
	}
	for c := 0; c < p.CornerCount(); c++ {
		blk := p.CornerBlock(c)
		if blk == nil || blk == p {
			continue
		}
		fmt.Fprintf(bw, "  (corner_block %d\n", c)
		if err := writeBlock(bw, blk, "    "); err != nil {
			return err
		}
		fmt.Fprintf(bw, "  )\n")
	}
	fmt.Fprintf(bw, ")\n")
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("rcxfile: failed to write: %w", err)
	}
	return nil
}

func writeBlock(w io.Writer, p parasitics.Provider, indent string) error {
	ctrl := p.Control()
	fmt.Fprintf(w, "%s(corners %d)\n", indent, p.CornerCount())
	fmt.Fprintf(w, "%s(foreign %s)\n", indent, yesNo(ctrl.Foreign))
	fmt.Fprintf(w, "%s(rseg_coords %s)\n", indent, yesNo(ctrl.RSegCoords))
	if ctrl.PreMerged {
		fmt.Fprintf(w, "%s(pre_merged yes)\n", indent)
		fmt.Fprintf(w, "%s(pre_merge_cap %s)\n", indent, strconv.FormatFloat(ctrl.PreMergeCap, 'g', -1, 64))
	}

	corners := p.CornerCount()
	gnd := make([]float64, corners)
	total := make([]float64, corners)
	res := make([]float64, corners)

	for _, net := range p.Nets() {
		if net.Name() == "" {
			return fmt.Errorf("rcxfile: net %d has no name", net.ID())
		}
		fmt.Fprintf(w, "%s(net (name %s) (type %s) (terms %d)\n",
			indent, escapeName(net.Name()), net.SigType(), net.TermCount())

		zero := net.ZeroRSeg()
		rsegs := net.RSegs()

		var order []uint32
		seen := make(map[uint32]bool)
		add := func(id uint32) {
			if id != 0 && !seen[id] {
				seen[id] = true
				order = append(order, id)
			}
		}
		if zero != nil {
			add(zero.TargetNode())
		}
		for _, rs := range rsegs {
			add(rs.SourceNode())
			add(rs.TargetNode())
		}

		for _, id := range order {
			cn, ok := p.CapNode(id)
			if !ok {
				continue
			}
			fmt.Fprintf(w, "%s  (capnode %d (node %d)%s)\n", indent, id, cn.Node(), flags(cn))
			if net.HasWire() {
				var term int32
				switch {
				case cn.IsITerm():
					term = int32(cn.Node())
				case cn.IsBTerm():
					term = -int32(cn.Node())
				}
				if term != 0 {
					if jid := net.TermJunction(term); jid != 0 {
						fmt.Fprintf(w, "%s  (termjid %d %d)\n", indent, term, jid)
					}
				}
			}
		}

		if zero != nil {
			zero.GndTotalCap(gnd, total, 1)
			x, y := zero.Coords()
			fmt.Fprintf(w, "%s  (zero %d (at %d %d) (gnd %s) (cc %s))\n",
				indent, zero.TargetNode(), x, y, floats(gnd), floats(diff(total, gnd)))
		}
		for _, rs := range rsegs {
			rs.GndTotalCap(gnd, total, 1)
			rs.AllRes(res)
			x, y := rs.Coords()
			fmt.Fprintf(w, "%s  (rseg %d %d (shape %d) (at %d %d) (res %s) (gnd %s) (cc %s))\n",
				indent, rs.SourceNode(), rs.TargetNode(), rs.ShapeID(), x, y,
				floats(res), floats(gnd), floats(diff(total, gnd)))
		}
		fmt.Fprintf(w, "%s)\n", indent)
	}
	return nil
}

func flags(cn parasitics.CapNode) string {
	var b strings.Builder
	if cn.IsITerm() {
		b.WriteString(" iterm")
	}
	if cn.IsBTerm() {
		b.WriteString(" bterm")
	}
	if cn.IsBranch() {
		b.WriteString(" branch")
	}
	return b.String()
}

func floats(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}

func diff(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// escapeName percent-encodes the bytes the s-expression reader would split
// or strip, so that plain names stay bare.
func escapeName(name string) string {
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c <= ' ' || c == 0x7f || strings.IndexByte(nameSpecials, c) >= 0 {
			fmt.Fprintf(&b, "%%%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

const nameSpecials = "()[]{}\"'`,;#%\\"
