package rctree

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/OpenTraceLab/OpenTraceRCX/pkg/parasitics"
)

// Values are printed with six significant digits, matching the golden dumps.

// PrintTree writes the node graph of the current net with its child ids and
// per-corner R and C. It returns the number of nodes printed.
func (t *Tree) PrintTree(w io.Writer, netID uint32, msg string) int {
	fmt.Fprintf(w, "\n%s ------------------------------\n", msg)
	fmt.Fprintf(w, "\nnetId %d  has %d nodes\n", netID, t.NodeCount())

	for id := t.base; id < uint32(len(t.nodes)); id++ {
		fmt.Fprintf(w, "node %5d : ", id)
		node := t.nodes[id]
		for _, c := range t.Children(id) {
			fmt.Fprintf(w, "\t%d", c)
		}
		for c := 0; c < len(node.Res); c++ {
			fmt.Fprintf(w, "\t\t\t\t\tR= %.6g  C= %.6g\n", node.Res[c], node.Cap[c])
		}
		fmt.Fprintf(w, "\t\t\t\t\tX= %d Y= %d\n", node.X, node.Y)
	}
	return t.NodeCount()
}

// PrintTnodeTable writes the first n Tnodes of the last MakeGraph.
func (t *Tree) PrintTnodeTable(w io.Writer, netID uint32, n int) {
	fmt.Fprintf(w, "\n\nnetId %d  has %d nodes\n", netID, n)
	for i := 0; i < n && i < len(t.tnodes); i++ {
		fmt.Fprintf(w, "node %5d : ", i+1)
		node := t.tnodes[i]
		for c := 0; c < len(node.Res); c++ {
			fmt.Fprintf(w, "\t\t\t\t\tR= %5.6g  C= %5.6g\n", node.Res[c], node.Cap[c])
		}
		fmt.Fprintf(w, "\t\t\t\t\tX= %d Y= %d\n", node.X, node.Y)
	}
}

// PrintTnodes writes the tree rooted at t. Nodes are numbered in the order
// they are discovered; children are listed by those numbers.
func (t *Tnode) PrintTnodes(w io.Writer, cornerCount int) int {
	fmt.Fprintf(w, "extTnodes of Net %d:\n", t.NetID)
	fmt.Fprintf(w, "NetId %d Node graph from extTnodes --------------------\n\n", t.NetID)

	stack := []*Tnode{t}
	seq := []int{1}
	next := 2
	var parents []*Tnode
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		if len(parents) > 0 && node == parents[len(parents)-1] {
			parents = parents[:len(parents)-1]
			stack = stack[:len(stack)-1]
			seq = seq[:len(seq)-1]
			continue
		}
		fmt.Fprintf(w, "node %5d : ", seq[len(seq)-1])
		fmt.Fprintf(w, "\tX=%d Y=%d net=%d capnd=%d splitCnt=%d\n",
			node.X, node.Y, node.NetID, node.CapNodeID, node.SplitCount)
		fmt.Fprintf(w, "\t\ttermMap= %d, junctionId= %d,", node.TermMap, node.JunctionID)
		if len(node.Children) > 0 {
			parents = append(parents, node)
			fmt.Fprintf(w, " children:")
			for _, child := range node.Children {
				fmt.Fprintf(w, " %d", next)
				seq = append(seq, next)
				next++
				stack = append(stack, child)
			}
		}
		fmt.Fprintf(w, "\n")
		for c := 0; c < cornerCount && c < len(node.Res); c++ {
			fmt.Fprintf(w, "\tR_%d= %.6g  totalC_%d= %.6g gndC_%d= %.6g ccC_%d= %.6g \n",
				c, node.Res[c], c, node.Cap[c], c, node.GndCap[c], c, node.Cap[c]-node.GndCap[c])
		}
		fmt.Fprintf(w, "\n")
		if len(node.Children) == 0 {
			stack = stack[:len(stack)-1]
			seq = seq[:len(seq)-1]
		}
	}
	fmt.Fprintf(w, "NetId %d has %d nodes\n\n", t.NetID, next-1)
	return next - 1
}

// WriteTnodesFile writes PrintTnodes output to <dir>/<tag>_net<id>_tnode.
func (t *Tnode) WriteTnodesFile(dir, tag string, cornerCount int) error {
	name := filepath.Join(dir, fmt.Sprintf("%s_net%d_tnode", tag, t.NetID))
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("rctree: failed to create %s: %w", name, err)
	}
	bw := bufio.NewWriter(f)
	t.PrintTnodes(bw, cornerCount)
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("rctree: failed to write %s: %w", name, err)
	}
	return f.Close()
}

func (t *Tree) printFlowNode(w io.Writer, tgt parasitics.CapNode, node *RCNode, id uint32) {
	switch {
	case tgt.IsITerm():
		fmt.Fprintf(w, "\t\t\t---> (%d) I_TERM= %d ", id, node.TermMap)
	case tgt.IsBTerm():
		fmt.Fprintf(w, "\t\t\t---> (%d) B_TERM= %d", id, node.TermMap)
	case parasitics.IsDangling(tgt):
		fmt.Fprintf(w, "\t\t\t---> (%d)  DANGLING= %d", id, node.JunctionID)
	default:
		fmt.Fprintf(w, "\t\t\t---> (%d)  JUNCTION= %d", id, node.JunctionID)
	}
	fmt.Fprintf(w, "\n")
	for c := 0; c < len(node.Res); c++ {
		fmt.Fprintf(w, "\t\t\ttotalC_%d= %.6g  gndc_%d= %.6g ccc_%d= %.6g R_%d=% .6g\n",
			c, node.Cap[c], c, node.GndCap[c], c, node.Cap[c]-node.GndCap[c], c, node.Res[c])
	}
	fmt.Fprintf(w, "\t\t\t(%d %d)\n", node.X, node.Y)
}
