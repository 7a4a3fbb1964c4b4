package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceRCX/pkg/rctree"
)

var (
	treeNet      string
	treePrintTag string
	treeShowPool bool
)

var treeCmd = &cobra.Command{
	Use:   "tree <parasitics-file>",
	Short: "Build and print the RC tree of one net",
	Long: `Build the RC tree of a single net and print it node by node.

Each node is listed with its location, terminal, children and the per-corner
resistance, total, ground and coupling capacitance.

Examples:
  rcx tree design.rcx --net clk_a
  rcx tree design.rcx --net 12 --max-cap 5 --pool
  rcx tree design.spef --net out1 --print-tag golden   # writes golden_net<id>_tnode`,
	Args: cobra.ExactArgs(1),
	RunE: runTree,
}

func init() {
	rootCmd.AddCommand(treeCmd)

	treeCmd.Flags().StringVarP(&treeNet, "net", "n", "", "net id or name")
	treeCmd.Flags().StringVar(&treePrintTag, "print-tag", "",
		"also write the tree to <tag>_net<id>_tnode")
	treeCmd.Flags().BoolVar(&treeShowPool, "pool", false,
		"print the node graph before materialization")

	treeCmd.MarkFlagRequired("net")
}

func runTree(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	cfg.PrintTag = treePrintTag

	log, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	db, err := loadDesign(args[0])
	if err != nil {
		return err
	}
	net, err := findNet(db, treeNet)
	if err != nil {
		return err
	}

	tree := rctree.NewTree(db, rctree.WithLogger(log))
	if treeShowPool {
		if err := tree.BuildGraph(net, cfg); err != nil {
			return fmt.Errorf("failed to build net %s: %w", net.Name(), err)
		}
		tree.PrintTree(os.Stdout, net.ID(), "Node graph")
	}

	root, n, err := tree.MakeTreeByID(net.ID(), cfg)
	if err != nil {
		return fmt.Errorf("failed to build net %s: %w", net.Name(), err)
	}
	defer rctree.Free(root)

	if verbose {
		fmt.Printf("Net %s: %d nodes, %d instance terms, %d block terms\n\n",
			net.Name(), n, tree.ITermCount(), tree.BTermCount())
	}
	root.PrintTnodes(os.Stdout, db.CornerCount())
	return nil
}
