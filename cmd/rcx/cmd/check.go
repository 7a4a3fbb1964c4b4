package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceRCX/pkg/rctree"
)

var checkCmd = &cobra.Command{
	Use:   "check <parasitics-file>",
	Short: "Report nets whose RC network does not form a tree",
	Long: `Grow the node graph of every signal net and validate it without
materializing trees. Nets with a node reached twice, nets whose routing is
not connected and nets that cannot be built at all are listed.

Examples:
  rcx check design.rcx
  rcx check design.spef --no-dummy`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	db, err := loadDesign(args[0])
	if err != nil {
		return err
	}

	tree := rctree.NewTree(db, rctree.WithLogger(log))
	var good, notTree, other int
	for _, net := range db.Nets() {
		if net.SigType().IsSupply() {
			continue
		}
		err := tree.BuildGraph(net, cfg)
		var se *rctree.StructureError
		switch {
		case err == nil:
			good++
			if verbose {
				fmt.Printf("  ok    %-30s %d nodes\n", net.Name(), tree.NodeCount())
			}
		case errors.As(err, &se):
			notTree++
			fmt.Printf("  FAIL  %-30s %v\n", net.Name(), se)
		default:
			other++
			fmt.Printf("  SKIP  %-30s %v\n", net.Name(), err)
		}
	}

	fmt.Printf("\n%d trees, %d not trees, %d skipped\n", good, notTree, other)
	if notTree > 0 {
		return fmt.Errorf("%d nets failed validation", notTree)
	}
	return nil
}
