package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceRCX/pkg/parasitics"
	"github.com/OpenTraceLab/OpenTraceRCX/pkg/rctree"
	"github.com/OpenTraceLab/OpenTraceRCX/pkg/rcxfile"
)

var premergeOutput string

var premergeCmd = &cobra.Command{
	Use:   "premerge <parasitics-file>",
	Short: "Merge resistor segment runs and write the result",
	Long: `Merge every run of resistor segments that tree building would sum into
one node, then write the merged design in the native format.

Examples:
  rcx premerge design.rcx -o merged.rcx
  rcx premerge design.spef --max-cap 20 -o merged.rcx`,
	Args: cobra.ExactArgs(1),
	RunE: runPremerge,
}

func init() {
	rootCmd.AddCommand(premergeCmd)

	premergeCmd.Flags().StringVarP(&premergeOutput, "output", "o", "",
		"output file (native format)")

	premergeCmd.MarkFlagRequired("output")
}

func runPremerge(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	db, err := loadDesign(args[0])
	if err != nil {
		return err
	}

	// A separate corner block holds its values at index 0.
	blk, idx := db.CornerBlock(cfg.Corner), cfg.Corner
	if blk != parasitics.Provider(db) {
		idx = 0
	}
	removed, err := rctree.PreMergeBlock(blk, cfg.MaxCap, idx)
	if err != nil {
		return fmt.Errorf("failed to pre-merge: %w", err)
	}
	if err := rcxfile.WriteFile(premergeOutput, db); err != nil {
		return err
	}

	fmt.Printf("Merged away %d segments, wrote %s\n", removed, premergeOutput)
	return nil
}
