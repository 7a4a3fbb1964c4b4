package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceRCX/pkg/parasitics"
	"github.com/OpenTraceLab/OpenTraceRCX/pkg/rctree"
)

var (
	batchOutput  string
	batchTimeout int // timeout in seconds
)

var batchCmd = &cobra.Command{
	Use:   "batch <parasitics-file>",
	Short: "Build the RC tree of every signal net",
	Long: `Build the RC tree of every net in the design, one net at a time.

Power and ground nets are skipped. A net that cannot be built is reported
and the run goes on with the next net.

Examples:
  rcx batch design.rcx
  rcx batch design.spef --max-cap 20 --output trees.txt
  rcx batch design.rcx --timeout 60`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVarP(&batchOutput, "output", "o", "",
		"write every tree to this file")
	batchCmd.Flags().IntVar(&batchTimeout, "timeout", 0,
		"timeout in seconds (0 = no timeout)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	startTime := time.Now()

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if batchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(batchTimeout)*time.Second)
		defer cancel()
	}

	var keep func(parasitics.Net, *rctree.Tnode, int) bool
	if batchOutput != "" {
		out, err := os.Create(batchOutput)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer out.Close()
		keep = func(_ parasitics.Net, root *rctree.Tnode, _ int) bool {
			root.PrintTnodes(out, db.CornerCount())
			return false
		}
	}

	progress := make(chan rctree.Progress)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progress {
			if verbose && p.Phase == "building" {
				fmt.Printf("\r[%d/%d] %-40s built=%d failed=%d",
					p.Index+1, p.Total, p.Net, p.Built, p.Failed)
			}
		}
		if verbose {
			fmt.Println()
		}
	}()

	report, err := rctree.BuildAll(ctx, db, cfg, progress, keep, rctree.WithLogger(log))
	close(progress)
	<-done
	if err != nil {
		return fmt.Errorf("batch stopped: %w", err)
	}

	fmt.Printf("Built %d trees (%d nodes), skipped %d supply nets, %d failed in %v\n",
		report.Built, report.Nodes, report.Skipped, len(report.Failed),
		time.Since(startTime).Round(time.Millisecond))

	if len(report.Failed) > 0 {
		ids := make([]uint32, 0, len(report.Failed))
		for id := range report.Failed {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			err := report.Failed[id]
			if !verbose && errors.Is(err, rctree.ErrNoRSegs) {
				continue
			}
			fmt.Printf("  net %d: %v\n", id, err)
		}
	}
	return nil
}
