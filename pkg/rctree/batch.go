package rctree

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/OpenTraceLab/OpenTraceRCX/pkg/parasitics"
)

// Progress reports the state of a batch run.
type Progress struct {
	Phase  string // "init", "building", "done"
	Net    string // Net being built
	NetID  uint32
	Index  int // Current net index (0-based)
	Total  int // Number of nets in the block
	Built  int // Trees built so far
	Failed int // Nets that failed so far
}

// Report summarizes a batch run.
type Report struct {
	Built   int              // Nets with a tree
	Skipped int              // Power and ground nets
	Failed  map[uint32]error // Per-net failures
	Nodes   int              // Tnodes materialized over all nets
}

// BuildAll builds the tree of every signal net of p, one net at a time on
// a single Tree.
//
// Power and ground nets are skipped. A net that fails is recorded in the
// report and the run continues. Each tree is handed to keep, if set; trees
// for which keep returns false (or all trees when keep is nil) are freed
// right away.
//
// Parameters:
//   - ctx: checked between nets
//   - cfg: build settings (nil for DefaultConfig())
//   - progress: optional channel for progress updates (can be nil)
//
// Only context cancellation and configuration errors are returned.
func BuildAll(
	ctx context.Context,
	p parasitics.Provider,
	cfg *Config,
	progress chan<- Progress,
	keep func(net parasitics.Net, root *Tnode, n int) bool,
	opts ...Option,
) (*Report, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("rctree: invalid config: %w", err)
	}
	// Trees of a batch always start from a clean pool.
	run := *cfg
	run.Reset = true

	nets := p.Nets()
	if progress != nil {
		progress <- Progress{Phase: "init", Total: len(nets)}
	}

	tree := NewTree(p, opts...)
	report := &Report{Failed: make(map[uint32]error)}

	for i, net := range nets {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		if net.SigType().IsSupply() {
			report.Skipped++
			continue
		}

		if progress != nil {
			progress <- Progress{
				Phase:  "building",
				Net:    net.Name(),
				NetID:  net.ID(),
				Index:  i,
				Total:  len(nets),
				Built:  report.Built,
				Failed: len(report.Failed),
			}
		}

		root, n, err := tree.MakeTreeByID(net.ID(), &run)
		if err != nil {
			if !errors.Is(err, ErrNoRSegs) {
				tree.log.Debug("net skipped", zap.Uint32("net_id", net.ID()), zap.Error(err))
			}
			report.Failed[net.ID()] = err
			continue
		}
		report.Built++
		report.Nodes += n

		if keep == nil || !keep(net, root, n) {
			Free(root)
		}
	}

	if progress != nil {
		progress <- Progress{
			Phase:  "done",
			Index:  len(nets),
			Total:  len(nets),
			Built:  report.Built,
			Failed: len(report.Failed),
		}
	}
	return report, nil
}
