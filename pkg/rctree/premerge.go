package rctree

import (
	"errors"
	"fmt"

	"github.com/OpenTraceLab/OpenTraceRCX/pkg/parasitics"
)

// PlanPreMerge splits the segments of net into the runs the tree builder
// would sum into one node: a run closes on a terminal or branch target, on
// a dangling target, or once the running total capacitance at corner is
// above maxCap. Coupling counts with a factor of 1. Segments after the last
// closed run are left out.
func PlanPreMerge(p parasitics.Provider, net parasitics.Net, maxCap float64, corner int) ([][]parasitics.RSeg, error) {
	rsegs := net.RSegs()
	if len(rsegs) == 0 {
		return nil, fmt.Errorf("%w: net %d %s", ErrNoRSegs, net.ID(), net.Name())
	}
	if corner < 0 || corner >= p.CornerCount() {
		return nil, fmt.Errorf("rctree: corner %d out of range (%d corners)", corner, p.CornerCount())
	}

	total := make([]float64, p.CornerCount())
	if zrc := net.ZeroRSeg(); zrc != nil {
		zrc.GndTotalCap(nil, total, 1)
	}

	var runs [][]parasitics.RSeg
	var run []parasitics.RSeg
	first := true
	for i, rc := range rsegs {
		run = append(run, rc)
		if first && i != 0 {
			rc.GndTotalCap(nil, total, 1)
		} else {
			rc.AddGndTotalCap(nil, total, 1)
		}
		first = false

		if rc.SourceNode() == rc.TargetNode() {
			continue
		}
		tgt, ok := p.CapNode(rc.TargetNode())
		if !ok {
			return nil, fmt.Errorf("%w: %d on net %d", ErrCapNodeNotFound, rc.TargetNode(), net.ID())
		}
		if !tgt.IsTreeNode() && total[corner] <= maxCap && !parasitics.IsDangling(tgt) {
			continue
		}
		runs = append(runs, run)
		run = nil
		first = true
	}
	return runs, nil
}

// PreMerge merges the runs planned for net in the provider and returns how
// many segments were removed. Power and ground nets are left alone.
func PreMerge(p parasitics.Provider, net parasitics.Net, cfg *Config) (int, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return 0, err
	}
	m, ok := p.(parasitics.Merger)
	if !ok {
		return 0, fmt.Errorf("rctree: provider %T cannot merge segments", p)
	}
	if net.SigType().IsSupply() {
		return 0, nil
	}
	runs, err := PlanPreMerge(p, net, cfg.MaxCap, cfg.Corner)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, run := range runs {
		if len(run) > 1 {
			removed += len(run) - 1
		}
	}
	if removed == 0 {
		return 0, nil
	}
	if err := m.MergeRSegs(net.ID(), runs); err != nil {
		return 0, fmt.Errorf("rctree: failed to merge net %d: %w", net.ID(), err)
	}
	return removed, nil
}

// PreMergeBlock pre-merges every signal net of p with maxCap at corner.
// A block already merged with a limit at least as large is left as is.
// It returns the number of segments removed.
func PreMergeBlock(p parasitics.Provider, maxCap float64, corner int) (int, error) {
	if maxCap == 0 {
		maxCap = DefaultMaxCap
	}
	if p.Control().PreMergeCap >= maxCap {
		return 0, nil
	}
	m, ok := p.(parasitics.Merger)
	if !ok {
		return 0, fmt.Errorf("rctree: provider %T cannot merge segments", p)
	}

	cfg := DefaultConfig()
	cfg.MaxCap = maxCap
	cfg.Corner = corner

	removed := 0
	for _, net := range p.Nets() {
		n, err := PreMerge(p, net, cfg)
		if errors.Is(err, ErrNoRSegs) {
			continue
		}
		if err != nil {
			return removed, err
		}
		removed += n
	}
	m.MarkPreMerged(maxCap)
	return removed, nil
}
