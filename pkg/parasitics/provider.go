package parasitics

import "fmt"

// SigType classifies a net's electrical role.
type SigType uint8

const (
	SigSignal SigType = iota
	SigClock
	SigAnalog
	SigPower
	SigGround
)

func (s SigType) String() string {
	switch s {
	case SigSignal:
		return "signal"
	case SigClock:
		return "clock"
	case SigAnalog:
		return "analog"
	case SigPower:
		return "power"
	case SigGround:
		return "ground"
	}
	return fmt.Sprintf("SigType(%d)", uint8(s))
}

// IsSupply reports whether the net is a power or ground net.
func (s SigType) IsSupply() bool {
	return s == SigPower || s == SigGround
}

// ParseSigType converts a textual signal type ("signal", "power", ...).
func ParseSigType(name string) (SigType, error) {
	switch name {
	case "signal", "SIGNAL", "":
		return SigSignal, nil
	case "clock", "CLOCK":
		return SigClock, nil
	case "analog", "ANALOG":
		return SigAnalog, nil
	case "power", "POWER":
		return SigPower, nil
	case "ground", "GROUND":
		return SigGround, nil
	}
	return SigSignal, fmt.Errorf("parasitics: unknown signal type %q", name)
}

// Control carries the extraction-control flags of a block.
type Control struct {
	// Foreign is set when the parasitics were read from SPEF rather than
	// extracted, in which case shape ids are meaningless.
	Foreign bool
	// RSegCoords is set when foreign data still carries coordinates.
	RSegCoords bool
	// PreMerged is set once resistor segments were merged ahead of tree
	// building.
	PreMerged bool
	// PreMergeCap is the capacitance limit of the last pre-merge.
	PreMergeCap float64
}

// Provider is the parasitic database the RC-tree engine reads from.
type Provider interface {
	// CornerCount is the number of extraction corners stored per value.
	CornerCount() int
	Control() Control
	// Nets returns the nets of the block in database order.
	Nets() []Net
	Net(id uint32) (Net, bool)
	CapNode(id uint32) (CapNode, bool)
	// CornerBlock returns the block holding parasitics for an extraction
	// corner. Blocks storing every corner return themselves.
	CornerBlock(corner int) Provider
}

// Merger is implemented by providers able to collapse runs of resistor
// segments into one segment.
type Merger interface {
	MergeRSegs(netID uint32, runs [][]RSeg) error
	// MarkPreMerged records that every net was merged with maxCap.
	MarkPreMerged(maxCap float64)
}

// Net is one routed net with parasitics.
type Net interface {
	ID() uint32
	Name() string
	TermCount() int
	SigType() SigType
	// RSegs returns the resistor segments ordered from the driver outwards.
	RSegs() []RSeg
	// ZeroRSeg is the anchor segment carrying the driver location and the
	// driver node capacitance. It may be nil for nets without parasitics.
	ZeroRSeg() RSeg
	// RCDisconnected reports whether the resistor network has more than one
	// connected component.
	RCDisconnected() bool
	// HasWire reports whether routing shapes are available for the net.
	HasWire() bool
	// TermJunction maps a terminal (positive iterm, negative bterm) to the
	// wire junction it lands on.
	TermJunction(termMap int32) uint32
}

// RSeg is one resistor segment between two capacitance nodes.
//
// The slice arguments of the accessors must hold CornerCount() entries.
type RSeg interface {
	ID() uint32
	SourceNode() uint32
	TargetNode() uint32
	ShapeID() uint32
	Coords() (x, y int)
	Resistance(corner int) float64
	// GndTotalCap overwrites gnd and total with this segment's ground and
	// total capacitance; total includes mcf times the coupling capacitance.
	GndTotalCap(gnd, total []float64, mcf float64)
	// AddGndTotalCap adds this segment's capacitance into gnd and total.
	AddGndTotalCap(gnd, total []float64, mcf float64)
	AllRes(res []float64)
	AddAllRes(res []float64)
}

// CapNode is a capacitance-bearing point of a net.
type CapNode interface {
	ID() uint32
	// Node is the terminal number for terminals, otherwise the junction id.
	Node() uint32
	IsITerm() bool
	IsBTerm() bool
	IsBranch() bool
	// IsTreeNode is true for terminals and branch points.
	IsTreeNode() bool
	// ChildrenCount is the number of resistor segments touching the node.
	ChildrenCount() int
}

// IsDangling reports whether a node is a dead-end stub: at most one segment
// touches it and it is neither a terminal nor a branch point.
func IsDangling(n CapNode) bool {
	return n.ChildrenCount() <= 1 && !n.IsTreeNode()
}
