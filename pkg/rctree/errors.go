package rctree

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRSegs is returned for nets without resistor segments, either
	// empty or not extracted yet.
	ErrNoRSegs = errors.New("rctree: net has no RC segments")
	// ErrForeignNoCoords is returned when buffering was requested on SPEF
	// data that carries no coordinates.
	ErrForeignNoCoords = errors.New("rctree: extraction data is from SPEF without coordinates")
	ErrTooFewTerms     = errors.New("rctree: net has fewer than two terminals")
	ErrDriverMissing   = errors.New("rctree: driver node missing")
	ErrRCDisconnected  = errors.New("rctree: RC network is disconnected")
	ErrNetNotFound     = errors.New("rctree: net not found")
	ErrCapNodeNotFound = errors.New("rctree: capacitance node not found")

	// ErrNotTree is wrapped by every StructureError.
	ErrNotTree      = errors.New("rctree: node graph is not a tree")
	ErrTwoParents   = errors.New("node has two parents")
	ErrNotConnected = errors.New("routing is not connected")

	// ErrChildOverflow means a node received more children than the slots
	// reserved for it.
	ErrChildOverflow = errors.New("rctree: child slots exhausted")
	// ErrStaleRef is returned when a NodeRef outlives a pool reset.
	ErrStaleRef = errors.New("rctree: stale node reference")
)

// StructureError reports why a net's node graph failed validation.
type StructureError struct {
	Kind    error // ErrTwoParents or ErrNotConnected
	NetID   uint32
	NetName string
	Node    uint32
	// Parents holds the two parents of Node for ErrTwoParents.
	Parents [2]uint32
}

func (e *StructureError) Error() string {
	if errors.Is(e.Kind, ErrTwoParents) {
		return fmt.Sprintf("rctree: node %d in net %d %s has two parents %d and %d",
			e.Node, e.NetID, e.NetName, e.Parents[0], e.Parents[1])
	}
	return fmt.Sprintf("rctree: routing of net %d %s is not connected (node %d unreachable)",
		e.NetID, e.NetName, e.Node)
}

// Is makes errors.Is match both ErrNotTree and the specific kind.
func (e *StructureError) Is(target error) bool {
	return target == ErrNotTree || target == e.Kind
}
