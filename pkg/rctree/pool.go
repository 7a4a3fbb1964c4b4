package rctree

import (
	"sync"
	"sync/atomic"
)

// pool is a type-safe wrapper around sync.Pool for *RCNode.
//
// Nodes keep their per-corner slices across reuse; reset only clears them.
type pool struct {
	sync.Pool

	totalAllocated atomic.Int64 // RCNodes ever created
	currentLive    atomic.Int64 // RCNodes checked out
}

func newPool() *pool {
	p := &pool{}
	p.New = func() any {
		p.totalAllocated.Add(1)
		return new(RCNode)
	}
	return p
}

// Get returns a node reset for the given corner count.
func (p *pool) Get(corners int) *RCNode {
	p.currentLive.Add(1)
	n := p.Pool.Get().(*RCNode)
	n.reset(corners)
	return n
}

// Put hands a node back to the pool.
func (p *pool) Put(n *RCNode) {
	if n == nil {
		return
	}
	p.currentLive.Add(-1)
	p.Pool.Put(n)
}

// Stats returns the number of checked-out nodes and the number of nodes
// ever allocated.
func (p *pool) Stats() (live int64, total int64) {
	return p.currentLive.Load(), p.totalAllocated.Load()
}
