package node

import (
	"sync"
	"sync/atomic"
)

// State captures the state of a node: Waiting, Serving, or Shutdown.
type State uint32

const (
	// Waiting is the initial state, until init assigns an identity.
	Waiting State = iota
	// Serving routes messages to the workload.
	Serving
	// Shutdown is shutdown
	Shutdown
)

// String ...
func (s State) String() string {
	switch s {
	case Waiting:
		return "Waiting"
	case Serving:
		return "Serving"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

type state struct {
	state   State
	wg      sync.WaitGroup
	wgCount int32
}

func (b *state) getState() State {
	stateAddr := (*uint32)(&b.state)
	return State(atomic.LoadUint32(stateAddr))
}

func (b *state) setState(s State) {
	stateAddr := (*uint32)(&b.state)
	atomic.StoreUint32(stateAddr, uint32(s))
}

// Start a goroutine and add it to waitgroup. Unlike gossip routines, retry
// tasks must never be dropped, so there is no limit on their number.
func (b *state) goFunc(f func()) {
	b.wg.Add(1)
	atomic.AddInt32(&b.wgCount, 1)
	go func() {
		defer b.wg.Done()
		defer atomic.AddInt32(&b.wgCount, -1)
		f()
	}()
}

func (b *state) routines() int32 {
	return atomic.LoadInt32(&b.wgCount)
}

func (b *state) waitRoutines() {
	b.wg.Wait()
}

// IDGenerator issues message ids. It is shared by every routine that sends
// requests on behalf of the node; ids are unique and increasing for the
// lifetime of the process.
type IDGenerator struct {
	last uint64
}

// Next returns a fresh id. The first id is 1.
func (g *IDGenerator) Next() uint64 {
	return atomic.AddUint64(&g.last, 1)
}

// Last returns the most recently issued id, or 0.
func (g *IDGenerator) Last() uint64 {
	return atomic.LoadUint64(&g.last)
}
