package crdt

import (
	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/mosaicnetworks/murmur/src/message"
)

// GCounter is a grow-only counter: every node increments its own slot, merge
// keeps the highest value seen for each slot, and the value is the sum.
type GCounter struct {
	counts map[string]uint64
}

// NewGCounter ...
func NewGCounter() *GCounter {
	return &GCounter{counts: make(map[string]uint64)}
}

// Add implements the CRDT interface. Negative deltas are refused.
func (g *GCounter) Add(node string, add message.Add) error {
	if add.Delta == nil {
		return common.NewRPCErr(common.MalformedRequest, "g-counter add needs a delta")
	}
	if *add.Delta < 0 {
		return common.NewRPCErrf(common.MalformedRequest, "g-counter cannot decrease (delta %d)", *add.Delta)
	}
	g.incr(node, uint64(*add.Delta))
	return nil
}

func (g *GCounter) incr(node string, delta uint64) {
	g.counts[node] += delta
}

func (g *GCounter) sum() uint64 {
	var s uint64
	for _, v := range g.counts {
		s += v
	}
	return s
}

// Read implements the CRDT interface.
func (g *GCounter) Read() interface{} {
	return g.sum()
}

func (g *GCounter) merge(o *GCounter) {
	for node, v := range o.counts {
		if cur, ok := g.counts[node]; !ok || v > cur {
			g.counts[node] = v
		}
	}
}

// Merge implements the CRDT interface.
func (g *GCounter) Merge(other CRDT) error {
	o, ok := other.(*GCounter)
	if !ok {
		return mismatch(KindGCounter, other)
	}
	g.merge(o)
	return nil
}

// FromWire implements the CRDT interface.
func (g *GCounter) FromWire(r *message.Replicate) (CRDT, error) {
	return gCounterFrom(r.Counters), nil
}

// ToWire implements the CRDT interface.
func (g *GCounter) ToWire() message.Replicate {
	return message.Replicate{Counters: g.copyCounts()}
}

// Clone implements the CRDT interface.
func (g *GCounter) Clone() CRDT {
	return &GCounter{counts: g.copyCounts()}
}

func (g *GCounter) copyCounts() map[string]uint64 {
	c := make(map[string]uint64, len(g.counts))
	for k, v := range g.counts {
		c[k] = v
	}
	return c
}

func gCounterFrom(counts map[string]uint64) *GCounter {
	g := NewGCounter()
	for k, v := range counts {
		g.counts[k] = v
	}
	return g
}
