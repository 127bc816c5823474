package crdt

import (
	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/mosaicnetworks/murmur/src/message"
)

// PNCounter pairs two grow-only counters, one for increments and one for
// decrements. The value is their difference.
type PNCounter struct {
	inc *GCounter
	dec *GCounter
}

// NewPNCounter ...
func NewPNCounter() *PNCounter {
	return &PNCounter{
		inc: NewGCounter(),
		dec: NewGCounter(),
	}
}

// Add implements the CRDT interface.
func (p *PNCounter) Add(node string, add message.Add) error {
	if add.Delta == nil {
		return common.NewRPCErr(common.MalformedRequest, "pn-counter add needs a delta")
	}

	delta := *add.Delta
	if delta >= 0 {
		p.inc.incr(node, uint64(delta))
	} else {
		p.dec.incr(node, uint64(-delta))
	}
	return nil
}

// Read implements the CRDT interface.
func (p *PNCounter) Read() interface{} {
	return int64(p.inc.sum()) - int64(p.dec.sum())
}

// Merge implements the CRDT interface.
func (p *PNCounter) Merge(other CRDT) error {
	o, ok := other.(*PNCounter)
	if !ok {
		return mismatch(KindPNCounter, other)
	}
	p.inc.merge(o.inc)
	p.dec.merge(o.dec)
	return nil
}

// FromWire implements the CRDT interface.
func (p *PNCounter) FromWire(r *message.Replicate) (CRDT, error) {
	if r.PNCounters == nil {
		return NewPNCounter(), nil
	}
	return &PNCounter{
		inc: gCounterFrom(r.PNCounters[0]),
		dec: gCounterFrom(r.PNCounters[1]),
	}, nil
}

// ToWire implements the CRDT interface.
func (p *PNCounter) ToWire() message.Replicate {
	return message.Replicate{
		PNCounters: &[2]map[string]uint64{p.inc.copyCounts(), p.dec.copyCounts()},
	}
}

// Clone implements the CRDT interface.
func (p *PNCounter) Clone() CRDT {
	return &PNCounter{
		inc: &GCounter{counts: p.inc.copyCounts()},
		dec: &GCounter{counts: p.dec.copyCounts()},
	}
}
