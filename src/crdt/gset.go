package crdt

import (
	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/mosaicnetworks/murmur/src/message"
)

// GSet is a grow-only set of integers. Merge is set union.
type GSet struct {
	set *common.Uint64Set
}

// NewGSet ...
func NewGSet(values ...uint64) *GSet {
	return &GSet{set: common.NewUint64Set(values...)}
}

// Add implements the CRDT interface.
func (g *GSet) Add(node string, add message.Add) error {
	if add.Element == nil {
		return common.NewRPCErr(common.MalformedRequest, "g-set add needs an element")
	}
	g.set.Insert(*add.Element)
	return nil
}

// Read implements the CRDT interface. Elements are sorted.
func (g *GSet) Read() interface{} {
	return g.set.Values()
}

// Merge implements the CRDT interface.
func (g *GSet) Merge(other CRDT) error {
	o, ok := other.(*GSet)
	if !ok {
		return mismatch(KindGSet, other)
	}
	g.set.InsertAll(o.set.Values())
	return nil
}

// FromWire implements the CRDT interface.
func (g *GSet) FromWire(r *message.Replicate) (CRDT, error) {
	return NewGSet(r.Value...), nil
}

// ToWire implements the CRDT interface.
func (g *GSet) ToWire() message.Replicate {
	return message.Replicate{Value: g.set.Values()}
}

// Clone implements the CRDT interface.
func (g *GSet) Clone() CRDT {
	return &GSet{set: g.set.Clone()}
}
