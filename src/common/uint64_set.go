package common

import (
	"sync"

	"github.com/google/btree"
)

const setDegree = 32

type uint64Item uint64

func (a uint64Item) Less(b btree.Item) bool {
	return a < b.(uint64Item)
}

// Uint64Set is a grow-only set of integers, safe for concurrent use. Values
// come back in ascending order.
type Uint64Set struct {
	sync.RWMutex
	tree *btree.BTree
}

// NewUint64Set ...
func NewUint64Set(values ...uint64) *Uint64Set {
	s := &Uint64Set{
		tree: btree.New(setDegree),
	}
	for _, v := range values {
		s.tree.ReplaceOrInsert(uint64Item(v))
	}
	return s
}

// Insert adds v and reports whether it was not already present.
func (s *Uint64Set) Insert(v uint64) bool {
	s.Lock()
	defer s.Unlock()
	return s.tree.ReplaceOrInsert(uint64Item(v)) == nil
}

// InsertAll adds every value and returns how many were new.
func (s *Uint64Set) InsertAll(values []uint64) int {
	s.Lock()
	defer s.Unlock()

	added := 0
	for _, v := range values {
		if s.tree.ReplaceOrInsert(uint64Item(v)) == nil {
			added++
		}
	}
	return added
}

// Has ...
func (s *Uint64Set) Has(v uint64) bool {
	s.RLock()
	defer s.RUnlock()
	return s.tree.Has(uint64Item(v))
}

// Len ...
func (s *Uint64Set) Len() int {
	s.RLock()
	defer s.RUnlock()
	return s.tree.Len()
}

// Values returns a sorted copy of the set. It is never nil.
func (s *Uint64Set) Values() []uint64 {
	s.RLock()
	defer s.RUnlock()

	res := make([]uint64, 0, s.tree.Len())
	s.tree.Ascend(func(i btree.Item) bool {
		res = append(res, uint64(i.(uint64Item)))
		return true
	})
	return res
}

// Clone returns an independent copy. Cloning swaps the copy-on-write context
// of the source tree, so it takes the write lock.
func (s *Uint64Set) Clone() *Uint64Set {
	s.Lock()
	defer s.Unlock()
	return &Uint64Set{
		tree: s.tree.Clone(),
	}
}
