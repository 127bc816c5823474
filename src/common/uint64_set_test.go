package common

import (
	"reflect"
	"sync"
	"testing"
)

func TestUint64Set(t *testing.T) {
	s := NewUint64Set(5, 1)

	if !s.Insert(3) {
		t.Fatalf("3 should be new")
	}
	if s.Insert(5) {
		t.Fatalf("5 should already be present")
	}

	if added := s.InsertAll([]uint64{1, 2, 9, 2}); added != 2 {
		t.Fatalf("InsertAll should add 2 values, not %d", added)
	}

	if !s.Has(9) || s.Has(4) {
		t.Fatalf("membership is wrong")
	}

	expected := []uint64{1, 2, 3, 5, 9}
	if v := s.Values(); !reflect.DeepEqual(v, expected) {
		t.Fatalf("values should be %v, not %v", expected, v)
	}

	c := s.Clone()
	c.Insert(100)
	if s.Has(100) || s.Len() != 5 {
		t.Fatalf("clone should not share state")
	}

	if v := NewUint64Set().Values(); v == nil || len(v) != 0 {
		t.Fatalf("empty set should give an empty, non-nil slice")
	}
}

func TestUint64Set_Concurrent(t *testing.T) {
	s := NewUint64Set()

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := uint64(0); i < 500; i++ {
				s.Insert(i)
				s.Values()
			}
		}()
	}
	wg.Wait()

	if s.Len() != 500 {
		t.Fatalf("set should hold 500 values, not %d", s.Len())
	}
}
