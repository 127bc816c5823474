package node

import (
	"errors"
	"sort"
)

// ErrAlreadyInitialised is returned when a second init reaches the node.
var ErrAlreadyInitialised = errors.New("node already initialised")

// Identity is what init tells a node about itself and the cluster. It is set
// once and read-only thereafter, apart from Neighbors which topology may
// narrow.
type Identity struct {
	ID        string
	Peers     []string
	Neighbors []string
}

func newIdentity(id string, peers []string) Identity {
	ps := make([]string, len(peers))
	copy(ps, peers)

	return Identity{
		ID:        id,
		Peers:     ps,
		Neighbors: others(id, ps),
	}
}

// Others returns every peer but this node.
func (i Identity) Others() []string {
	return others(i.ID, i.Peers)
}

func (i Identity) clone() Identity {
	c := Identity{ID: i.ID}
	c.Peers = append([]string(nil), i.Peers...)
	c.Neighbors = append([]string(nil), i.Neighbors...)
	return c
}

// neighborsFrom picks this node's entry in a topology map, falling back on
// every other peer when the map does not mention it.
func (i Identity) neighborsFrom(topology map[string][]string) []string {
	ns, ok := topology[i.ID]
	if !ok {
		return i.Others()
	}

	res := make([]string, 0, len(ns))
	seen := make(map[string]bool)
	for _, n := range ns {
		if n == i.ID || seen[n] {
			continue
		}
		seen[n] = true
		res = append(res, n)
	}
	sort.Strings(res)
	return res
}

func others(self string, peers []string) []string {
	res := make([]string, 0, len(peers))
	for _, p := range peers {
		if p != self {
			res = append(res, p)
		}
	}
	return res
}
