package message

import "sync"

// Factory allocates the payload a kind decodes into. A nil Factory registers a
// kind that carries no payload.
type Factory func() interface{}

var (
	registryLock sync.RWMutex
	registry     = map[string]Factory{
		TypeInit:        func() interface{} { return &Init{} },
		TypeInitOk:      nil,
		TypeTopology:    func() interface{} { return &Topology{} },
		TypeTopologyOk:  nil,
		TypeEcho:        func() interface{} { return &Echo{} },
		TypeEchoOk:      func() interface{} { return &Echo{} },
		TypeBroadcast:   func() interface{} { return &Broadcast{} },
		TypeBroadcastOk: nil,
		TypeRead:        func() interface{} { return &Read{} },
		TypeReadOk:      func() interface{} { return &ReadOk{} },
		TypeWrite:       func() interface{} { return &Write{} },
		TypeWriteOk:     nil,
		TypeCas:         func() interface{} { return &Cas{} },
		TypeCasOk:       nil,
		TypeAdd:         func() interface{} { return &Add{} },
		TypeAddOk:       nil,
		TypeTxn:         func() interface{} { return &Txn{} },
		TypeTxnOk:       func() interface{} { return &Txn{} },
		TypeError:       func() interface{} { return &Error{} },
	}
)

// Register adds or replaces the payload factory for a kind. Workload packages
// register the kinds only they exchange.
func Register(kind string, factory Factory) {
	registryLock.Lock()
	defer registryLock.Unlock()
	registry[kind] = factory
}

// Registered reports whether kind has a payload registered.
func Registered(kind string) bool {
	_, ok := lookup(kind)
	return ok
}

func lookup(kind string) (Factory, bool) {
	registryLock.RLock()
	defer registryLock.RUnlock()
	f, ok := registry[kind]
	return f, ok
}
