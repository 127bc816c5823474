// Package kv talks to linearizable key-value services, and provides one.
//
// Client reads, writes and compare-and-swaps values held by a service such as
// the harness' lin-kv, by calling it through a node. Store keeps values in a
// badger database with the same semantics, and Service serves it as a
// workload, so a cluster can be exercised without the harness.
//
// Keys are strings and values are raw JSON. Values are compared by meaning,
// not by bytes: 1 and 1.0 differ, but object key order and whitespace do not
// matter.
package kv
