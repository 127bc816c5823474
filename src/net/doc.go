// Package net implements the transports a node uses to exchange messages.
//
// A Transport delivers incoming requests through the channel returned by
// Consumer, and sends messages with Send. Call sends a request and blocks until
// the correlated response arrives or the timeout expires. Responses that answer
// a pending Call are routed directly to the waiting routine and never reach the
// consumer, so a handler may call out to another node without stalling the
// loop that feeds it.
//
// There are two implementations:
//
// - Stdio: newline-delimited JSON over a reader and a writer, normally the
// process' standard input and output. This is how the harness talks to nodes.
//
// - Inmem: in-memory transports connected through an InmemNetwork, used to run
// several nodes in the same process for testing. The network can be
// partitioned to exercise retry logic.
package net
