// Package node implements the dispatch loop shared by every workload.
//
// A Node reads messages from a Transport one at a time. Before anything else
// the harness sends init, which assigns the node its id and the ids of every
// node in the cluster; messages that arrive earlier are refused with a
// temporarily-unavailable error. The optional topology message narrows the
// set of neighbors a node gossips with. Every other message is passed to the
// Workload the node was created with.
//
// Message ids come from a single IDGenerator owned by the node, so requests
// minted concurrently by background routines never collide.
//
// Handlers run on the dispatch loop and may block on Call: responses that
// answer a pending call are routed by the transport without going through the
// loop. Background work is started with Go and is cancelled and awaited by
// Shutdown. ControlTimer drives periodic work such as anti-entropy.
package node
