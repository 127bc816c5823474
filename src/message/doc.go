// Package message defines the wire data model shared by every workload.
//
// A Message is an addressed envelope {src, dest, body}. The Body is a tagged
// union keyed by its "type" field: the header fields (type, msg_id,
// in_reply_to) and the kind-specific payload fields are flattened into a single
// JSON object on the wire, one object per line.
//
// Decoding picks the payload struct from a registry of kinds, so handlers can
// type-switch on Body.Payload instead of fishing optional fields out of a
// catch-all struct. Kinds that are not registered keep their raw JSON, which
// lets the dispatch loop fail fast on protocol mismatches.
package message
