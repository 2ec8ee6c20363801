// Package updatelog is the durable update log and compaction engine behind
// collaborative documents.
//
// # Overview
//
// Every document accumulates an append-only sequence of opaque binary CRDT
// update fragments. The package defines the Store contract the storage
// drivers implement (Pebble embedded by default, PostgreSQL and Redis as
// alternatives), the Loader that reconstructs document state by replaying
// fragments through the merge primitive, and the Compactor that collapses a
// document's fragments into a single equivalent record at sequence zero.
//
// # Sequences
//
// Sequences are per-document, strictly increasing, and never reused while
// records exist. The next sequence is always derived from the store inside
// the same atomic unit as the write; there is no in-process counter, so
// horizontally scaled writers and process restarts cannot collide. Gaps are
// legal; after compaction the single surviving record sits at sequence zero
// and the next append receives one.
//
// # Concurrency
//
// Documents are independent units: appends, clears, and compactions for one
// document are strictly serialized against each other, and nothing is
// serialized across documents. Readers always observe a document's record
// set before or after a mutation, never partway through one.
package updatelog
