// Package crdt defines the merge-primitive capability the update log depends
// on, and ships a reference implementation.
//
// # Overview
//
// The update log stores opaque binary update fragments and never inspects
// them. Everything it needs from a CRDT library fits in two operations:
// applying an update to an in-memory state, and merging a set of updates into
// one equivalent update. Those two operations are the Merger/State interfaces
// here; any conforming library (a Yjs-compatible codec, Automerge bindings)
// can be swapped in at runtime construction.
//
// # Reference implementation
//
// LWWMap is a last-writer-wins element map with a self-describing binary
// update codec. Apply and merge are commutative, associative, and idempotent,
// and merging operates purely on update bytes. It backs the test suites and
// the default server wiring.
package crdt
