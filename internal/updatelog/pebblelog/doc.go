// Package pebblelog stores the update log in an embedded Pebble database.
//
// Records live under length-prefixed document keys with a big-endian
// sequence suffix, so one document's history is a contiguous, ordered key
// range. Every stored value carries a CRC32C envelope; damage is detected
// on read and reported with the record's sequence instead of being skipped.
// Appends, clears, and the compaction swap each commit as a single batch.
package pebblelog
