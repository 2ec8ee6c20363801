// Package pglog stores the update log in Postgres for deployments where
// several server processes share one database.
//
// One row per record, keyed (document_id, sequence). Appends derive the next
// sequence inside the insert statement while holding a per-document advisory
// lock, so sequences stay dense and unique across processes without any
// in-memory allocator. Compaction and clears run in the same lock
// discipline; plain reads rely on MVCC snapshots.
package pglog
