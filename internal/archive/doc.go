// Package archive preserves compacted-away update records in an
// S3-compatible object store.
//
// Compaction folds a document's history into one merged record; the folded
// originals are uploaded as a bundle per compaction, keyed by document and
// sequence span. Archiving is best effort by contract: the compactor logs
// and continues when an upload fails, because the merged record already
// carries the document's full effect.
package archive
