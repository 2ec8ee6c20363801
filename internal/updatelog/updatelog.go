package updatelog

import (
	"context"

	"github.com/macrat/markdown-board-sub001/internal/crdt"
)

// Record is one immutable update fact: an opaque CRDT fragment at a
// per-document sequence position.
type Record struct {
	DocumentID string
	Sequence   uint64
	Payload    []byte
}

// Stats summarizes one document's stored history. The zero value describes
// an unknown or empty document.
type Stats struct {
	Records  uint64
	Bytes    uint64
	FirstSeq uint64
	LastSeq  uint64
}

// CompactResult reports what a compaction did. When Compacted is false the
// document had fewer than two records and nothing was touched.
type CompactResult struct {
	Compacted bool
	// Merged is the single record now holding the document's history,
	// always at sequence zero.
	Merged Record
	// Removed holds the pre-compaction records in sequence order.
	Removed []Record
}

// Store is the durable, ordered ledger of update records. Implementations
// must provide identical observable semantics; the test suites under the
// driver packages enforce the shared laws.
type Store interface {
	// Append durably writes payload as the document's next record and
	// returns the assigned sequence: max(existing)+1, or 0 for an empty
	// document. The sequence derivation and the write are one atomic unit;
	// concurrent appends to the same document never share a sequence.
	// Append returns only after the record is durable, so a caller may
	// acknowledge the edit the moment this returns.
	Append(ctx context.Context, documentID string, payload []byte) (uint64, error)

	// ReadAll returns the document's records ascending by sequence. An
	// unknown document reads as empty, not as an error.
	ReadAll(ctx context.Context, documentID string) ([]Record, error)

	// Clear atomically removes every record for the document. Clearing an
	// empty document is a no-op success.
	Clear(ctx context.Context, documentID string) error

	// Compact reads the document's records in order and, when two or more
	// exist, replaces them with a single record at sequence zero holding
	// merge(payloads). The replacement shares Append's atomicity domain:
	// it is strictly serialized against concurrent appends and clears for
	// the document, and readers observe the old set or the new single
	// record, never an intermediate state. The merge callback runs inside
	// that critical section.
	Compact(ctx context.Context, documentID string, merge crdt.MergeFunc) (CompactResult, error)

	// Documents lists every document id holding at least one record.
	Documents(ctx context.Context) ([]string, error)

	// DocStats reports per-document size information for compaction policy
	// and operations. Unknown documents yield zero Stats.
	DocStats(ctx context.Context, documentID string) (Stats, error)

	Close() error
}
