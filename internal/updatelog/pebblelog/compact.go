package pebblelog

import (
	"context"
	"time"

	"github.com/macrat/markdown-board-sub001/internal/crdt"
	"github.com/macrat/markdown-board-sub001/internal/updatelog"
)

// Compact folds the document's records into a single record at sequence
// zero. The swap is one batch commit: a reader sees the old record set or
// the merged record, never both and never neither. Documents with fewer
// than two records are left untouched.
//
// The merge callback runs while the document's write lock is held, so no
// append can slip between the read and the swap.
func (s *Store) Compact(ctx context.Context, documentID string, merge crdt.MergeFunc) (updatelog.CompactResult, error) {
	l := s.lockDoc(documentID)
	l.Lock()
	defer l.Unlock()

	records, err := s.readLocked(documentID)
	if err != nil {
		return updatelog.CompactResult{}, err
	}
	if len(records) < 2 {
		return updatelog.CompactResult{}, nil
	}

	payloads := make([][]byte, len(records))
	for i, rec := range records {
		payloads[i] = rec.Payload
	}
	merged, err := merge(payloads)
	if err != nil {
		return updatelog.CompactResult{}, err
	}

	lo, hi := docBounds(documentID)
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.DeleteRange(lo, hi, nil); err != nil {
		return updatelog.CompactResult{}, &updatelog.StorageError{Op: "compact", DocumentID: documentID, Err: err}
	}
	// Within a batch the later Set wins over the range delete, so sequence
	// zero holds the merged record after commit.
	if err := b.Set(keyUpdate(documentID, 0), encodeRecord(time.Now().UnixMilli(), merged), nil); err != nil {
		return updatelog.CompactResult{}, &updatelog.StorageError{Op: "compact", DocumentID: documentID, Err: err}
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return updatelog.CompactResult{}, &updatelog.StorageError{Op: "compact", DocumentID: documentID, Err: err}
	}

	return updatelog.CompactResult{
		Compacted: true,
		Merged: updatelog.Record{
			DocumentID: documentID,
			Sequence:   0,
			Payload:    merged,
		},
		Removed: records,
	}, nil
}
