package pebblelog

import (
	"context"
	"errors"

	"github.com/cockroachdb/pebble"

	"github.com/macrat/markdown-board-sub001/internal/updatelog"
)

var (
	errBadRecord = errors.New("pebblelog: record checksum or framing invalid")
	errBadKey    = errors.New("pebblelog: malformed record key")
)

// ReadAll returns the document's records ascending by sequence. The scan
// runs on a snapshot, so a concurrent compaction or clear cannot make it
// observe a half-applied swap. Unknown documents read as empty.
func (s *Store) ReadAll(ctx context.Context, documentID string) ([]updatelog.Record, error) {
	snap := s.db.NewSnapshot()
	defer snap.Close()

	lo, hi := docBounds(documentID)
	it, err := snap.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return nil, &updatelog.StorageError{Op: "read", DocumentID: documentID, Err: err}
	}
	defer it.Close()
	return collectRecords(it, documentID)
}

// readLocked reads the live keys directly. Caller must hold the document
// lock, which excludes writers for the duration.
func (s *Store) readLocked(documentID string) ([]updatelog.Record, error) {
	lo, hi := docBounds(documentID)
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return nil, &updatelog.StorageError{Op: "read", DocumentID: documentID, Err: err}
	}
	defer it.Close()
	return collectRecords(it, documentID)
}

// collectRecords drains the iterator into records. A value that fails the
// checksum or framing aborts the read with a CorruptUpdateError carrying the
// record's sequence; damaged history is reported, never skipped over.
func collectRecords(it *pebble.Iterator, documentID string) ([]updatelog.Record, error) {
	var records []updatelog.Record
	for ok := it.First(); ok; ok = it.Next() {
		seq := seqFromKey(it.Key())
		_, payload, decoded := decodeRecord(it.Value())
		if !decoded {
			return nil, &updatelog.CorruptUpdateError{
				DocumentID:  documentID,
				Sequence:    seq,
				HasSequence: true,
				Err:         errBadRecord,
			}
		}
		records = append(records, updatelog.Record{
			DocumentID: documentID,
			Sequence:   seq,
			Payload:    append([]byte(nil), payload...),
		})
	}
	if err := it.Error(); err != nil {
		return nil, &updatelog.StorageError{Op: "read", DocumentID: documentID, Err: err}
	}
	return records, nil
}

// Documents lists every document id holding at least one record. The scan
// visits one key per document by seeking past each document's range.
func (s *Store) Documents(ctx context.Context) ([]string, error) {
	lo, hi := allBounds()
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return nil, &updatelog.StorageError{Op: "documents", Err: err}
	}
	defer it.Close()

	var ids []string
	for ok := it.First(); ok; {
		id, valid := docIDFromKey(it.Key())
		if !valid {
			return nil, &updatelog.StorageError{Op: "documents", Err: errBadKey}
		}
		ids = append(ids, id)
		_, upper := docBounds(id)
		ok = it.SeekGE(upper)
	}
	if err := it.Error(); err != nil {
		return nil, &updatelog.StorageError{Op: "documents", Err: err}
	}
	return ids, nil
}

// DocStats reports record count, stored bytes, and the sequence span for one
// document. Bytes counts stored values including the record envelope.
func (s *Store) DocStats(ctx context.Context, documentID string) (updatelog.Stats, error) {
	lo, hi := docBounds(documentID)
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return updatelog.Stats{}, &updatelog.StorageError{Op: "stats", DocumentID: documentID, Err: err}
	}
	defer it.Close()

	var st updatelog.Stats
	for ok := it.First(); ok; ok = it.Next() {
		seq := seqFromKey(it.Key())
		if st.Records == 0 {
			st.FirstSeq = seq
		}
		st.LastSeq = seq
		st.Records++
		st.Bytes += uint64(len(it.Value()))
	}
	if err := it.Error(); err != nil {
		return updatelog.Stats{}, &updatelog.StorageError{Op: "stats", DocumentID: documentID, Err: err}
	}
	return st, nil
}
