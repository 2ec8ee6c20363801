package pebblelog

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/macrat/markdown-board-sub001/internal/storage/pebble"
	"github.com/macrat/markdown-board-sub001/internal/updatelog"
)

// Store is the embedded Pebble implementation of updatelog.Store.
//
// Writes to one document are serialized by a per-document mutex. The next
// sequence is derived inside that critical section from the stored keys, so
// it survives restarts and never drifts from disk. Cross-document operations
// take no shared lock and proceed independently.
type Store struct {
	db *pebblestore.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

var _ updatelog.Store = (*Store)(nil)

// New wraps an open Pebble database. The caller retains ownership of db;
// Close on the Store does not close it.
func New(db *pebblestore.DB) *Store {
	return &Store{
		db:    db,
		locks: make(map[string]*sync.Mutex),
	}
}

// lockDoc returns the document's write lock, creating it on first use. Locks
// are never removed; the map is bounded by the number of documents touched
// since startup.
func (s *Store) lockDoc(documentID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[documentID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[documentID] = l
	}
	return l
}

// Append durably writes payload as the document's next record and returns
// the assigned sequence.
func (s *Store) Append(ctx context.Context, documentID string, payload []byte) (uint64, error) {
	l := s.lockDoc(documentID)
	l.Lock()
	defer l.Unlock()

	next, err := s.nextSeqLocked(documentID)
	if err != nil {
		return 0, &updatelog.StorageError{Op: "append", DocumentID: documentID, Err: err}
	}

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(keyUpdate(documentID, next), encodeRecord(time.Now().UnixMilli(), payload), nil); err != nil {
		return 0, &updatelog.StorageError{Op: "append", DocumentID: documentID, Err: err}
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return 0, &updatelog.StorageError{Op: "append", DocumentID: documentID, Err: err}
	}
	return next, nil
}

// nextSeqLocked seeks the document's highest stored sequence. Empty
// documents start at zero. Caller must hold the document lock.
func (s *Store) nextSeqLocked(documentID string) (uint64, error) {
	lo, hi := docBounds(documentID)
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return 0, err
	}
	defer it.Close()
	if !it.Last() {
		if err := it.Error(); err != nil {
			return 0, err
		}
		return 0, nil
	}
	return seqFromKey(it.Key()) + 1, nil
}

// Clear atomically removes every record of the document. Clearing an
// unknown or empty document succeeds without touching storage.
func (s *Store) Clear(ctx context.Context, documentID string) error {
	return s.ClearWith(ctx, documentID, nil)
}

// ClearWith removes every record of the document and lets the caller stage
// extra mutations in the same batch, so a page delete and its log clear
// commit as one atomic unit. The staged mutations run under the document's
// write lock and cannot interleave with a concurrent Append or Compact.
func (s *Store) ClearWith(ctx context.Context, documentID string, stage func(b *pebble.Batch) error) error {
	l := s.lockDoc(documentID)
	l.Lock()
	defer l.Unlock()

	lo, hi := docBounds(documentID)
	hasRecords, err := s.hasAnyLocked(lo, hi)
	if err != nil {
		return &updatelog.StorageError{Op: "clear", DocumentID: documentID, Err: err}
	}
	if !hasRecords && stage == nil {
		return nil
	}

	b := s.db.NewBatch()
	defer b.Close()
	if hasRecords {
		if err := b.DeleteRange(lo, hi, nil); err != nil {
			return &updatelog.StorageError{Op: "clear", DocumentID: documentID, Err: err}
		}
	}
	if stage != nil {
		if err := stage(b); err != nil {
			return err
		}
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		return &updatelog.StorageError{Op: "clear", DocumentID: documentID, Err: err}
	}
	if hasRecords {
		// Best effort; the commit above already hides the records.
		_ = s.db.CompactRange(lo, hi)
	}
	return nil
}

func (s *Store) hasAnyLocked(lo, hi []byte) (bool, error) {
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return false, err
	}
	defer it.Close()
	ok := it.First()
	if err := it.Error(); err != nil {
		return false, err
	}
	return ok, nil
}

// Close releases the Store. The underlying database is owned by the caller
// of New and stays open.
func (s *Store) Close() error { return nil }
