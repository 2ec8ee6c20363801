package pglog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/macrat/markdown-board-sub001/internal/crdt"
	"github.com/macrat/markdown-board-sub001/internal/updatelog"
)

// advisoryLockSQL serializes writers of one document for the rest of the
// transaction. The lock keys off a stable 64-bit hash of the document id and
// releases automatically on commit or rollback, so no table or row lock is
// held while the next sequence is derived.
const advisoryLockSQL = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// Store is the Postgres implementation of updatelog.Store. Sequence
// allocation happens inside the insert statement under a per-document
// advisory lock, so any number of processes can append to the same database
// without sharing in-process state.
type Store struct {
	db *sql.DB
}

var _ updatelog.Store = (*Store)(nil)

// New wraps an open database handle. The Store takes ownership; Close
// closes it.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the update table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS document_updates (
			document_id TEXT NOT NULL,
			sequence    BIGINT NOT NULL,
			payload     BYTEA NOT NULL,
			appended_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (document_id, sequence)
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure document_updates: %w", err)
	}
	return nil
}

// Append durably writes payload as the document's next record. The sequence
// is derived and inserted in one statement inside the advisory-lock
// transaction; the primary key backstops the lock discipline.
func (s *Store) Append(ctx context.Context, documentID string, payload []byte) (uint64, error) {
	if payload == nil {
		payload = []byte{}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr("append", documentID, err)
	}
	if _, err := tx.ExecContext(ctx, advisoryLockSQL, documentID); err != nil {
		_ = tx.Rollback()
		return 0, storageErr("append", documentID, err)
	}

	var seq int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO document_updates (document_id, sequence, payload)
		SELECT $1, COALESCE(MAX(sequence) + 1, 0), $2
		FROM document_updates
		WHERE document_id = $1
		RETURNING sequence
	`, documentID, payload).Scan(&seq)
	if err != nil {
		_ = tx.Rollback()
		return 0, storageErr("append", documentID, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, storageErr("append", documentID, err)
	}
	return uint64(seq), nil
}

// ReadAll returns the document's records ascending by sequence. The single
// statement reads one MVCC snapshot, so a concurrent compaction is seen
// entirely or not at all.
func (s *Store) ReadAll(ctx context.Context, documentID string) ([]updatelog.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence, payload
		FROM document_updates
		WHERE document_id = $1
		ORDER BY sequence
	`, documentID)
	if err != nil {
		return nil, storageErr("read", documentID, err)
	}
	defer rows.Close()

	var records []updatelog.Record
	for rows.Next() {
		var (
			seq     int64
			payload []byte
		)
		if err := rows.Scan(&seq, &payload); err != nil {
			return nil, storageErr("read", documentID, err)
		}
		records = append(records, updatelog.Record{
			DocumentID: documentID,
			Sequence:   uint64(seq),
			Payload:    payload,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("read", documentID, err)
	}
	return records, nil
}

// Clear removes every record of the document. Runs under the advisory lock
// so it cannot interleave with an in-flight append.
func (s *Store) Clear(ctx context.Context, documentID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("clear", documentID, err)
	}
	if err := ClearTx(ctx, tx, documentID); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageErr("clear", documentID, err)
	}
	return nil
}

// ClearTx removes the document's records inside the caller's transaction, so
// a page-row delete and its log clear commit or roll back together.
func ClearTx(ctx context.Context, tx *sql.Tx, documentID string) error {
	if _, err := tx.ExecContext(ctx, advisoryLockSQL, documentID); err != nil {
		return storageErr("clear", documentID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM document_updates WHERE document_id = $1`, documentID); err != nil {
		return storageErr("clear", documentID, err)
	}
	return nil
}

// Compact folds the document's records into a single record at sequence
// zero. Read, merge, delete, and insert share one advisory-lock
// transaction; concurrent readers see the old rows or the merged row.
func (s *Store) Compact(ctx context.Context, documentID string, merge crdt.MergeFunc) (updatelog.CompactResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return updatelog.CompactResult{}, storageErr("compact", documentID, err)
	}
	if _, err := tx.ExecContext(ctx, advisoryLockSQL, documentID); err != nil {
		_ = tx.Rollback()
		return updatelog.CompactResult{}, storageErr("compact", documentID, err)
	}

	records, err := readAllTx(ctx, tx, documentID)
	if err != nil {
		_ = tx.Rollback()
		return updatelog.CompactResult{}, err
	}
	if len(records) < 2 {
		_ = tx.Rollback()
		return updatelog.CompactResult{}, nil
	}

	payloads := make([][]byte, len(records))
	for i, rec := range records {
		payloads[i] = rec.Payload
	}
	merged, err := merge(payloads)
	if err != nil {
		_ = tx.Rollback()
		return updatelog.CompactResult{}, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_updates WHERE document_id = $1`, documentID); err != nil {
		_ = tx.Rollback()
		return updatelog.CompactResult{}, storageErr("compact", documentID, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO document_updates (document_id, sequence, payload)
		VALUES ($1, 0, $2)
	`, documentID, merged); err != nil {
		_ = tx.Rollback()
		return updatelog.CompactResult{}, storageErr("compact", documentID, err)
	}
	if err := tx.Commit(); err != nil {
		return updatelog.CompactResult{}, storageErr("compact", documentID, err)
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

func readAllTx(ctx context.Context, tx *sql.Tx, documentID string) ([]updatelog.Record, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT sequence, payload
		FROM document_updates
		WHERE document_id = $1
		ORDER BY sequence
	`, documentID)
	if err != nil {
		return nil, storageErr("read", documentID, err)
	}
	defer rows.Close()

	var records []updatelog.Record
	for rows.Next() {
		var (
			seq     int64
			payload []byte
		)
		if err := rows.Scan(&seq, &payload); err != nil {
			return nil, storageErr("read", documentID, err)
		}
		records = append(records, updatelog.Record{
			DocumentID: documentID,
			Sequence:   uint64(seq),
			Payload:    payload,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("read", documentID, err)
	}
	return records, nil
}

// Documents lists every document id holding at least one record.
func (s *Store) Documents(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT document_id FROM document_updates ORDER BY document_id
	`)
	if err != nil {
		return nil, storageErr("documents", "", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storageErr("documents", "", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("documents", "", err)
	}
	return ids, nil
}

// DocStats reports record count, payload bytes, and the sequence span.
func (s *Store) DocStats(ctx context.Context, documentID string) (updatelog.Stats, error) {
	var (
		records int64
		bytes   int64
		first   int64
		last    int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(OCTET_LENGTH(payload)), 0),
		       COALESCE(MIN(sequence), 0),
		       COALESCE(MAX(sequence), 0)
		FROM document_updates
		WHERE document_id = $1
	`, documentID).Scan(&records, &bytes, &first, &last)
	if err != nil {
		return updatelog.Stats{}, storageErr("stats", documentID, err)
	}
	return updatelog.Stats{
		Records:  uint64(records),
		Bytes:    uint64(bytes),
		FirstSeq: uint64(first),
		LastSeq:  uint64(last),
	}, nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func storageErr(op, documentID string, err error) error {
	return &updatelog.StorageError{Op: op, DocumentID: documentID, Err: err}
}
