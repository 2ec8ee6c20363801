package updatelog

import (
	"errors"
	"fmt"
)

// ErrCorruptUpdate matches any CorruptUpdateError via errors.Is.
var ErrCorruptUpdate = errors.New("updatelog: corrupt update")

// StorageError wraps an I/O or transactional failure from a storage driver.
// It is always surfaced to the caller; the log never retries writes itself,
// since retry policy belongs to the caller's failure model.
type StorageError struct {
	Op         string
	DocumentID string
	Err        error
}

func (e *StorageError) Error() string {
	if e.DocumentID == "" {
		return fmt.Sprintf("updatelog: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("updatelog: %s document %q: %v", e.Op, e.DocumentID, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageError reports whether err carries a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// CorruptUpdateError reports a stored payload the merge primitive rejected.
// Reconstruction aborts on it; a bad fragment is never skipped, because a
// silently dropped edit cannot be told apart from an edit that never
// happened.
type CorruptUpdateError struct {
	DocumentID string
	// Sequence identifies the rejected record when HasSequence is set. A
	// set-level merge failure that no single record explains leaves it
	// unset.
	Sequence    uint64
	HasSequence bool
	Err         error
}

func (e *CorruptUpdateError) Error() string {
	if e.HasSequence {
		return fmt.Sprintf("updatelog: corrupt update %d in document %q: %v", e.Sequence, e.DocumentID, e.Err)
	}
	return fmt.Sprintf("updatelog: corrupt update in document %q: %v", e.DocumentID, e.Err)
}

func (e *CorruptUpdateError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrCorruptUpdate) match without callers knowing the
// concrete type.
func (e *CorruptUpdateError) Is(target error) bool { return target == ErrCorruptUpdate }
