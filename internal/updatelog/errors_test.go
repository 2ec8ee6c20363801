package updatelog

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestStorageErrorWrapping(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("append edit: %w", &StorageError{Op: "append", DocumentID: "pg_1", Err: cause})

	if !IsStorageError(err) {
		t.Fatal("IsStorageError should match through wrapping")
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause should be reachable via Unwrap")
	}

	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatal("errors.As should extract *StorageError")
	}
	if !strings.Contains(se.Error(), `document "pg_1"`) {
		t.Errorf("message should name the document: %q", se.Error())
	}

	bare := &StorageError{Op: "list documents", Err: cause}
	if strings.Contains(bare.Error(), "document") {
		t.Errorf("document-less message should omit the id: %q", bare.Error())
	}
}

func TestCorruptUpdateErrorMatching(t *testing.T) {
	cause := errors.New("bad magic")
	err := fmt.Errorf("load: %w", &CorruptUpdateError{
		DocumentID:  "pg_2",
		Sequence:    5,
		HasSequence: true,
		Err:         cause,
	})

	if !errors.Is(err, ErrCorruptUpdate) {
		t.Fatal("errors.Is(ErrCorruptUpdate) should match")
	}
	if IsStorageError(err) {
		t.Fatal("corrupt update is not a storage error")
	}

	var cue *CorruptUpdateError
	if !errors.As(err, &cue) {
		t.Fatal("errors.As should extract *CorruptUpdateError")
	}
	if !strings.Contains(cue.Error(), "corrupt update 5") {
		t.Errorf("message should carry the sequence: %q", cue.Error())
	}

	unpinned := &CorruptUpdateError{DocumentID: "pg_2", Err: cause}
	if strings.Contains(unpinned.Error(), "corrupt update 0") {
		t.Errorf("sequence-less message should not invent sequence 0: %q", unpinned.Error())
	}
}
