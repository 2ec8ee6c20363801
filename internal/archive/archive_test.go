package archive

import (
	"context"
	"errors"
	"testing"

	logpkg "github.com/macrat/markdown-board-sub001/pkg/log"

	"github.com/macrat/markdown-board-sub001/internal/updatelog"
)

type fakeUploader struct {
	keys []string
	data [][]byte
	fail error
}

func (f *fakeUploader) Upload(ctx context.Context, key string, data []byte) error {
	if f.fail != nil {
		return f.fail
	}
	f.keys = append(f.keys, key)
	f.data = append(f.data, data)
	return nil
}

func testLogger(t *testing.T) logpkg.Logger {
	t.Helper()
	logger, err := logpkg.ApplyConfig(&logpkg.Config{Level: "error", Output: "discard"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return logger
}

func removedRecords(doc string, payloads ...string) []updatelog.Record {
	recs := make([]updatelog.Record, len(payloads))
	for i, p := range payloads {
		recs[i] = updatelog.Record{DocumentID: doc, Sequence: uint64(i), Payload: []byte(p)}
	}
	return recs
}

func TestArchiveCompactionUploadsBundle(t *testing.T) {
	up := &fakeUploader{}
	a := NewArchiver(up, testLogger(t))

	removed := removedRecords("doc-1", "a", "bb", "ccc")
	merged := updatelog.Record{DocumentID: "doc-1", Sequence: 0, Payload: []byte("a|bb|ccc")}
	if err := a.ArchiveCompaction(context.Background(), "doc-1", removed, merged); err != nil {
		t.Fatalf("archive: %v", err)
	}

	if len(up.keys) != 1 || up.keys[0] != "doc-1/0-2.bundle" {
		t.Fatalf("uploaded keys = %v", up.keys)
	}
	got, err := decodeBundle("doc-1", up.data[0])
	if err != nil {
		t.Fatalf("decode bundle: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("decoded %d records, want 3", len(got))
	}
	for i, rec := range got {
		if rec.Sequence != removed[i].Sequence || string(rec.Payload) != string(removed[i].Payload) {
			t.Fatalf("record %d = %+v, want %+v", i, rec, removed[i])
		}
	}
}

func TestArchiveCompactionEscapesDocumentID(t *testing.T) {
	up := &fakeUploader{}
	a := NewArchiver(up, testLogger(t))

	removed := removedRecords("notes/2026 plans", "a", "b")
	if err := a.ArchiveCompaction(context.Background(), "notes/2026 plans", removed, updatelog.Record{}); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if up.keys[0] != "notes%2F2026%20plans/0-1.bundle" {
		t.Fatalf("key = %q", up.keys[0])
	}
}

func TestArchiveCompactionNothingRemoved(t *testing.T) {
	up := &fakeUploader{}
	a := NewArchiver(up, testLogger(t))

	if err := a.ArchiveCompaction(context.Background(), "doc-1", nil, updatelog.Record{}); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if len(up.keys) != 0 {
		t.Fatalf("uploaded %v for empty removal", up.keys)
	}
}

func TestArchiveCompactionSurfacesUploadFailure(t *testing.T) {
	boom := errors.New("bucket offline")
	a := NewArchiver(&fakeUploader{fail: boom}, testLogger(t))

	err := a.ArchiveCompaction(context.Background(), "doc-1", removedRecords("doc-1", "a", "b"), updatelog.Record{})
	if !errors.Is(err, boom) {
		t.Fatalf("archive = %v, want upload error", err)
	}
}

func TestDecodeBundleRejectsDamage(t *testing.T) {
	bundle := encodeBundle(removedRecords("doc-1", "aa", "bb"))

	cases := map[string][]byte{
		"empty":       {},
		"bad magic":   append([]byte{'X'}, bundle[1:]...),
		"bad version": append([]byte{bundleMagic, 9}, bundle[2:]...),
		"truncated":   bundle[:len(bundle)-3],
		"trailing":    append(append([]byte(nil), bundle...), 0x00),
	}
	for name, data := range cases {
		if _, err := decodeBundle("doc-1", data); err == nil {
			t.Fatalf("%s: decode accepted damaged bundle", name)
		}
	}
}
