package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	logpkg "github.com/macrat/markdown-board-sub001/pkg/log"

	"github.com/macrat/markdown-board-sub001/internal/crdt"
	"github.com/macrat/markdown-board-sub001/internal/updatelog"
)

// fakeStore serves a fixed document list and records which documents were
// compacted.
type fakeStore struct {
	mu         sync.Mutex
	docs       []string
	stats      map[string]updatelog.Stats
	compacted  []string
	docsErr    error
	compactErr map[string]error
}

func (f *fakeStore) Append(ctx context.Context, documentID string, payload []byte) (uint64, error) {
	return 0, nil
}

func (f *fakeStore) ReadAll(ctx context.Context, documentID string) ([]updatelog.Record, error) {
	return nil, nil
}

func (f *fakeStore) Clear(ctx context.Context, documentID string) error { return nil }

func (f *fakeStore) Compact(ctx context.Context, documentID string, merge crdt.MergeFunc) (updatelog.CompactResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.compactErr[documentID]; err != nil {
		return updatelog.CompactResult{}, err
	}
	f.compacted = append(f.compacted, documentID)
	return updatelog.CompactResult{
		Compacted: true,
		Merged:    updatelog.Record{DocumentID: documentID},
	}, nil
}

func (f *fakeStore) Documents(ctx context.Context) ([]string, error) {
	return f.docs, f.docsErr
}

func (f *fakeStore) DocStats(ctx context.Context, documentID string) (updatelog.Stats, error) {
	return f.stats[documentID], nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) compactedDocs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.compacted...)
}

func testLogger(t *testing.T) logpkg.Logger {
	t.Helper()
	logger, err := logpkg.ApplyConfig(&logpkg.Config{Level: "error", Output: "discard"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return logger
}

func newTestSweeper(t *testing.T, fake *fakeStore, policy Policy) *Sweeper {
	t.Helper()
	logger := testLogger(t)
	comp := updatelog.NewCompactor(fake, crdt.NewLWWMap(), logger)
	sw, err := New(fake, comp, policy, logger)
	if err != nil {
		t.Fatalf("new sweeper: %v", err)
	}
	return sw
}

func TestSweepCompactsOnlyEligibleDocuments(t *testing.T) {
	fake := &fakeStore{
		docs: []string{"big", "medium", "small"},
		stats: map[string]updatelog.Stats{
			"big":    {Records: 10, Bytes: 1000, LastSeq: 9},
			"medium": {Records: 4, Bytes: 80, LastSeq: 3},
			"small":  {Records: 1, Bytes: 5},
		},
	}
	sw := newTestSweeper(t, fake, Policy{MinRecords: 5})

	sum := sw.Sweep(context.Background())
	if sum.Scanned != 3 || sum.Compacted != 1 || sum.Failed != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if got := fake.compactedDocs(); len(got) != 1 || got[0] != "big" {
		t.Fatalf("compacted %v, want [big]", got)
	}
}

func TestSweepMinimumThresholdIsTwo(t *testing.T) {
	fake := &fakeStore{
		docs: []string{"single", "pair"},
		stats: map[string]updatelog.Stats{
			"single": {Records: 1},
			"pair":   {Records: 2, LastSeq: 1},
		},
	}
	sw := newTestSweeper(t, fake, Policy{MinRecords: 0})

	sw.Sweep(context.Background())
	if got := fake.compactedDocs(); len(got) != 1 || got[0] != "pair" {
		t.Fatalf("compacted %v, want [pair]", got)
	}
}

func TestSweepAppliesFilter(t *testing.T) {
	fake := &fakeStore{
		docs: []string{"notes-1", "scratch"},
		stats: map[string]updatelog.Stats{
			"notes-1": {Records: 5, Bytes: 40},
			"scratch": {Records: 5, Bytes: 39},
		},
	}
	sw := newTestSweeper(t, fake, Policy{
		MinRecords: 2,
		Filter:     `bytes >= 1024 || document.startsWith("notes")`,
	})

	sw.Sweep(context.Background())
	if got := fake.compactedDocs(); len(got) != 1 || got[0] != "notes-1" {
		t.Fatalf("compacted %v, want [notes-1]", got)
	}
}

func TestSweepContinuesPastFailures(t *testing.T) {
	fake := &fakeStore{
		docs: []string{"bad", "ok"},
		stats: map[string]updatelog.Stats{
			"bad": {Records: 5},
			"ok":  {Records: 5},
		},
		compactErr: map[string]error{
			"bad": &updatelog.StorageError{Op: "compact", DocumentID: "bad", Err: errors.New("disk gone")},
		},
	}
	sw := newTestSweeper(t, fake, Policy{MinRecords: 2})

	sum := sw.Sweep(context.Background())
	if sum.Scanned != 2 || sum.Compacted != 1 || sum.Failed != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if got := fake.compactedDocs(); len(got) != 1 || got[0] != "ok" {
		t.Fatalf("compacted %v, want [ok]", got)
	}
}

func TestSweepReturnsEarlyWhenCanceled(t *testing.T) {
	fake := &fakeStore{
		docs:  []string{"doc-1"},
		stats: map[string]updatelog.Stats{"doc-1": {Records: 5}},
	}
	sw := newTestSweeper(t, fake, Policy{MinRecords: 2})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum := sw.Sweep(ctx)
	if sum.Scanned != 0 || len(fake.compactedDocs()) != 0 {
		t.Fatalf("canceled sweep still worked: %+v, compacted %v", sum, fake.compactedDocs())
	}
}

func TestSetPolicyRejectsBadFilter(t *testing.T) {
	fake := &fakeStore{}
	sw := newTestSweeper(t, fake, Policy{MinRecords: 3})

	if err := sw.SetPolicy(Policy{Filter: "records >>>"}); err == nil {
		t.Fatal("bad filter accepted")
	}
	if got := sw.Policy(); got.MinRecords != 3 || got.Filter != "" {
		t.Fatalf("policy after failed swap = %+v", got)
	}
}

func TestRunSweepsOnInterval(t *testing.T) {
	fake := &fakeStore{
		docs:  []string{"busy"},
		stats: map[string]updatelog.Stats{"busy": {Records: 5}},
	}
	sw := newTestSweeper(t, fake, Policy{Interval: 2 * time.Millisecond, MinRecords: 2})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for len(fake.compactedDocs()) == 0 {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("no sweep happened before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
