package updatelog

import (
	"context"

	"github.com/macrat/markdown-board-sub001/internal/crdt"
	logpkg "github.com/macrat/markdown-board-sub001/pkg/log"
)

// Compactor bounds per-document history growth by collapsing a document's
// fragments into one equivalent record at sequence zero. The mechanics live
// in Store.Compact; this layer binds the merge primitive, logs, and feeds
// the archive hook.
type Compactor struct {
	store    Store
	merger   crdt.Merger
	archiver Archiver
	log      logpkg.Logger
}

// CompactorOption configures a Compactor.
type CompactorOption func(*Compactor)

// WithArchiver routes compacted-away history to a.
func WithArchiver(a Archiver) CompactorOption {
	return func(c *Compactor) {
		if a != nil {
			c.archiver = a
		}
	}
}

// NewCompactor builds a Compactor over store using the given merge primitive.
func NewCompactor(store Store, merger crdt.Merger, logger logpkg.Logger, opts ...CompactorOption) *Compactor {
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	c := &Compactor{
		store:    store,
		merger:   merger,
		archiver: NoopArchiver(),
		log:      logger.WithComponent("updatelog.compactor"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compact collapses the document's history. Documents with fewer than two
// records are left untouched. Reconstructing from the compacted record yields
// a state equivalent to reconstructing from the records it replaced.
func (c *Compactor) Compact(ctx context.Context, documentID string) (CompactResult, error) {
	res, err := c.store.Compact(ctx, documentID, c.merger.MergeUpdates)
	if err != nil {
		if IsStorageError(err) {
			return res, err
		}
		// The merge primitive rejected the fragment set. Identify the
		// record when possible so the operator knows what to inspect.
		records, rerr := c.store.ReadAll(ctx, documentID)
		if rerr != nil {
			return res, err
		}
		return res, corruptErr(c.merger, documentID, records, err)
	}

	if !res.Compacted {
		c.log.Debug("updatelog.compact.skip",
			logpkg.Str("document", documentID))
		return res, nil
	}

	c.log.Info("updatelog.compact",
		logpkg.Str("document", documentID),
		logpkg.Int("removed", len(res.Removed)),
		logpkg.Int("merged_bytes", len(res.Merged.Payload)))

	if err := c.archiver.ArchiveCompaction(ctx, documentID, res.Removed, res.Merged); err != nil {
		// History is already merged; losing the archive copy must not
		// unwind the committed compaction.
		c.log.Warn("updatelog.archive.failed",
			logpkg.Str("document", documentID),
			logpkg.Err(err))
	}
	return res, nil
}

// CompactSummary reports one CompactAll pass.
type CompactSummary struct {
	Scanned   int
	Compacted int
	Failed    int
}

// CompactAll compacts every known document. Documents are independent, so a
// failure on one is logged and counted while the pass continues.
func (c *Compactor) CompactAll(ctx context.Context) (CompactSummary, error) {
	docs, err := c.store.Documents(ctx)
	if err != nil {
		return CompactSummary{}, err
	}

	sum := CompactSummary{Scanned: len(docs)}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		res, err := c.Compact(ctx, doc)
		if err != nil {
			sum.Failed++
			c.log.Error("updatelog.compact.failed",
				logpkg.Str("document", doc),
				logpkg.Err(err))
			continue
		}
		if res.Compacted {
			sum.Compacted++
		}
	}
	return sum, nil
}
