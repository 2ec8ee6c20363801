package sweeper

import (
	"context"
	"sync"
	"time"

	logpkg "github.com/macrat/markdown-board-sub001/pkg/log"

	"github.com/macrat/markdown-board-sub001/internal/updatelog"
)

// Policy decides which documents a sweep compacts.
type Policy struct {
	// Interval between sweeps. Zero or negative disables the loop; Sweep can
	// still be called directly.
	Interval time.Duration
	// MinRecords is the record-count threshold below which a document is
	// left alone. Values under two are raised to two, since compacting fewer
	// records does nothing.
	MinRecords uint64
	// Filter optionally narrows selection with a CEL expression over
	// document (string), records, bytes, first_seq, and last_seq (ints).
	// Empty admits every document past MinRecords.
	Filter string
}

// Sweeper periodically walks the document list and compacts what the policy
// selects. Policy swaps take effect on the next cycle.
type Sweeper struct {
	store     updatelog.Store
	compactor *updatelog.Compactor
	log       logpkg.Logger

	mu     sync.Mutex
	policy Policy
	filter celPredicate
}

// New compiles the policy filter and returns a ready Sweeper.
func New(store updatelog.Store, compactor *updatelog.Compactor, policy Policy, logger logpkg.Logger) (*Sweeper, error) {
	filter, err := newCELPredicate(policy.Filter)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	return &Sweeper{
		store:     store,
		compactor: compactor,
		log:       logger.WithComponent("sweeper"),
		policy:    policy,
		filter:    filter,
	}, nil
}

// SetPolicy replaces the policy. A filter that fails to compile leaves the
// previous policy in place.
func (s *Sweeper) SetPolicy(policy Policy) error {
	filter, err := newCELPredicate(policy.Filter)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.policy = policy
	s.filter = filter
	s.mu.Unlock()
	s.log.Info("sweeper.policy",
		logpkg.Dur("interval", policy.Interval),
		logpkg.Uint64("minRecords", policy.MinRecords))
	return nil
}

// Policy returns the current policy.
func (s *Sweeper) Policy() Policy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy
}

func (s *Sweeper) snapshot() (Policy, celPredicate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy, s.filter
}

// Run sweeps on the policy interval until ctx is canceled. While the policy
// disables sweeping it idles and keeps watching for a policy change.
func (s *Sweeper) Run(ctx context.Context) {
	for {
		policy, _ := s.snapshot()
		wait := policy.Interval
		if wait <= 0 {
			wait = time.Second
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
			if policy.Interval > 0 {
				s.Sweep(ctx)
			}
		}
	}
}

// Sweep runs one policy pass over every document now and reports what it
// did. Per-document failures are logged and counted, not propagated; a
// wedged document must not stall the rest of the board.
func (s *Sweeper) Sweep(ctx context.Context) updatelog.CompactSummary {
	var summary updatelog.CompactSummary

	ids, err := s.store.Documents(ctx)
	if err != nil {
		s.log.Error("sweeper.list.failed", logpkg.Err(err))
		return summary
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			return summary
		}
		summary.Scanned++

		stats, err := s.store.DocStats(ctx, id)
		if err != nil {
			summary.Failed++
			s.log.Error("sweeper.stats.failed", logpkg.Str("document", id), logpkg.Err(err))
			continue
		}
		if !s.shouldCompact(id, stats) {
			continue
		}
		if _, err := s.compactor.Compact(ctx, id); err != nil {
			summary.Failed++
			s.log.Error("sweeper.compact.failed", logpkg.Str("document", id), logpkg.Err(err))
			continue
		}
		summary.Compacted++
	}
	s.log.Debug("sweeper.sweep",
		logpkg.Int("scanned", summary.Scanned),
		logpkg.Int("compacted", summary.Compacted),
		logpkg.Int("failed", summary.Failed))
	return summary
}

func (s *Sweeper) shouldCompact(documentID string, stats updatelog.Stats) bool {
	policy, filter := s.snapshot()
	min := policy.MinRecords
	if min < 2 {
		min = 2
	}
	if stats.Records < min {
		return false
	}
	return filter.Eval(documentID, stats)
}
