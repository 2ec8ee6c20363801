package updatelog

import (
	"context"

	"github.com/macrat/markdown-board-sub001/internal/crdt"
	logpkg "github.com/macrat/markdown-board-sub001/pkg/log"
)

// Loader reconstructs document state for readers. It performs no writes.
type Loader struct {
	store  Store
	merger crdt.Merger
	log    logpkg.Logger
}

// NewLoader builds a Loader over store using the given merge primitive.
func NewLoader(store Store, merger crdt.Merger, logger logpkg.Logger) *Loader {
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	return &Loader{
		store:  store,
		merger: merger,
		log:    logger.WithComponent("updatelog.loader"),
	}
}

// Load replays every stored fragment for the document, in ascending sequence
// order, into a fresh state. Given the same stored records it always yields
// an equivalent state. A fragment the primitive rejects aborts the load with
// a CorruptUpdateError naming the offending sequence.
func (l *Loader) Load(ctx context.Context, documentID string) (crdt.State, error) {
	records, err := l.store.ReadAll(ctx, documentID)
	if err != nil {
		return nil, err
	}

	state := l.merger.NewState()
	for _, rec := range records {
		if err := state.Apply(rec.Payload); err != nil {
			return nil, &CorruptUpdateError{
				DocumentID:  documentID,
				Sequence:    rec.Sequence,
				HasSequence: true,
				Err:         err,
			}
		}
	}

	l.log.Debug("updatelog.load",
		logpkg.Str("document", documentID),
		logpkg.Int("records", len(records)))
	return state, nil
}

// LoadMerged returns the document's stored history as a single update
// fragment plus the number of records it covers. Collaboration sessions use
// it to seed a fresh client without shipping every fragment. An empty
// document yields a nil fragment and zero records.
func (l *Loader) LoadMerged(ctx context.Context, documentID string) ([]byte, int, error) {
	records, err := l.store.ReadAll(ctx, documentID)
	if err != nil {
		return nil, 0, err
	}
	switch len(records) {
	case 0:
		return nil, 0, nil
	case 1:
		return append([]byte(nil), records[0].Payload...), 1, nil
	}

	payloads := make([][]byte, len(records))
	for i := range records {
		payloads[i] = records[i].Payload
	}
	merged, err := l.merger.MergeUpdates(payloads)
	if err != nil {
		return nil, 0, corruptErr(l.merger, documentID, records, err)
	}
	return merged, len(records), nil
}

// corruptErr pins a set-level merge failure to the first individually
// rejected record when one can be identified.
func corruptErr(merger crdt.Merger, documentID string, records []Record, cause error) error {
	for _, rec := range records {
		if err := merger.NewState().Apply(rec.Payload); err != nil {
			return &CorruptUpdateError{
				DocumentID:  documentID,
				Sequence:    rec.Sequence,
				HasSequence: true,
				Err:         err,
			}
		}
	}
	return &CorruptUpdateError{DocumentID: documentID, Err: cause}
}
