package crdt

// State is a live document state that update fragments fold into. A State is
// owned by the caller that built it and is not safe for concurrent use.
type State interface {
	// Apply folds one update fragment into the state. A fragment the
	// implementation cannot decode returns an error; the state is left
	// unchanged in that case.
	Apply(update []byte) error
}

// Merger is the capability interface supplied by the CRDT library.
type Merger interface {
	// NewState returns a fresh empty state.
	NewState() State

	// MergeUpdates collapses a set of update fragments into a single
	// fragment. The result is an equivalent update, not a state: applying
	// it to any state yields the same outcome as applying every input in
	// order. Implementations must not require the inputs to be distinct.
	MergeUpdates(updates [][]byte) ([]byte, error)
}

// MergeFunc is the fragment-merge capability in function form, as consumed by
// store compaction.
type MergeFunc func(updates [][]byte) ([]byte, error)
