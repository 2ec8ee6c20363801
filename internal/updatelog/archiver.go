package updatelog

import "context"

// Archiver is an optional hook invoked after a compaction commits, carrying
// the records the compaction folded away. Implementations may upload the
// history to object storage or emit metrics. Archiving is best-effort: a
// failing archiver is logged by the Compactor and never unwinds a committed
// compaction.
type Archiver interface {
	ArchiveCompaction(ctx context.Context, documentID string, removed []Record, merged Record) error
}

type noopArchiver struct{}

func (noopArchiver) ArchiveCompaction(context.Context, string, []Record, Record) error { return nil }

// NoopArchiver is the default when no archive target is configured.
func NoopArchiver() Archiver { return noopArchiver{} }
