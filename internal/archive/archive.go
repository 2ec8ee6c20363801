package archive

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net/url"

	logpkg "github.com/macrat/markdown-board-sub001/pkg/log"

	"github.com/macrat/markdown-board-sub001/internal/updatelog"
)

// Uploader writes one object to the archive target. Implementations must be
// safe for concurrent use.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte) error
}

// Archiver bundles the records a compaction folded away and uploads them
// before they are forgotten. It implements updatelog.Archiver.
type Archiver struct {
	uploader Uploader
	log      logpkg.Logger
}

var _ updatelog.Archiver = (*Archiver)(nil)

func NewArchiver(uploader Uploader, logger logpkg.Logger) *Archiver {
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	return &Archiver{
		uploader: uploader,
		log:      logger.WithComponent("archive"),
	}
}

// ArchiveCompaction uploads the removed records as one bundle keyed by
// document and sequence span.
func (a *Archiver) ArchiveCompaction(ctx context.Context, documentID string, removed []updatelog.Record, merged updatelog.Record) error {
	if len(removed) == 0 {
		return nil
	}
	key := bundleKey(documentID, removed[0].Sequence, removed[len(removed)-1].Sequence)
	if err := a.uploader.Upload(ctx, key, encodeBundle(removed)); err != nil {
		return fmt.Errorf("upload bundle %s: %w", key, err)
	}
	a.log.Debug("archive.bundle",
		logpkg.Str("document", documentID),
		logpkg.Str("object", key),
		logpkg.Int("records", len(removed)))
	return nil
}

// bundleKey escapes the opaque document id so it is a single path segment.
func bundleKey(documentID string, first, last uint64) string {
	return fmt.Sprintf("%s/%d-%d.bundle", url.PathEscape(documentID), first, last)
}

// Bundle layout: magic 'B', version 1, uvarint record count, then per
// record seq_be8 | uvarint payload len | payload.
const (
	bundleMagic   = byte('B')
	bundleVersion = byte(1)
)

var errBadBundle = errors.New("archive: malformed bundle")

func encodeBundle(records []updatelog.Record) []byte {
	size := 2 + binary.MaxVarintLen64
	for _, rec := range records {
		size += 8 + binary.MaxVarintLen64 + len(rec.Payload)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, bundleMagic, bundleVersion)
	buf = binary.AppendUvarint(buf, uint64(len(records)))
	for _, rec := range records {
		buf = binary.BigEndian.AppendUint64(buf, rec.Sequence)
		buf = binary.AppendUvarint(buf, uint64(len(rec.Payload)))
		buf = append(buf, rec.Payload...)
	}
	return buf
}

func decodeBundle(documentID string, data []byte) ([]updatelog.Record, error) {
	if len(data) < 2 || data[0] != bundleMagic || data[1] != bundleVersion {
		return nil, errBadBundle
	}
	rest := data[2:]
	count, n := binary.Uvarint(rest)
	if n <= 0 {
		return nil, errBadBundle
	}
	rest = rest[n:]

	records := make([]updatelog.Record, 0, count)
	for i := uint64(0); i < count; i++ {
		if len(rest) < 8 {
			return nil, errBadBundle
		}
		seq := binary.BigEndian.Uint64(rest)
		rest = rest[8:]
		plen, n := binary.Uvarint(rest)
		if n <= 0 || uint64(len(rest)-n) < plen {
			return nil, errBadBundle
		}
		rest = rest[n:]
		records = append(records, updatelog.Record{
			DocumentID: documentID,
			Sequence:   seq,
			Payload:    append([]byte(nil), rest[:plen]...),
		})
		rest = rest[plen:]
	}
	if len(rest) != 0 {
		return nil, errBadBundle
	}
	return records, nil
}
