package redislog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/macrat/markdown-board-sub001/internal/crdt"
	"github.com/macrat/markdown-board-sub001/internal/updatelog"
)

const (
	keyPrefix = "boardlog:doc:"
	keySuffix = ":updates"

	// compactRetries bounds the optimistic-transaction retry loop when
	// appends keep landing between the read and the swap.
	compactRetries = 5
)

// appendScript derives the next sequence from the highest stored score and
// inserts the record in one atomic script execution. The member carries the
// sequence as a fixed-width hex prefix so identical payloads stay distinct
// and the exact sequence survives the float score.
var appendScript = redis.NewScript(`
local last = redis.call('ZRANGE', KEYS[1], -1, -1, 'WITHSCORES')
local seq = 0
if #last == 2 then
	seq = tonumber(last[2]) + 1
end
redis.call('ZADD', KEYS[1], seq, string.format('%016x:', seq) .. ARGV[1])
return seq
`)

var errBadMember = errors.New("redislog: malformed record member")

// Store is the Redis implementation of updatelog.Store. Each document is a
// sorted set scored by sequence; the single-threaded server makes every
// command and script execution atomic.
type Store struct {
	client *redis.Client
}

var _ updatelog.Store = (*Store)(nil)

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return New(client), nil
}

// New wraps an existing client. The Store takes ownership; Close closes it.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

func docKey(documentID string) string {
	return keyPrefix + documentID + keySuffix
}

func docFromKey(key string) (string, bool) {
	if len(key) < len(keyPrefix)+len(keySuffix) ||
		!strings.HasPrefix(key, keyPrefix) || !strings.HasSuffix(key, keySuffix) {
		return "", false
	}
	return key[len(keyPrefix) : len(key)-len(keySuffix)], true
}

func formatMember(seq uint64, payload []byte) string {
	return fmt.Sprintf("%016x:", seq) + string(payload)
}

func splitMember(member string) (uint64, []byte, error) {
	if len(member) < 17 || member[16] != ':' {
		return 0, nil, errBadMember
	}
	seq, err := strconv.ParseUint(member[:16], 16, 64)
	if err != nil {
		return 0, nil, errBadMember
	}
	return seq, []byte(member[17:]), nil
}

// Append durably writes payload as the document's next record and returns
// the assigned sequence.
func (s *Store) Append(ctx context.Context, documentID string, payload []byte) (uint64, error) {
	res, err := appendScript.Run(ctx, s.client, []string{docKey(documentID)}, payload).Result()
	if err != nil {
		return 0, storageErr("append", documentID, err)
	}
	seq, ok := res.(int64)
	if !ok || seq < 0 {
		return 0, storageErr("append", documentID, fmt.Errorf("unexpected script reply %v", res))
	}
	return uint64(seq), nil
}

// ReadAll returns the document's records ascending by sequence. One ZRANGE
// is atomic on the server, so the result is a consistent snapshot.
func (s *Store) ReadAll(ctx context.Context, documentID string) ([]updatelog.Record, error) {
	members, err := s.client.ZRange(ctx, docKey(documentID), 0, -1).Result()
	if err != nil {
		return nil, storageErr("read", documentID, err)
	}
	return recordsFromMembers(documentID, members)
}

func recordsFromMembers(documentID string, members []string) ([]updatelog.Record, error) {
	var records []updatelog.Record
	for _, m := range members {
		seq, payload, err := splitMember(m)
		if err != nil {
			return nil, &updatelog.CorruptUpdateError{DocumentID: documentID, Err: err}
		}
		records = append(records, updatelog.Record{
			DocumentID: documentID,
			Sequence:   seq,
			Payload:    payload,
		})
	}
	return records, nil
}

// Clear removes every record of the document. A single DEL is atomic and a
// missing key is a no-op.
func (s *Store) Clear(ctx context.Context, documentID string) error {
	if err := s.client.Del(ctx, docKey(documentID)).Err(); err != nil {
		return storageErr("clear", documentID, err)
	}
	return nil
}

// ClearPipe stages the document's removal on the caller's transactional
// pipeline, so an external page delete and the log clear land in one
// MULTI/EXEC block.
func (s *Store) ClearPipe(ctx context.Context, pipe redis.Pipeliner, documentID string) {
	pipe.Del(ctx, docKey(documentID))
}

// Compact folds the document's records into a single record at sequence
// zero. The key is WATCHed while reading and merging; an append that lands
// before EXEC aborts the transaction and the whole cycle retries against the
// fresh record set, so no concurrent update can be folded away or lost.
func (s *Store) Compact(ctx context.Context, documentID string, merge crdt.MergeFunc) (updatelog.CompactResult, error) {
	key := docKey(documentID)

	var (
		result updatelog.CompactResult
		err    error
	)
	for attempt := 0; attempt < compactRetries; attempt++ {
		result = updatelog.CompactResult{}
		err = s.client.Watch(ctx, func(tx *redis.Tx) error {
			members, err := tx.ZRange(ctx, key, 0, -1).Result()
			if err != nil {
				return storageErr("compact", documentID, err)
			}
			if len(members) < 2 {
				return nil
			}
			records, err := recordsFromMembers(documentID, members)
			if err != nil {
				return err
			}

			payloads := make([][]byte, len(records))
			for i, rec := range records {
				payloads[i] = rec.Payload
			}
			merged, err := merge(payloads)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				pipe.ZAdd(ctx, key, redis.Z{Score: 0, Member: formatMember(0, merged)})
				return nil
			})
			if err != nil {
				return err
			}

			result = updatelog.CompactResult{
				Compacted: true,
				Merged: updatelog.Record{
					DocumentID: documentID,
					Sequence:   0,
					Payload:    merged,
				},
				Removed: records,
			}
			return nil
		}, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return updatelog.CompactResult{}, err
	}
	return updatelog.CompactResult{}, storageErr("compact", documentID,
		fmt.Errorf("gave up after %d conflicting appends: %w", compactRetries, err))
}

// Documents lists every document id holding at least one record.
func (s *Store) Documents(ctx context.Context) ([]string, error) {
	var ids []string
	iter := s.client.Scan(ctx, 0, keyPrefix+"*"+keySuffix, 0).Iterator()
	for iter.Next(ctx) {
		if id, ok := docFromKey(iter.Val()); ok {
			ids = append(ids, id)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, storageErr("documents", "", err)
	}
	return ids, nil
}

// DocStats reports record count, payload bytes, and the sequence span.
func (s *Store) DocStats(ctx context.Context, documentID string) (updatelog.Stats, error) {
	members, err := s.client.ZRange(ctx, docKey(documentID), 0, -1).Result()
	if err != nil {
		return updatelog.Stats{}, storageErr("stats", documentID, err)
	}
	var st updatelog.Stats
	for i, m := range members {
		seq, payload, err := splitMember(m)
		if err != nil {
			return updatelog.Stats{}, &updatelog.CorruptUpdateError{DocumentID: documentID, Err: err}
		}
		if i == 0 {
			st.FirstSeq = seq
		}
		st.LastSeq = seq
		st.Records++
		st.Bytes += uint64(len(payload))
	}
	return st, nil
}

// Ping reports whether Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func storageErr(op, documentID string, err error) error {
	return &updatelog.StorageError{Op: op, DocumentID: documentID, Err: err}
}
