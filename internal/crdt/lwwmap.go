package crdt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

// Update encoding: magic | version | entryCount uvarint | entries.
// Entry: keyLen uvarint | key | clock uvarint | actorLen uvarint | actor |
// flags byte | (valLen uvarint | value, unless tombstone).

const (
	updateMagic   = 0x6D
	updateVersion = 0x01

	flagTombstone = 0x01
)

// ErrBadUpdate is wrapped by every decode failure.
var ErrBadUpdate = errors.New("crdt: malformed update")

type entry struct {
	key       string
	clock     uint64
	actor     string
	tombstone bool
	value     []byte
}

// wins reports whether e supersedes cur. Ties on clock break by actor so the
// outcome is identical regardless of apply order.
func (e entry) wins(cur entry) bool {
	if e.clock != cur.clock {
		return e.clock > cur.clock
	}
	return e.actor > cur.actor
}

// LWWMap is the reference Merger: a last-writer-wins element map.
type LWWMap struct{}

// NewLWWMap returns the reference merge primitive.
func NewLWWMap() LWWMap { return LWWMap{} }

// NewState implements Merger.
func (LWWMap) NewState() State {
	return &MapState{entries: map[string]entry{}}
}

// MergeUpdates implements Merger. The merged update carries, per key, only
// the winning entry, tombstones included: a tombstone must survive the merge
// so it can still delete older live values held elsewhere.
func (LWWMap) MergeUpdates(updates [][]byte) ([]byte, error) {
	winners := map[string]entry{}
	for i, u := range updates {
		entries, err := decodeUpdate(u)
		if err != nil {
			return nil, fmt.Errorf("merge update %d: %w", i, err)
		}
		for _, e := range entries {
			if cur, ok := winners[e.key]; !ok || e.wins(cur) {
				winners[e.key] = e
			}
		}
	}

	keys := make([]string, 0, len(winners))
	for k := range winners {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]entry, 0, len(winners))
	for _, k := range keys {
		out = append(out, winners[k])
	}
	return encodeUpdate(out), nil
}

// MapState is the live state produced by LWWMap.
type MapState struct {
	entries map[string]entry
}

// Apply implements State.
func (s *MapState) Apply(update []byte) error {
	entries, err := decodeUpdate(update)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if cur, ok := s.entries[e.key]; !ok || e.wins(cur) {
			s.entries[e.key] = e
		}
	}
	return nil
}

// Get returns the live value for key. Deleted and absent keys read the same.
func (s *MapState) Get(key string) ([]byte, bool) {
	e, ok := s.entries[key]
	if !ok || e.tombstone {
		return nil, false
	}
	return e.value, true
}

// Len counts live keys.
func (s *MapState) Len() int {
	n := 0
	for _, e := range s.entries {
		if !e.tombstone {
			n++
		}
	}
	return n
}

// Keys lists live keys in sorted order.
func (s *MapState) Keys() []string {
	keys := make([]string, 0, len(s.entries))
	for k, e := range s.entries {
		if !e.tombstone {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Equal reports whether two states hold the same live keys and values.
func (s *MapState) Equal(other *MapState) bool {
	if s.Len() != other.Len() {
		return false
	}
	for k, e := range s.entries {
		if e.tombstone {
			continue
		}
		ov, ok := other.Get(k)
		if !ok || string(ov) != string(e.value) {
			return false
		}
	}
	return true
}

// Editor produces update fragments the way a collaborating client would: one
// actor, a logical clock that advances per edit.
type Editor struct {
	actor string
	clock uint64
}

// NewEditor returns an Editor for the given actor name.
func NewEditor(actor string) *Editor {
	return &Editor{actor: actor}
}

// Set returns an update fragment assigning value to key.
func (ed *Editor) Set(key string, value []byte) []byte {
	ed.clock++
	return encodeUpdate([]entry{{
		key:   key,
		clock: ed.clock,
		actor: ed.actor,
		value: append([]byte(nil), value...),
	}})
}

// Delete returns an update fragment removing key.
func (ed *Editor) Delete(key string) []byte {
	ed.clock++
	return encodeUpdate([]entry{{
		key:       key,
		clock:     ed.clock,
		actor:     ed.actor,
		tombstone: true,
	}})
}

// Observe advances the editor's clock past a clock seen in another actor's
// update, so this actor's next edit wins over it.
func (ed *Editor) Observe(clock uint64) {
	if clock > ed.clock {
		ed.clock = clock
	}
}

func encodeUpdate(entries []entry) []byte {
	var tmp [binary.MaxVarintLen64]byte
	out := make([]byte, 0, 16)
	out = append(out, updateMagic, updateVersion)
	n := binary.PutUvarint(tmp[:], uint64(len(entries)))
	out = append(out, tmp[:n]...)
	for _, e := range entries {
		n = binary.PutUvarint(tmp[:], uint64(len(e.key)))
		out = append(out, tmp[:n]...)
		out = append(out, e.key...)
		n = binary.PutUvarint(tmp[:], e.clock)
		out = append(out, tmp[:n]...)
		n = binary.PutUvarint(tmp[:], uint64(len(e.actor)))
		out = append(out, tmp[:n]...)
		out = append(out, e.actor...)
		if e.tombstone {
			out = append(out, flagTombstone)
			continue
		}
		out = append(out, 0x00)
		n = binary.PutUvarint(tmp[:], uint64(len(e.value)))
		out = append(out, tmp[:n]...)
		out = append(out, e.value...)
	}
	return out
}

func decodeUpdate(b []byte) ([]entry, error) {
	if len(b) < 2 {
		return nil, fmt.Errorf("%w: truncated header", ErrBadUpdate)
	}
	if b[0] != updateMagic {
		return nil, fmt.Errorf("%w: bad magic 0x%02x", ErrBadUpdate, b[0])
	}
	if b[1] != updateVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadUpdate, b[1])
	}
	rest := b[2:]

	count, n := binary.Uvarint(rest)
	if n <= 0 {
		return nil, fmt.Errorf("%w: entry count", ErrBadUpdate)
	}
	rest = rest[n:]

	// Entries are at least 4 bytes each; reject counts the buffer cannot hold.
	if count > uint64(len(rest)) {
		return nil, fmt.Errorf("%w: entry count %d exceeds buffer", ErrBadUpdate, count)
	}

	entries := make([]entry, 0, count)
	for i := uint64(0); i < count; i++ {
		var e entry
		var err error
		if e.key, rest, err = readString(rest); err != nil {
			return nil, fmt.Errorf("%w: entry %d key", ErrBadUpdate, i)
		}
		var clock uint64
		clock, n = binary.Uvarint(rest)
		if n <= 0 {
			return nil, fmt.Errorf("%w: entry %d clock", ErrBadUpdate, i)
		}
		e.clock = clock
		rest = rest[n:]
		if e.actor, rest, err = readString(rest); err != nil {
			return nil, fmt.Errorf("%w: entry %d actor", ErrBadUpdate, i)
		}
		if len(rest) < 1 {
			return nil, fmt.Errorf("%w: entry %d flags", ErrBadUpdate, i)
		}
		flags := rest[0]
		rest = rest[1:]
		if flags&flagTombstone != 0 {
			e.tombstone = true
		} else {
			var val string
			if val, rest, err = readString(rest); err != nil {
				return nil, fmt.Errorf("%w: entry %d value", ErrBadUpdate, i)
			}
			e.value = []byte(val)
		}
		entries = append(entries, e)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrBadUpdate, len(rest))
	}
	return entries, nil
}

func readString(b []byte) (string, []byte, error) {
	l, n := binary.Uvarint(b)
	if n <= 0 {
		return "", nil, ErrBadUpdate
	}
	b = b[n:]
	if l > uint64(len(b)) {
		return "", nil, ErrBadUpdate
	}
	return string(b[:l]), b[l:], nil
}
