package pebblelog

import "encoding/binary"

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
// - 'u' | uvarint(len(id)) | id | seq_be8
//
// Document ids are opaque caller strings, so the id is length-prefixed
// rather than delimited; no id can alias another id's range. The big-endian
// sequence suffix makes an in-order scan of one document's records a plain
// forward iteration.

const keyTagUpdate = byte('u')

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

func appendUvarint(dst []byte, v uint64) []byte {
	var b [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(b[:], v)
	return append(dst, b[:n]...)
}

// docPrefix covers every record key of one document.
func docPrefix(documentID string) []byte {
	k := make([]byte, 0, len(documentID)+12)
	k = append(k, keyTagUpdate)
	k = appendUvarint(k, uint64(len(documentID)))
	k = append(k, documentID...)
	return k
}

// keyUpdate builds the record key for (documentID, seq).
func keyUpdate(documentID string, seq uint64) []byte {
	return appendBE8(docPrefix(documentID), seq)
}

// docBounds returns the [lo, hi) iterator bounds covering one document.
func docBounds(documentID string) (lo, hi []byte) {
	lo = keyUpdate(documentID, 0)
	hi = append(keyUpdate(documentID, ^uint64(0)), 0x00)
	return lo, hi
}

// allBounds returns the [lo, hi) iterator bounds covering every update record.
func allBounds() (lo, hi []byte) {
	return []byte{keyTagUpdate}, []byte{keyTagUpdate + 1}
}

// seqFromKey extracts the trailing big-endian sequence.
func seqFromKey(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[len(key)-8:])
}

// docIDFromKey parses the document id out of a record key.
func docIDFromKey(key []byte) (string, bool) {
	if len(key) < 1+1+8 || key[0] != keyTagUpdate {
		return "", false
	}
	rest := key[1:]
	idLen, n := binary.Uvarint(rest)
	if n <= 0 {
		return "", false
	}
	rest = rest[n:]
	if uint64(len(rest)) != idLen+8 {
		return "", false
	}
	return string(rest[:idLen]), true
}
