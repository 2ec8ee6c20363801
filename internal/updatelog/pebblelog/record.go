package pebblelog

import (
	"encoding/binary"
	"hash/crc32"
)

// Stored value framing:
//
//	uvarint(headerLen) | header | payload | crc32c
//
// The header currently holds one big-endian field, the append wall time in
// unix milliseconds. The CRC covers everything before it, so a torn or
// bit-flipped value is detected on read instead of being handed to a merge.

var crcTable = crc32.MakeTable(crc32.Castagnoli)

const recordHeaderLen = 8

func encodeRecord(appendedAtMs int64, payload []byte) []byte {
	buf := make([]byte, 0, 1+recordHeaderLen+len(payload)+4)
	buf = appendUvarint(buf, recordHeaderLen)
	buf = appendBE8(buf, uint64(appendedAtMs))
	buf = append(buf, payload...)
	crc := crc32.Checksum(buf, crcTable)
	var c [4]byte
	binary.BigEndian.PutUint32(c[:], crc)
	return append(buf, c[:]...)
}

func decodeRecord(value []byte) (appendedAtMs int64, payload []byte, ok bool) {
	if len(value) < 4 {
		return 0, nil, false
	}
	body, tail := value[:len(value)-4], value[len(value)-4:]
	if crc32.Checksum(body, crcTable) != binary.BigEndian.Uint32(tail) {
		return 0, nil, false
	}
	hdrLen, n := binary.Uvarint(body)
	if n <= 0 || hdrLen != recordHeaderLen || uint64(len(body)-n) < hdrLen {
		return 0, nil, false
	}
	header := body[n : n+recordHeaderLen]
	return int64(binary.BigEndian.Uint64(header)), body[n+recordHeaderLen:], true
}
