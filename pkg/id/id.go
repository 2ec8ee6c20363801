package id

import (
	"crypto/rand"
	"strings"
)

const rawLen = 16

// New returns a fresh random identifier with the given type prefix. An empty
// prefix yields the bare hex form.
func New(prefix string) string {
	b := make([]byte, rawLen)
	// rand.Read never fails on supported platforms; a short read would
	// surface as a panic below rather than a weak id.
	if n, err := rand.Read(b); err != nil || n != rawLen {
		panic("id: crypto/rand unavailable")
	}
	if prefix == "" {
		return fmtHex(b)
	}
	return prefix + "_" + fmtHex(b)
}

// Valid reports whether s looks like an identifier produced by New with the
// given prefix.
func Valid(prefix, s string) bool {
	if prefix != "" {
		if !strings.HasPrefix(s, prefix+"_") {
			return false
		}
		s = s[len(prefix)+1:]
	}
	if len(s) != rawLen*2 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// fmtHex is a small, allocation-lean hex encoder for fixed-size IDs.
func fmtHex(b []byte) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexdigits[v>>4]
		out[i*2+1] = hexdigits[v&0x0f]
	}
	return string(out)
}
