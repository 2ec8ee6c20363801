package id

import (
	"strings"
	"testing"
)

func TestNewFormat(t *testing.T) {
	got := New("pg")
	if !strings.HasPrefix(got, "pg_") {
		t.Fatalf("expected pg_ prefix, got %q", got)
	}
	if len(got) != len("pg_")+32 {
		t.Fatalf("unexpected length %d for %q", len(got), got)
	}
	if !Valid("pg", got) {
		t.Fatalf("Valid rejected generated id %q", got)
	}
}

func TestNewWithoutPrefix(t *testing.T) {
	got := New("")
	if len(got) != 32 {
		t.Fatalf("unexpected length %d for %q", len(got), got)
	}
	if !Valid("", got) {
		t.Fatalf("Valid rejected generated id %q", got)
	}
}

func TestNewUnique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		s := New("pg")
		if _, dup := seen[s]; dup {
			t.Fatalf("duplicate id %q", s)
		}
		seen[s] = struct{}{}
	}
}

func TestValidRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"pg_",
		"pg_zzzz",
		"npg_" + strings.Repeat("ab", 16),
		"pg_" + strings.Repeat("AB", 16), // upper-case hex is not ours
		strings.Repeat("ab", 16),         // missing prefix
	}
	for _, s := range bad {
		if Valid("pg", s) {
			t.Errorf("Valid(%q) = true, want false", s)
		}
	}
}
