// Package id generates opaque identifiers for page entities.
//
// # Format
//
// An identifier is 16 bytes of crypto/rand entropy, hex encoded, with an
// optional type prefix joined by an underscore ("pg" -> "pg_4f1c...").
// Identifiers carry no ordering or timestamp information; ordering within a
// document belongs to the update log's sequence numbers, not to the id.
package id
