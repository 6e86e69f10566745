package query

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint derives the cache key for a SQL text: the normalized query
// is hashed so that formatting differences (case of keywords aside, SQL
// string literals are case-sensitive, so only whitespace and trailing
// semicolons are folded) map to the same key.
//
// Normalization: trim, collapse internal whitespace runs to single spaces,
// drop trailing semicolons. The hash is SHA-256, hex-encoded.
func Fingerprint(sql string) string {
	normalized := Normalize(sql)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Normalize returns the canonical form of a query used for fingerprinting.
func Normalize(sql string) string {
	fields := strings.Fields(sql)
	normalized := strings.Join(fields, " ")
	normalized = strings.TrimRight(normalized, "; ")
	return normalized
}
