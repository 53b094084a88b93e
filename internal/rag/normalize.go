package rag

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeQuery folds a query to the form used for cache lookups:
// NFKC, lowercase, trimmed, internal whitespace collapsed.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(norm.NFKC.String(q))), " ")
}

// cacheKey returns the SHA-256 hex of the normalized query.
func cacheKey(q string) string {
	h := sha256.Sum256([]byte(NormalizeQuery(q)))
	return fmt.Sprintf("%x", h)
}
