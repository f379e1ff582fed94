package mapper

import "strings"

// signatureVersion namespaces cached mappings so a future change to the
// signature scheme invalidates old entries instead of colliding with them.
const signatureVersion = "v1"

// The joining delimiter is a unit separator, which cannot appear in a
// trimmed spreadsheet header.
const signatureDelimiter = "\x1f"

// Signature derives the cache key for an ordered header list. Two
// spreadsheets with the same headers in the same order share a signature,
// and therefore a confirmed mapping.
func Signature(headers []string) string {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return signatureVersion + ":" + strings.Join(normalized, signatureDelimiter)
}
