package knol

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Normalize cleans a question so cosmetic differences do not change its identity.
// It lowercases, normalizes line endings and collapses runs of whitespace.
func Normalize(question string) string {
	q := strings.ToLower(question)
	q = strings.ReplaceAll(q, "\r\n", "\n")
	return strings.Join(strings.Fields(q), " ")
}

// ID returns the stable card identifier for a question: the SHA-256 of its
// normalized text as a hex string. Two cards with the same question share an ID.
func ID(question string) string {
	sum := sha256.Sum256([]byte(Normalize(question)))
	return fmt.Sprintf("%x", sum)
}

// ShortID is the first 12 characters of an ID, enough to address a card by hand.
func ShortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12]
}
