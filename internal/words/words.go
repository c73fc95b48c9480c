// Package words provides the usage-accounting primitives for the
// speech composer: word counting, credential hashing and billing
// period labels.
package words

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Count returns the number of whitespace-delimited tokens in text.
// Empty or whitespace-only text counts as zero words.
func Count(text string) int {
	return len(strings.Fields(text))
}

// CountTotal sums Count over every text in order.
func CountTotal(texts []string) int {
	total := 0
	for _, t := range texts {
		total += Count(t)
	}
	return total
}

// HashCredential derives the opaque ledger key for a raw credential.
// The raw credential is never stored; equal inputs always map to the
// same key.
func HashCredential(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// CurrentPeriod returns the active billing period label in UTC,
// formatted as YYYY-MM. The label changes exactly once per calendar
// month boundary.
func CurrentPeriod() string {
	return PeriodAt(time.Now())
}

// PeriodAt returns the billing period label for an arbitrary instant.
func PeriodAt(t time.Time) string {
	return t.UTC().Format("2006-01")
}
