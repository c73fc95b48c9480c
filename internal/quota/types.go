// Package quota tracks words consumed against a rolling monthly limit,
// keyed by a hashed credential.
package quota

import (
	"context"
	"time"
)

// DefaultMonthlyLimit is the word ceiling applied to credentials seen
// for the first time.
const DefaultMonthlyLimit = 10000

// Record is one ledger entry. It never contains the raw credential.
type Record struct {
	CredentialHash string    `json:"credential_hash"`
	WordsUsed      int       `json:"words_used"`
	MonthlyLimit   int       `json:"monthly_limit"`
	CurrentPeriod  string    `json:"current_period"`
	LastUpdated    time.Time `json:"last_updated"`
}

// ValidationResult is the advisory gate computed before a generation.
// The caller must refuse to proceed when CanProceed is false.
type ValidationResult struct {
	CanProceed     bool   `json:"canProceed"`
	WordsUsed      int    `json:"wordsUsed"`
	MonthlyLimit   int    `json:"monthlyLimit"`
	WordsRemaining int    `json:"wordsRemaining"`
	RequestedWords int    `json:"requestedWords"`
	Message        string `json:"message"`
}

// Ledger stores per-credential word usage. Implementations must make
// Commit atomic with respect to concurrent commits for the same hash.
type Ledger interface {
	// Get returns the stored record, reporting absence without error.
	Get(ctx context.Context, credentialHash string) (Record, bool, error)

	// Upsert lazily creates a record, resetting WordsUsed to zero when
	// the stored period no longer matches the current one.
	Upsert(ctx context.Context, credentialHash string) (Record, error)

	// Validate upserts first, then gates requestedWords against the
	// remaining budget.
	Validate(ctx context.Context, credentialHash string, requestedWords int) (ValidationResult, error)

	// Commit adds words to the stored usage. Calling it for an unknown
	// hash is a no-op.
	Commit(ctx context.Context, credentialHash string, wordsUsed int) error

	Close() error
}

func validationFor(rec Record, requested int) ValidationResult {
	remaining := rec.MonthlyLimit - rec.WordsUsed
	if remaining < 0 {
		remaining = 0
	}
	res := ValidationResult{
		CanProceed:     requested <= remaining,
		WordsUsed:      rec.WordsUsed,
		MonthlyLimit:   rec.MonthlyLimit,
		WordsRemaining: remaining,
		RequestedWords: requested,
		Message:        "within monthly word limit",
	}
	if !res.CanProceed {
		res.Message = "monthly word limit exceeded"
	}
	return res
}
