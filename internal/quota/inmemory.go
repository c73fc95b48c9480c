package quota

import (
	"context"
	"sync"
	"time"

	"github.com/Asmit-coder-Arduino/TTS/internal/words"
)

// InMemoryLedger is a simple in-process ledger for local/dev use.
type InMemoryLedger struct {
	mu           sync.Mutex
	records      map[string]*Record
	defaultLimit int
	period       func() string
}

func NewInMemoryLedger(defaultLimit int) *InMemoryLedger {
	if defaultLimit <= 0 {
		defaultLimit = DefaultMonthlyLimit
	}
	return &InMemoryLedger{
		records:      make(map[string]*Record),
		defaultLimit: defaultLimit,
		period:       words.CurrentPeriod,
	}
}

// SetPeriodFunc overrides the billing-period source. Tests use it to
// simulate month rollover.
func (l *InMemoryLedger) SetPeriodFunc(fn func() string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.period = fn
}

func (l *InMemoryLedger) Get(_ context.Context, credentialHash string) (Record, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[credentialHash]
	if !ok {
		return Record{}, false, nil
	}
	return *rec, true, nil
}

func (l *InMemoryLedger) Upsert(_ context.Context, credentialHash string) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.upsertLocked(credentialHash), nil
}

func (l *InMemoryLedger) Validate(_ context.Context, credentialHash string, requestedWords int) (ValidationResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := l.upsertLocked(credentialHash)
	return validationFor(*rec, requestedWords), nil
}

func (l *InMemoryLedger) Commit(_ context.Context, credentialHash string, wordsUsed int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[credentialHash]
	if !ok {
		// Defensive: Validate always runs first in the pipeline.
		return nil
	}
	rec.WordsUsed += wordsUsed
	rec.LastUpdated = time.Now().UTC()
	return nil
}

func (l *InMemoryLedger) Close() error { return nil }

func (l *InMemoryLedger) upsertLocked(credentialHash string) *Record {
	period := l.period()
	rec, ok := l.records[credentialHash]
	if !ok || rec.CurrentPeriod != period {
		rec = &Record{
			CredentialHash: credentialHash,
			WordsUsed:      0,
			MonthlyLimit:   l.defaultLimit,
			CurrentPeriod:  period,
			LastUpdated:    time.Now().UTC(),
		}
		l.records[credentialHash] = rec
	}
	return rec
}
