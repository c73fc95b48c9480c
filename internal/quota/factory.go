package quota

import (
	"context"
	"strings"
)

// NewLedger creates a postgres-backed ledger when configured,
// otherwise in-memory.
func NewLedger(ctx context.Context, databaseURL string, defaultLimit int) (Ledger, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewInMemoryLedger(defaultLimit), nil
	}
	return NewPostgresLedger(ctx, databaseURL, defaultLimit)
}
