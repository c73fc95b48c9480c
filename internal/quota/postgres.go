package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Asmit-coder-Arduino/TTS/internal/words"
)

// PostgresLedger persists word usage in PostgreSQL.
type PostgresLedger struct {
	pool         *pgxpool.Pool
	defaultLimit int
}

func NewPostgresLedger(ctx context.Context, databaseURL string, defaultLimit int) (*PostgresLedger, error) {
	if defaultLimit <= 0 {
		defaultLimit = DefaultMonthlyLimit
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initLedgerSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresLedger{pool: pool, defaultLimit: defaultLimit}, nil
}

func initLedgerSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS api_key_usage (
			id TEXT PRIMARY KEY,
			api_key_hash TEXT NOT NULL UNIQUE,
			words_used INTEGER NOT NULL DEFAULT 0,
			monthly_limit INTEGER NOT NULL DEFAULT 10000,
			current_month TEXT NOT NULL,
			last_updated TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (l *PostgresLedger) Get(ctx context.Context, credentialHash string) (Record, bool, error) {
	var rec Record
	err := l.pool.QueryRow(ctx,
		`SELECT api_key_hash, words_used, monthly_limit, current_month, last_updated
		 FROM api_key_usage WHERE api_key_hash=$1`,
		credentialHash,
	).Scan(&rec.CredentialHash, &rec.WordsUsed, &rec.MonthlyLimit, &rec.CurrentPeriod, &rec.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("query usage record: %w", err)
	}
	return rec, true, nil
}

func (l *PostgresLedger) Upsert(ctx context.Context, credentialHash string) (Record, error) {
	period := words.CurrentPeriod()

	var rec Record
	err := l.pool.QueryRow(ctx,
		`INSERT INTO api_key_usage (id, api_key_hash, words_used, monthly_limit, current_month)
		 VALUES ($1, $2, 0, $3, $4)
		 ON CONFLICT (api_key_hash) DO UPDATE SET
			words_used = CASE
				WHEN api_key_usage.current_month <> EXCLUDED.current_month THEN 0
				ELSE api_key_usage.words_used
			END,
			current_month = EXCLUDED.current_month,
			last_updated = now()
		 RETURNING api_key_hash, words_used, monthly_limit, current_month, last_updated`,
		uuid.NewString(),
		credentialHash,
		l.defaultLimit,
		period,
	).Scan(&rec.CredentialHash, &rec.WordsUsed, &rec.MonthlyLimit, &rec.CurrentPeriod, &rec.LastUpdated)
	if err != nil {
		return Record{}, fmt.Errorf("upsert usage record: %w", err)
	}
	return rec, nil
}

func (l *PostgresLedger) Validate(ctx context.Context, credentialHash string, requestedWords int) (ValidationResult, error) {
	rec, err := l.Upsert(ctx, credentialHash)
	if err != nil {
		return ValidationResult{}, err
	}
	return validationFor(rec, requestedWords), nil
}

func (l *PostgresLedger) Commit(ctx context.Context, credentialHash string, wordsUsed int) error {
	// Single UPDATE keeps concurrent commits for the same hash atomic.
	_, err := l.pool.Exec(ctx,
		`UPDATE api_key_usage
		 SET words_used = words_used + $2, last_updated = now()
		 WHERE api_key_hash = $1`,
		credentialHash,
		wordsUsed,
	)
	if err != nil {
		return fmt.Errorf("commit usage: %w", err)
	}
	return nil
}

func (l *PostgresLedger) Close() error {
	l.pool.Close()
	return nil
}
