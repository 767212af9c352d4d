package idempotency

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore implements Store on the idempotency_records table. The
// primary key on the key column makes INSERT ... ON CONFLICT DO NOTHING an
// atomic check-and-set: exactly one of any number of concurrent inserts for
// the same key reports a row affected.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Claim(ctx context.Context, key string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO idempotency_records (key)
		VALUES ($1)
		ON CONFLICT (key) DO NOTHING
	`, key)
	if err != nil {
		return false, fmt.Errorf("claim key: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim key rows affected: %w", err)
	}
	return inserted == 1, nil
}

func (s *PostgresStore) HasClaimed(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM idempotency_records WHERE key=$1)`, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check key: %w", err)
	}
	return exists, nil
}

var _ Store = (*PostgresStore)(nil)
