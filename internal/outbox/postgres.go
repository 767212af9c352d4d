package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresRepo persists outbox entries in the outbox_entries table.
// ClaimDue uses FOR UPDATE SKIP LOCKED so horizontally scaled workers never
// lease the same entry twice.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const entryColumns = `id, composite_key, recipient_id, rendered_message, status, attempts, next_attempt_at, locked_at, last_error, last_attempt_at, created_at, updated_at`

func (r *PostgresRepo) Enqueue(ctx context.Context, entry Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO outbox_entries (id, composite_key, recipient_id, rendered_message, status, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $6)
	`, entry.ID, entry.CompositeKey, entry.RecipientID, entry.RenderedMessage, StatusPending, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("enqueue outbox entry: %w", err)
	}
	return nil
}

func (r *PostgresRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE outbox_entries SET status=$1, locked_at=$2, updated_at=$2
		WHERE id IN (
			SELECT id FROM outbox_entries
			WHERE status=$3 AND (next_attempt_at IS NULL OR next_attempt_at <= $2)
			ORDER BY created_at
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+entryColumns, StatusSending, now, StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("claim due entries: %w", err)
	}
	return scanEntries(rows)
}

func (r *PostgresRepo) MarkSent(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE outbox_entries
		SET status=$2, attempts=attempts+1, last_attempt_at=$3, locked_at=NULL, next_attempt_at=NULL, updated_at=$3
		WHERE id=$1 AND status=$4
	`, id, StatusSent, at, StatusSending)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}

func (r *PostgresRepo) RecordFailure(ctx context.Context, id, deliveryErr string, at, nextAttemptAt time.Time) (Status, error) {
	var status Status
	err := r.db.QueryRowContext(ctx, `
		UPDATE outbox_entries
		SET attempts = attempts + 1,
		    last_error = $2,
		    last_attempt_at = $3,
		    locked_at = NULL,
		    status = CASE WHEN attempts + 1 >= $4 THEN $5 ELSE $6 END,
		    next_attempt_at = CASE WHEN attempts + 1 >= $4 THEN NULL ELSE $7 END,
		    updated_at = $3
		WHERE id = $1 AND status = $8
		RETURNING status
	`, id, deliveryErr, at, MaxAttempts, StatusFailed, StatusPending, nextAttemptAt, StatusSending).Scan(&status)
	if err != nil {
		return "", fmt.Errorf("record failure: %w", err)
	}
	return status, nil
}

func (r *PostgresRepo) ManualRetry(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE outbox_entries
		SET status=$2, attempts=0, next_attempt_at=NULL, locked_at=NULL, updated_at=NOW()
		WHERE id=$1 AND status=$3
	`, id, StatusPending, StatusFailed)
	if err != nil {
		return false, fmt.Errorf("manual retry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("manual retry rows affected: %w", err)
	}
	return affected == 1, nil
}

func (r *PostgresRepo) RequeueStale(ctx context.Context, staleBefore time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE outbox_entries
		SET status=$1, locked_at=NULL, updated_at=NOW()
		WHERE status=$2 AND locked_at < $3
	`, StatusPending, StatusSending, staleBefore)
	if err != nil {
		return 0, fmt.Errorf("requeue stale entries: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("requeue stale rows affected: %w", err)
	}
	return int(affected), nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Entry, error) {
	var entry Entry
	err := r.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM outbox_entries WHERE id=$1
	`, id).Scan(
		&entry.ID, &entry.CompositeKey, &entry.RecipientID, &entry.RenderedMessage,
		&entry.Status, &entry.Attempts, &entry.NextAttemptAt, &entry.LockedAt,
		&entry.LastError, &entry.LastAttemptAt, &entry.CreatedAt, &entry.UpdatedAt,
	)
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (r *PostgresRepo) List(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM outbox_entries ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list outbox entries: %w", err)
	}
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()
	items := make([]Entry, 0)
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(
			&entry.ID, &entry.CompositeKey, &entry.RecipientID, &entry.RenderedMessage,
			&entry.Status, &entry.Attempts, &entry.NextAttemptAt, &entry.LockedAt,
			&entry.LastError, &entry.LastAttemptAt, &entry.CreatedAt, &entry.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		items = append(items, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox entries: %w", err)
	}
	return items, nil
}

var _ Repo = (*PostgresRepo)(nil)
