package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"messageai/api/internal/nudge"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ListEventsEndedBetween returns events whose end time falls in [from, to].
func (s *PostgresStore) ListEventsEndedBetween(ctx context.Context, from, to time.Time) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, start_at, end_at, status, created_by
		FROM events
		WHERE end_at >= $1 AND end_at <= $2
		ORDER BY end_at
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list ended events: %w", err)
	}
	return scanEvents(rows)
}

// ListEventsStartingBetween returns events whose start time falls in
// [from, to], regardless of status.
func (s *PostgresStore) ListEventsStartingBetween(ctx context.Context, from, to time.Time) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, start_at, end_at, status, created_by
		FROM events
		WHERE start_at >= $1 AND start_at <= $2
		ORDER BY start_at
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list upcoming events: %w", err)
	}
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	defer rows.Close()
	items := make([]Event, 0)
	for rows.Next() {
		var item Event
		if err := rows.Scan(&item.ID, &item.Title, &item.StartAt, &item.EndAt, &item.Status, &item.CreatedBy); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return items, nil
}

// ListEventParticipants returns the participants of an event with their
// RSVP state and display info.
func (s *PostgresStore) ListEventParticipants(ctx context.Context, eventID string) ([]EventParticipant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, user_id, display_name, response, timezone
		FROM event_participants
		WHERE event_id=$1
		ORDER BY user_id
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	items := make([]EventParticipant, 0)
	for rows.Next() {
		var item EventParticipant
		if err := rows.Scan(&item.EventID, &item.UserID, &item.DisplayName, &item.Response, &item.Timezone); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}
	return items, nil
}

// ListOpenTasksDueBefore returns incomplete tasks with a due date at or
// before the cutoff. The detector decides due-today versus overdue.
func (s *PostgresStore) ListOpenTasksDueBefore(ctx context.Context, cutoff time.Time) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, assignee_id, due_at, completed
		FROM tasks
		WHERE completed = FALSE AND due_at IS NOT NULL AND due_at <= $1
		ORDER BY due_at
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list open tasks: %w", err)
	}
	defer rows.Close()

	items := make([]Task, 0)
	for rows.Next() {
		var item Task
		if err := rows.Scan(&item.ID, &item.Title, &item.AssigneeID, &item.DueAt, &item.Completed); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return items, nil
}

// ListConversationsIdleSince returns conversations whose last session (or,
// when no session was ever held, last message) is older than the cutoff.
func (s *PostgresStore) ListConversationsIdleSince(ctx context.Context, cutoff time.Time) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, partner_id, partner_name, last_message_at, last_session_at
		FROM conversations
		WHERE COALESCE(last_session_at, last_message_at) < $1
		ORDER BY id
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list idle conversations: %w", err)
	}
	defer rows.Close()

	items := make([]Conversation, 0)
	for rows.Next() {
		var item Conversation
		if err := rows.Scan(&item.ID, &item.UserID, &item.PartnerID, &item.PartnerName, &item.LastMessageAt, &item.LastSessionAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return items, nil
}

// GetPreferences reads a user's nudge preferences. A missing row means the
// user never touched their settings and defaults to everything enabled.
func (s *PostgresStore) GetPreferences(ctx context.Context, userID string) (nudge.Preferences, error) {
	var p nudge.Preferences
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, enabled, post_session_notes_enabled, long_gap_alerts_enabled, unconfirmed_events_enabled
		FROM user_nudge_preferences
		WHERE user_id=$1
	`, userID).Scan(&p.UserID, &p.Enabled, &p.PostSessionNotesEnabled, &p.LongGapAlertsEnabled, &p.UnconfirmedEventsEnabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nudge.DefaultPreferences(userID), nil
	}
	if err != nil {
		return nudge.Preferences{}, fmt.Errorf("read preferences: %w", err)
	}
	return p, nil
}

// SavePreferences upserts a user's nudge preferences. Exposed for admin
// tooling and test fixtures; the engine itself only reads.
func (s *PostgresStore) SavePreferences(ctx context.Context, p nudge.Preferences) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_nudge_preferences (user_id, enabled, post_session_notes_enabled, long_gap_alerts_enabled, unconfirmed_events_enabled)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			enabled=EXCLUDED.enabled,
			post_session_notes_enabled=EXCLUDED.post_session_notes_enabled,
			long_gap_alerts_enabled=EXCLUDED.long_gap_alerts_enabled,
			unconfirmed_events_enabled=EXCLUDED.unconfirmed_events_enabled
	`, p.UserID, p.Enabled, p.PostSessionNotesEnabled, p.LongGapAlertsEnabled, p.UnconfirmedEventsEnabled)
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}
