// Package outbox implements the durable delivery half of the nudge engine.
// Each claimed notification becomes one Entry; the Worker drives the entry
// state machine: pending -> sent on delivery success, pending -> pending
// with capped exponential backoff while attempts remain, pending -> failed
// once attempts are exhausted. sent is terminal; failed is inert until an
// operator re-arms it.
package outbox

import (
	"context"
	"time"
)

// Status is the lifecycle state of an outbox entry.
type Status string

const (
	// StatusPending entries are awaiting an attempt (or a scheduled retry).
	StatusPending Status = "pending"
	// StatusSending entries are leased by a worker for an in-flight attempt.
	StatusSending Status = "sending"
	// StatusSent is terminal: delivery was confirmed. No transition out.
	StatusSent Status = "sent"
	// StatusFailed is terminal until a manual retry re-arms the entry.
	StatusFailed Status = "failed"
)

// MaxAttempts is the delivery attempt ceiling per retry round.
const MaxAttempts = 3

// LeaseTTL bounds how long an entry may sit in sending before it is
// considered abandoned by a crashed worker and requeued.
const LeaseTTL = 2 * time.Minute

// Entry is one durable delivery intent.
type Entry struct {
	ID              string
	CompositeKey    string
	RecipientID     string
	RenderedMessage string
	Status          Status
	Attempts        int
	NextAttemptAt   *time.Time
	LockedAt        *time.Time
	LastError       string
	LastAttemptAt   *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Repo is the durable store behind the worker. Implementations must make
// ClaimDue safe under concurrent workers: an entry claimed by one worker
// is invisible to the others until its lease lapses.
type Repo interface {
	// Enqueue inserts a fresh pending entry.
	Enqueue(ctx context.Context, entry Entry) error

	// ClaimDue leases up to limit pending entries whose next attempt time
	// has arrived (or was never set), flipping them to sending.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]Entry, error)

	// MarkSent records a confirmed delivery. The entry is terminal after.
	MarkSent(ctx context.Context, id string, at time.Time) error

	// RecordFailure increments the attempt counter and either reschedules
	// the entry at nextAttemptAt or, at the attempt ceiling, marks it
	// failed. It returns the resulting status.
	RecordFailure(ctx context.Context, id, deliveryErr string, at, nextAttemptAt time.Time) (Status, error)

	// ManualRetry re-arms a failed entry. It returns false without
	// mutating anything when the entry is pending, sending, or sent.
	ManualRetry(ctx context.Context, id string) (bool, error)

	// RequeueStale returns sending entries whose lease lapsed before
	// staleBefore to pending, and reports how many were requeued.
	RequeueStale(ctx context.Context, staleBefore time.Time) (int, error)

	// Get reads a single entry.
	Get(ctx context.Context, id string) (Entry, error)

	// List returns entries newest first, up to limit.
	List(ctx context.Context, limit int) ([]Entry, error)
}

// BackoffDelay returns the wait before retry attempt n (n >= 1):
// 1s, 2s, 4s, capped at 4s for anything beyond.
func BackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Duration(1<<(attempt-1)) * time.Second
	if delay > 4*time.Second {
		return 4 * time.Second
	}
	return delay
}
