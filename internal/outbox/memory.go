package outbox

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is a process-local Repo for tests and single-node development.
// It mirrors the Postgres repo's transition rules, including the
// lease-on-claim discipline.
type MemoryRepo struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{entries: make(map[string]*Entry)}
}

func (r *MemoryRepo) Enqueue(_ context.Context, entry Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[entry.ID]; exists {
		return fmt.Errorf("duplicate outbox entry id %s", entry.ID)
	}
	entry.Status = StatusPending
	entry.Attempts = 0
	entry.UpdatedAt = entry.CreatedAt
	r.entries[entry.ID] = &entry
	return nil
}

func (r *MemoryRepo) ClaimDue(_ context.Context, now time.Time, limit int) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	due := make([]*Entry, 0)
	for _, entry := range r.entries {
		if entry.Status != StatusPending {
			continue
		}
		if entry.NextAttemptAt != nil && entry.NextAttemptAt.After(now) {
			continue
		}
		due = append(due, entry)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]Entry, 0, len(due))
	for _, entry := range due {
		entry.Status = StatusSending
		lockedAt := now
		entry.LockedAt = &lockedAt
		entry.UpdatedAt = now
		claimed = append(claimed, *entry)
	}
	return claimed, nil
}

func (r *MemoryRepo) MarkSent(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok || entry.Status != StatusSending {
		return nil
	}
	entry.Status = StatusSent
	entry.Attempts++
	attemptAt := at
	entry.LastAttemptAt = &attemptAt
	entry.LockedAt = nil
	entry.NextAttemptAt = nil
	entry.UpdatedAt = at
	return nil
}

func (r *MemoryRepo) RecordFailure(_ context.Context, id, deliveryErr string, at, nextAttemptAt time.Time) (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		return "", fmt.Errorf("no outbox entry %s", id)
	}
	if entry.Status != StatusSending {
		return entry.Status, nil
	}
	entry.Attempts++
	entry.LastError = deliveryErr
	attemptAt := at
	entry.LastAttemptAt = &attemptAt
	entry.LockedAt = nil
	entry.UpdatedAt = at
	if entry.Attempts >= MaxAttempts {
		entry.Status = StatusFailed
		entry.NextAttemptAt = nil
	} else {
		entry.Status = StatusPending
		next := nextAttemptAt
		entry.NextAttemptAt = &next
	}
	return entry.Status, nil
}

func (r *MemoryRepo) ManualRetry(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		return false, fmt.Errorf("no outbox entry %s", id)
	}
	if entry.Status != StatusFailed {
		return false, nil
	}
	entry.Status = StatusPending
	entry.Attempts = 0
	entry.NextAttemptAt = nil
	entry.LockedAt = nil
	entry.UpdatedAt = time.Now()
	return true, nil
}

func (r *MemoryRepo) RequeueStale(_ context.Context, staleBefore time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	requeued := 0
	for _, entry := range r.entries {
		if entry.Status == StatusSending && entry.LockedAt != nil && entry.LockedAt.Before(staleBefore) {
			entry.Status = StatusPending
			entry.LockedAt = nil
			requeued++
		}
	}
	return requeued, nil
}

func (r *MemoryRepo) Get(_ context.Context, id string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		return Entry{}, fmt.Errorf("no outbox entry %s", id)
	}
	return *entry, nil
}

func (r *MemoryRepo) List(_ context.Context, limit int) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		items = append(items, *entry)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

var _ Repo = (*MemoryRepo)(nil)
