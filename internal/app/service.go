package app

import (
	"context"
	"time"

	"messageai/api/internal/detector"
	"messageai/api/internal/outbox"
)

// PassRunner triggers one detection pass. Satisfied by *detector.Detector.
type PassRunner interface {
	RunPass(ctx context.Context) detector.Stats
}

// OutboxReader is the observability slice of the outbox repo plus the one
// operator mutation, manual retry.
type OutboxReader interface {
	Get(ctx context.Context, id string) (outbox.Entry, error)
	List(ctx context.Context, limit int) ([]outbox.Entry, error)
	ManualRetry(ctx context.Context, id string) (bool, error)
}

// Pinger reports data-store reachability for readiness checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Service wires the engine's operations behind the admin HTTP surface.
type Service struct {
	runner PassRunner
	outbox OutboxReader
	pinger Pinger
}

func NewService(runner PassRunner, outboxRepo OutboxReader, pinger Pinger) *Service {
	return &Service{runner: runner, outbox: outboxRepo, pinger: pinger}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.pinger.Ping(ctx)
}

// RunDetectionPass triggers one bounded scan. Idempotent by construction;
// safe to invoke on any schedule or manually.
func (s *Service) RunDetectionPass(ctx context.Context) detector.Stats {
	return s.runner.RunPass(ctx)
}

// OutboxEntryView is the JSON shape of an outbox entry for admin tooling.
type OutboxEntryView struct {
	ID              string     `json:"id"`
	CompositeKey    string     `json:"compositeKey"`
	RecipientID     string     `json:"recipientId"`
	RenderedMessage string     `json:"renderedMessage"`
	Status          string     `json:"status"`
	Attempts        int        `json:"attempts"`
	NextAttemptAt   *time.Time `json:"nextAttemptAt,omitempty"`
	LastError       string     `json:"lastError,omitempty"`
	LastAttemptAt   *time.Time `json:"lastAttemptAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func toView(entry outbox.Entry) OutboxEntryView {
	return OutboxEntryView{
		ID:              entry.ID,
		CompositeKey:    entry.CompositeKey,
		RecipientID:     entry.RecipientID,
		RenderedMessage: entry.RenderedMessage,
		Status:          string(entry.Status),
		Attempts:        entry.Attempts,
		NextAttemptAt:   entry.NextAttemptAt,
		LastError:       entry.LastError,
		LastAttemptAt:   entry.LastAttemptAt,
		CreatedAt:       entry.CreatedAt,
	}
}

// GetOutboxEntry reads one entry for observability.
func (s *Service) GetOutboxEntry(ctx context.Context, id string) (OutboxEntryView, error) {
	entry, err := s.outbox.Get(ctx, id)
	if err != nil {
		return OutboxEntryView{}, domainError(404, "NOT_FOUND", "outbox entry not found", nil)
	}
	return toView(entry), nil
}

// ListOutboxEntries returns recent entries, newest first.
func (s *Service) ListOutboxEntries(ctx context.Context, limit int) ([]OutboxEntryView, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	entries, err := s.outbox.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	views := make([]OutboxEntryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, toView(entry))
	}
	return views, nil
}

// RetryOutboxEntry re-arms a failed entry. Retrying a pending or sent
// entry is rejected without touching the entry.
func (s *Service) RetryOutboxEntry(ctx context.Context, id string) error {
	if _, err := s.outbox.Get(ctx, id); err != nil {
		return domainError(404, "NOT_FOUND", "outbox entry not found", nil)
	}
	ok, err := s.outbox.ManualRetry(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return domainError(409, "NOT_RETRYABLE", "only failed entries can be retried", nil)
	}
	return nil
}
