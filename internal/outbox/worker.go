package outbox

import (
	"context"
	"log"
	"sync"
	"time"

	"messageai/api/internal/notify"
)

// defaultBatchSize bounds how many entries one ProcessDue call leases.
const defaultBatchSize = 50

// Worker drains due outbox entries through the notification sender.
// Entries are processed independently and concurrently; the only blocking
// operation per entry is the sender call itself.
type Worker struct {
	repo      Repo
	sender    notify.Sender
	batchSize int
	now       func() time.Time
}

// NewWorker creates a worker over a repo and sender.
func NewWorker(repo Repo, sender notify.Sender) *Worker {
	return &Worker{
		repo:      repo,
		sender:    sender,
		batchSize: defaultBatchSize,
		now:       time.Now,
	}
}

// WithClock overrides the worker's clock. Tests drive the retry schedule
// with a controlled time source.
func (w *Worker) WithClock(now func() time.Time) *Worker {
	w.now = now
	return w
}

// ProcessDue runs one bounded drain cycle: requeue leases abandoned by
// crashed workers, claim the due batch, and attempt delivery for each
// claimed entry. It returns how many entries were attempted. Safe to call
// on any schedule; an empty cycle is a no-op.
func (w *Worker) ProcessDue(ctx context.Context) (int, error) {
	now := w.now()

	requeued, err := w.repo.RequeueStale(ctx, now.Add(-LeaseTTL))
	if err != nil {
		return 0, err
	}
	if requeued > 0 {
		log.Printf("outbox: requeued %d stale entries", requeued)
	}

	entries, err := w.repo.ClaimDue(ctx, now, w.batchSize)
	if err != nil {
		return 0, err
	}

	var wg sync.WaitGroup
	for _, entry := range entries {
		wg.Add(1)
		go func(entry Entry) {
			defer wg.Done()
			w.attempt(ctx, entry)
		}(entry)
	}
	wg.Wait()

	return len(entries), nil
}

// attempt makes one delivery attempt for a leased entry and records the
// outcome. Failures here are recorded on the entry, never returned: one
// undeliverable notification must not stall the batch.
func (w *Worker) attempt(ctx context.Context, entry Entry) {
	err := w.sender.Send(ctx, entry.RecipientID, entry.RenderedMessage)
	at := w.now()

	if err == nil {
		if markErr := w.repo.MarkSent(ctx, entry.ID, at); markErr != nil {
			log.Printf("outbox: mark sent %s: %v", entry.ID, markErr)
		}
		return
	}

	// entry.Attempts still holds the pre-attempt count, so the attempt
	// just made is number Attempts+1 and its retry waits BackoffDelay of
	// that same number: 1s after the first failure, then 2s, then 4s.
	attemptNumber := entry.Attempts + 1
	nextAttemptAt := at.Add(BackoffDelay(attemptNumber))
	status, recordErr := w.repo.RecordFailure(ctx, entry.ID, err.Error(), at, nextAttemptAt)
	if recordErr != nil {
		log.Printf("outbox: record failure %s: %v", entry.ID, recordErr)
		return
	}
	if status == StatusFailed {
		log.Printf("outbox: entry %s failed after %d attempts: %v", entry.ID, attemptNumber, err)
	}
}
