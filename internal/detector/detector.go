// Package detector runs the recurring nudge detection pass: scan candidate
// entities, test their time windows, gate on recipient preferences, claim
// the composite key, and enqueue a rendered outbox entry for every claim
// won. A pass is safely re-runnable on any schedule; the idempotency claim
// is the sole dedup mechanism, so overlapping passes cannot double-emit.
package detector

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"messageai/api/internal/content"
	"messageai/api/internal/idempotency"
	"messageai/api/internal/nudge"
	"messageai/api/internal/outbox"
	"messageai/api/internal/store"
	"messageai/api/internal/window"
)

// EntityStore is the slice of the data layer the detector reads.
type EntityStore interface {
	ListEventsEndedBetween(ctx context.Context, from, to time.Time) ([]store.Event, error)
	ListEventsStartingBetween(ctx context.Context, from, to time.Time) ([]store.Event, error)
	ListEventParticipants(ctx context.Context, eventID string) ([]store.EventParticipant, error)
	ListOpenTasksDueBefore(ctx context.Context, cutoff time.Time) ([]store.Task, error)
	ListConversationsIdleSince(ctx context.Context, cutoff time.Time) ([]store.Conversation, error)
	GetPreferences(ctx context.Context, userID string) (nudge.Preferences, error)
}

// Enqueuer persists delivery intents. Satisfied by every outbox.Repo.
type Enqueuer interface {
	Enqueue(ctx context.Context, entry outbox.Entry) error
}

// Stats summarizes one detection pass.
type Stats struct {
	Candidates int
	Claimed    int
	Enqueued   int
	Skipped    int
	Errors     int
}

// Detector owns the scan. It holds no mutable state between passes.
type Detector struct {
	entities EntityStore
	claims   idempotency.Store
	enqueuer Enqueuer
	now      func() time.Time
}

func New(entities EntityStore, claims idempotency.Store, enqueuer Enqueuer) *Detector {
	return &Detector{
		entities: entities,
		claims:   claims,
		enqueuer: enqueuer,
		now:      time.Now,
	}
}

// WithClock overrides the detector's time source for tests.
func (d *Detector) WithClock(now func() time.Time) *Detector {
	d.now = now
	return d
}

// RunPass executes one bounded detection pass over all sources. Source
// scan errors are logged and that source is skipped for the pass; no claim
// is taken for skipped candidates, so the next tick re-evaluates them.
func (d *Detector) RunPass(ctx context.Context) Stats {
	now := d.now()
	var stats Stats

	d.scanEndedEvents(ctx, now, &stats)
	d.scanUpcomingEvents(ctx, now, &stats)
	d.scanTasks(ctx, now, &stats)
	d.scanConversations(ctx, now, &stats)

	log.Printf("detector: pass complete candidates=%d claimed=%d enqueued=%d skipped=%d errors=%d",
		stats.Candidates, stats.Claimed, stats.Enqueued, stats.Skipped, stats.Errors)
	return stats
}

// scanEndedEvents emits post_session_note prompts for sessions that ended
// within the last two hours.
func (d *Detector) scanEndedEvents(ctx context.Context, now time.Time, stats *Stats) {
	events, err := d.entities.ListEventsEndedBetween(ctx, now.Add(-2*time.Hour), now)
	if err != nil {
		log.Printf("detector: list ended events: %v", err)
		stats.Errors++
		return
	}

	for _, event := range events {
		if !window.IsRecentSessionEnd(event.EndAt, now) {
			continue
		}
		participants, err := d.entities.ListEventParticipants(ctx, event.ID)
		if err != nil {
			log.Printf("detector: participants for %s: %v", event.ID, err)
			stats.Errors++
			continue
		}
		for _, p := range participants {
			d.emit(ctx, stats, nudge.Candidate{
				EntityType:   nudge.EntityEvent,
				EntityID:     event.ID,
				TargetUserID: p.UserID,
				Kind:         nudge.KindPostSessionNote,
				OccursAt:     event.EndAt,
				Context: nudge.Context{
					SessionTitle: event.Title,
					PartnerName:  partnerName(participants, p.UserID),
					EventTime:    event.EndAt,
					Timezone:     p.Timezone,
				},
			})
		}
	}
}

// scanUpcomingEvents emits 24h_before, 2h_before, and unconfirmed_24h
// nudges. One listing covers all three windows; the predicates narrow it.
func (d *Detector) scanUpcomingEvents(ctx context.Context, now time.Time, stats *Stats) {
	events, err := d.entities.ListEventsStartingBetween(ctx, now, now.Add(28*time.Hour))
	if err != nil {
		log.Printf("detector: list upcoming events: %v", err)
		stats.Errors++
		return
	}

	for _, event := range events {
		in24h := window.IsWithin24hWindow(event.StartAt, now)
		in2h := window.IsWithin2hWindow(event.StartAt, now)
		if !in24h && !in2h {
			continue
		}
		participants, err := d.entities.ListEventParticipants(ctx, event.ID)
		if err != nil {
			log.Printf("detector: participants for %s: %v", event.ID, err)
			stats.Errors++
			continue
		}
		unconfirmed := in24h && !allResponded(participants)

		for _, p := range participants {
			base := nudge.Context{
				SessionTitle: event.Title,
				PartnerName:  partnerName(participants, p.UserID),
				EventTime:    event.StartAt,
				Timezone:     p.Timezone,
			}
			if in24h {
				d.emit(ctx, stats, nudge.Candidate{
					EntityType:   nudge.EntityEvent,
					EntityID:     event.ID,
					TargetUserID: p.UserID,
					Kind:         nudge.Kind24hBefore,
					OccursAt:     event.StartAt,
					Context:      base,
				})
			}
			if in2h {
				d.emit(ctx, stats, nudge.Candidate{
					EntityType:   nudge.EntityEvent,
					EntityID:     event.ID,
					TargetUserID: p.UserID,
					Kind:         nudge.Kind2hBefore,
					OccursAt:     event.StartAt,
					Context:      base,
				})
			}
			if unconfirmed {
				d.emit(ctx, stats, nudge.Candidate{
					EntityType:   nudge.EntityEvent,
					EntityID:     event.ID,
					TargetUserID: p.UserID,
					Kind:         nudge.KindUnconfirmed24h,
					OccursAt:     event.StartAt,
					Context:      base,
				})
			}
		}
	}
}

// scanTasks emits task_due_today and task_overdue nudges for incomplete
// tasks whose due date has arrived or passed.
func (d *Detector) scanTasks(ctx context.Context, now time.Time, stats *Stats) {
	tasks, err := d.entities.ListOpenTasksDueBefore(ctx, endOfUTCDay(now))
	if err != nil {
		log.Printf("detector: list open tasks: %v", err)
		stats.Errors++
		return
	}

	for _, task := range tasks {
		if task.Completed || task.DueAt == nil {
			continue
		}
		var kind nudge.Kind
		switch {
		case window.IsOverdue(*task.DueAt, now):
			kind = nudge.KindTaskOverdue
		case window.IsDueToday(*task.DueAt, now):
			kind = nudge.KindTaskDueToday
		default:
			continue
		}
		d.emit(ctx, stats, nudge.Candidate{
			EntityType:   nudge.EntityTask,
			EntityID:     task.ID,
			TargetUserID: task.AssigneeID,
			Kind:         kind,
			OccursAt:     *task.DueAt,
			Context: nudge.Context{
				TaskTitle: task.Title,
				EventTime: *task.DueAt,
			},
		})
	}
}

// scanConversations emits long_gap_alert nudges. For a pair with session
// history the gap is measured from the last session; a pair that has only
// ever messaged counts from the last message, provided the conversation
// itself has gone quiet past the inactivity threshold.
func (d *Detector) scanConversations(ctx context.Context, now time.Time, stats *Stats) {
	conversations, err := d.entities.ListConversationsIdleSince(ctx, now.Add(-7*24*time.Hour))
	if err != nil {
		log.Printf("detector: list idle conversations: %v", err)
		stats.Errors++
		return
	}

	for _, conv := range conversations {
		var since time.Time
		if conv.LastSessionAt != nil {
			if !window.IsLongGap(*conv.LastSessionAt, now) {
				continue
			}
			since = *conv.LastSessionAt
		} else {
			if !window.IsLongGap(conv.LastMessageAt, now) || !window.IsInactiveConversation(conv.LastMessageAt, now) {
				continue
			}
			since = conv.LastMessageAt
		}
		d.emit(ctx, stats, nudge.Candidate{
			EntityType:   nudge.EntityConversation,
			EntityID:     conv.ID,
			TargetUserID: conv.UserID,
			Kind:         nudge.KindLongGapAlert,
			OccursAt:     since,
			Context: nudge.Context{
				PartnerName: conv.PartnerName,
				DaysSince:   int(now.Sub(since).Hours() / 24),
			},
		})
	}
}

// emit runs one candidate through the gate, claim, render, and enqueue
// steps. Every failure path is logged and skipped; losing the claim race
// is a silent, expected skip.
func (d *Detector) emit(ctx context.Context, stats *Stats, candidate nudge.Candidate) {
	stats.Candidates++

	prefs, err := d.entities.GetPreferences(ctx, candidate.TargetUserID)
	if err != nil {
		log.Printf("detector: preferences for %s: %v", candidate.TargetUserID, err)
		stats.Errors++
		return
	}
	if !prefs.Allows(candidate.Kind) {
		stats.Skipped++
		return
	}

	won, err := d.claims.Claim(ctx, candidate.Key())
	if err != nil {
		log.Printf("detector: claim %s: %v", candidate.Key(), err)
		stats.Errors++
		return
	}
	if !won {
		stats.Skipped++
		return
	}
	stats.Claimed++

	message, err := content.Render(candidate.Kind, candidate.Context)
	if err != nil {
		log.Printf("detector: render %s: %v", candidate.Key(), err)
		stats.Errors++
		return
	}

	entry := outbox.Entry{
		ID:              uuid.NewString(),
		CompositeKey:    candidate.Key(),
		RecipientID:     candidate.TargetUserID,
		RenderedMessage: message,
		CreatedAt:       d.now(),
	}
	if err := d.enqueuer.Enqueue(ctx, entry); err != nil {
		// The key stays claimed: failing toward a missed enqueue is the
		// safe side of the duplicate-send tradeoff.
		log.Printf("detector: enqueue %s: %v", candidate.Key(), err)
		stats.Errors++
		return
	}
	stats.Enqueued++
}

func allResponded(participants []store.EventParticipant) bool {
	for _, p := range participants {
		if p.Response == "pending" {
			return false
		}
	}
	return len(participants) > 0
}

// partnerName returns the display name of the other participant in a
// two-person session, or "" when there is no single counterpart.
func partnerName(participants []store.EventParticipant, userID string) string {
	if len(participants) != 2 {
		return ""
	}
	for _, p := range participants {
		if p.UserID != userID {
			return p.DisplayName
		}
	}
	return ""
}

func endOfUTCDay(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 23, 59, 59, 0, time.UTC)
}
