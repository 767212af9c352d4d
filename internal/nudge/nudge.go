// Package nudge defines the domain vocabulary of the reminder engine:
// nudge kinds, detection candidates, composite dedup keys, and per-user
// notification preferences.
package nudge

import (
	"fmt"
	"time"
)

// EntityType identifies which upstream store a candidate came from.
type EntityType string

const (
	EntityEvent        EntityType = "event"
	EntityTask         EntityType = "task"
	EntityConversation EntityType = "conversation"
)

// Kind names one notification variant. The string values are an external
// contract: they appear inside persisted composite keys.
type Kind string

const (
	KindPostSessionNote Kind = "post_session_note"
	Kind24hBefore       Kind = "24h_before"
	Kind2hBefore        Kind = "2h_before"
	KindTaskDueToday    Kind = "task_due_today"
	KindTaskOverdue     Kind = "task_overdue"
	KindUnconfirmed24h  Kind = "unconfirmed_24h"
	KindLongGapAlert    Kind = "long_gap_alert"
)

// Candidate is an ephemeral detection result. It is computed fresh on every
// pass and never persisted; only the derived composite key and the outbox
// entry it may produce outlive the pass.
type Candidate struct {
	EntityType   EntityType
	EntityID     string
	TargetUserID string
	Kind         Kind
	OccursAt     time.Time
	Context      Context
}

// Context carries the template inputs for content generation. Optional
// fields are empty strings or zero values when absent.
type Context struct {
	SessionTitle string
	PartnerName  string
	TaskTitle    string
	DaysSince    int
	EventTime    time.Time
	Timezone     string
}

// CompositeKey derives the deterministic dedup key for a candidate:
// entityType_entityId_targetUserId_kind, underscore-joined. This exact
// format is an external contract; collaborators persist and display it.
func CompositeKey(entityType EntityType, entityID, targetUserID string, kind Kind) string {
	return fmt.Sprintf("%s_%s_%s_%s", entityType, entityID, targetUserID, kind)
}

// Key derives the candidate's composite key.
func (c Candidate) Key() string {
	return CompositeKey(c.EntityType, c.EntityID, c.TargetUserID, c.Kind)
}

// Preferences holds a user's nudge switches. The zero value disables
// everything; use DefaultPreferences for the all-enabled default applied
// when no row exists for a user.
type Preferences struct {
	UserID                   string
	Enabled                  bool
	PostSessionNotesEnabled  bool
	LongGapAlertsEnabled     bool
	UnconfirmedEventsEnabled bool
}

// DefaultPreferences returns the all-enabled defaults for a user with no
// stored preference row.
func DefaultPreferences(userID string) Preferences {
	return Preferences{
		UserID:                   userID,
		Enabled:                  true,
		PostSessionNotesEnabled:  true,
		LongGapAlertsEnabled:     true,
		UnconfirmedEventsEnabled: true,
	}
}

// Allows reports whether the given kind may be delivered to this user.
// The global switch gates everything; three kinds additionally have their
// own switch. Kinds without a dedicated switch are governed by the global
// switch alone.
func (p Preferences) Allows(kind Kind) bool {
	if !p.Enabled {
		return false
	}
	switch kind {
	case KindPostSessionNote:
		return p.PostSessionNotesEnabled
	case KindLongGapAlert:
		return p.LongGapAlertsEnabled
	case KindUnconfirmed24h:
		return p.UnconfirmedEventsEnabled
	default:
		return true
	}
}
