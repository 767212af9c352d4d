package store

import "time"

// Event is a scheduled session between two users.
type Event struct {
	ID        string
	Title     string
	StartAt   time.Time
	EndAt     time.Time
	Status    string // pending | confirmed | declined
	CreatedBy string
}

// EventParticipant is one user's membership and RSVP state on an event.
type EventParticipant struct {
	EventID     string
	UserID      string
	DisplayName string
	Response    string // pending | accepted | declined
	Timezone    string
}

// Task is an assignable to-do with an optional due date.
type Task struct {
	ID         string
	Title      string
	AssigneeID string
	DueAt      *time.Time
	Completed  bool
}

// Conversation tracks the message and session history between a contact
// pair. LastSessionAt is nil until the pair has held a session.
type Conversation struct {
	ID            string
	UserID        string
	PartnerID     string
	PartnerName   string
	LastMessageAt time.Time
	LastSessionAt *time.Time
}
