// Package notify defines the notification sender boundary. The engine only
// knows Send succeeds or fails; whether the message travels by email, push,
// or in-app is the implementation's business.
package notify

import "context"

// Sender delivers one rendered message to one recipient.
type Sender interface {
	Send(ctx context.Context, recipientID, message string) error
}
