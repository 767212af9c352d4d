package notify

import (
	"context"
	"log"
)

// LogSender writes notifications to the process log. Used in deployments
// without a configured delivery channel and as the development default.
type LogSender struct{}

func NewLogSender() *LogSender {
	return &LogSender{}
}

func (s *LogSender) Send(_ context.Context, recipientID, message string) error {
	log.Printf("notify %s: %s", recipientID, message)
	return nil
}

var _ Sender = (*LogSender)(nil)
