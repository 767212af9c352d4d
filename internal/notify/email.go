package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// EmailConfig holds SMTP configuration
type EmailConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
	Subject  string
}

// AddressResolver maps a recipient user id to a deliverable email address.
type AddressResolver func(ctx context.Context, recipientID string) (string, error)

// EmailSender delivers nudges over SMTP.
type EmailSender struct {
	config  EmailConfig
	server  string
	auth    smtp.Auth
	resolve AddressResolver
}

// NewEmailSender creates an SMTP-backed sender.
func NewEmailSender(config EmailConfig, resolve AddressResolver) *EmailSender {
	auth := smtp.PlainAuth("", config.Username, config.Password, config.Host)
	return &EmailSender{
		config:  config,
		server:  config.Host + ":" + config.Port,
		auth:    auth,
		resolve: resolve,
	}
}

// IsConfigured returns true if SMTP delivery is configured
func (s *EmailSender) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

func (s *EmailSender) Send(ctx context.Context, recipientID, message string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	to, err := s.resolve(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("resolve recipient %s: %w", recipientID, err)
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}
	subject := s.config.Subject
	if subject == "" {
		subject = "You have a reminder"
	}

	msg := []byte(fmt.Sprintf(
		"To: %s\r\n"+
			"From: %s\r\n"+
			"Subject: %s\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		strings.Join([]string{to}, ", "),
		from,
		subject,
		message,
	))

	return smtp.SendMail(s.server, s.auth, s.config.From, []string{to}, msg)
}

var _ Sender = (*EmailSender)(nil)
