package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Sender delivers a plain-text email. Implementations block until the
// message has been handed off.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Message is the queued form of an email.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// LogSender writes messages to the log instead of delivering them. Used in
// development.
type LogSender struct {
	logger *logrus.Logger
}

func NewLogSender(logger *logrus.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, to, subject, body string) error {
	s.logger.WithFields(logrus.Fields{
		"to":      to,
		"subject": subject,
		"body":    body,
	}).Info("Email (logged for development)")
	return nil
}
