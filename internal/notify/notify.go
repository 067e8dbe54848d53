// Package notify delivers outbound user notifications. Producers hand a
// recipient, subject, and body to a Notifier; the wiring decides whether
// that means an SMTP delivery, an AMQP hand-off to the notification queue,
// or a log line in development.
package notify

import (
	"context"
	"log/slog"
)

// Notifier sends one notification. Recipient is the owner's address as
// known to the external auth provider.
type Notifier interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// LogNotifier writes notifications to the log instead of delivering them.
// Used in development and as the fallback when no SMTP is configured.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, recipient, subject, body string) error {
	slog.InfoContext(ctx, "Notification (log only)",
		"recipient", recipient,
		"subject", subject,
		"body_length", len(body))
	return nil
}
