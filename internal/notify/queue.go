package notify

import (
	"context"
	"fmt"
)

// NotificationPublisher is the slice of the message client the queue
// notifier needs.
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, recipient, subject, body string) error
}

// QueueNotifier hands notifications to the message queue instead of
// delivering them inline. The alerts worker's consumer performs the actual
// delivery, so producers never block on SMTP.
type QueueNotifier struct {
	publisher NotificationPublisher
}

func NewQueueNotifier(publisher NotificationPublisher) *QueueNotifier {
	return &QueueNotifier{publisher: publisher}
}

func (n *QueueNotifier) Send(ctx context.Context, recipient, subject, body string) error {
	if err := n.publisher.PublishNotification(ctx, recipient, subject, body); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}
