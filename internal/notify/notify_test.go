package notify

import (
	"context"
	"errors"
	"testing"
)

type fakePublisher struct {
	recipient string
	err       error
}

func (p *fakePublisher) PublishNotification(ctx context.Context, recipient, subject, body string) error {
	if p.err != nil {
		return p.err
	}
	p.recipient = recipient
	return nil
}

func TestQueueNotifier_Send(t *testing.T) {
	pub := &fakePublisher{}
	n := NewQueueNotifier(pub)

	if err := n.Send(context.Background(), "owner1", "subject", "body"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if pub.recipient != "owner1" {
		t.Errorf("published recipient = %q, want owner1", pub.recipient)
	}
}

func TestQueueNotifier_PublishError(t *testing.T) {
	wantErr := errors.New("broker down")
	n := NewQueueNotifier(&fakePublisher{err: wantErr})

	if err := n.Send(context.Background(), "owner1", "s", "b"); !errors.Is(err, wantErr) {
		t.Errorf("Send() error = %v, want wrapped %v", err, wantErr)
	}
}

func TestLogNotifier_NeverFails(t *testing.T) {
	if err := NewLogNotifier().Send(context.Background(), "owner1", "s", "b"); err != nil {
		t.Errorf("Send() error = %v, want nil", err)
	}
}
