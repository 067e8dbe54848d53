// Package retry holds the single retry policy used for outbound calls.
// Every caller goes through Do with a Policy instead of hand-rolling its
// own loop.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds a retried operation: total attempts and the exponential
// delay between them. Jitter comes from the backoff implementation.
type Policy struct {
	MaxAttempts uint64
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

// Do runs op with exponential backoff until it succeeds, the attempts are
// exhausted, or ctx is cancelled. Wrap an error with Permanent to stop
// retrying early.
func Do(ctx context.Context, p Policy, op func() error) error {
	if p.MaxAttempts == 0 {
		p = DefaultPolicy()
	}

	b := backoff.NewExponentialBackOff()
	if p.BaseDelay > 0 {
		b.InitialInterval = p.BaseDelay
	}
	if p.MaxDelay > 0 {
		b.MaxInterval = p.MaxDelay
	}

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, p.MaxAttempts-1), ctx))
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
