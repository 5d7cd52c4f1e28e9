// Package retry implements the fixed-delay, bounded-attempt send policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/erp/chatbridge/internal/domain/shared"
)

// ErrExhausted is returned when every attempt failed
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy retries an operation up to MaxAttempts times in total, waiting
// Delay between attempts. Fatal adapter errors are not retried.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultPolicy returns three attempts five seconds apart
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Delay: 5 * time.Second}
}

// Notify is called after a failed attempt that will be retried
type Notify func(attempt int, err error, next time.Duration)

// Do runs op until it succeeds, fails fatally, the attempts run out or ctx
// is cancelled. It returns the number of attempts made.
func (p Policy) Do(ctx context.Context, op func(attempt int) error, notify Notify) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(maxAttempts-1)),
		ctx,
	)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		err := op(attempt)
		if err != nil && shared.IsFatal(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, next time.Duration) {
		if notify != nil {
			notify(attempt, err, next)
		}
	})

	switch {
	case err == nil:
		return attempt, nil
	case shared.IsFatal(err), ctx.Err() != nil:
		return attempt, err
	default:
		return attempt, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, err)
	}
}
