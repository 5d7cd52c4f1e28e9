package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/chatbridge/internal/domain/shared"
)

var errSend = errors.New("send button not found")

func TestPolicy_Do(t *testing.T) {
	policy := Policy{MaxAttempts: 3, Delay: time.Millisecond}

	t.Run("first attempt succeeds", func(t *testing.T) {
		attempts, err := policy.Do(context.Background(), func(int) error { return nil }, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("succeeds after transient failures", func(t *testing.T) {
		var notified []int
		attempts, err := policy.Do(context.Background(), func(attempt int) error {
			if attempt < 3 {
				return shared.Transient(errSend)
			}
			return nil
		}, func(attempt int, err error, next time.Duration) {
			notified = append(notified, attempt)
			assert.Equal(t, time.Millisecond, next)
		})
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
		assert.Equal(t, []int{1, 2}, notified)
	})

	t.Run("exhausts after max attempts", func(t *testing.T) {
		calls := 0
		attempts, err := policy.Do(context.Background(), func(int) error {
			calls++
			return shared.Transient(errSend)
		}, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrExhausted)
		assert.ErrorIs(t, err, shared.ErrTransientAdapter)
		assert.Equal(t, 3, attempts)
		assert.Equal(t, 3, calls)
	})

	t.Run("fatal error stops immediately", func(t *testing.T) {
		calls := 0
		attempts, err := policy.Do(context.Background(), func(int) error {
			calls++
			return shared.Fatal(errors.New("browser closed"))
		}, nil)
		require.Error(t, err)
		assert.True(t, shared.IsFatal(err))
		assert.NotErrorIs(t, err, ErrExhausted)
		assert.Equal(t, 1, attempts)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled context stops waiting", func(t *testing.T) {
		slow := Policy{MaxAttempts: 5, Delay: time.Hour}
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		attempts, err := slow.Do(ctx, func(int) error { return errSend }, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, attempts)
	})

	t.Run("zero attempts means one", func(t *testing.T) {
		attempts, err := Policy{}.Do(context.Background(), func(int) error { return errSend }, nil)
		assert.ErrorIs(t, err, ErrExhausted)
		assert.Equal(t, 1, attempts)
	})
}
