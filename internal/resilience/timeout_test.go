package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	perrors "github.com/pace-labs/pace-engine/internal/errors"
)

func TestWithTimeout_Completes(t *testing.T) {
	err := WithTimeout(context.Background(), time.Second, func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err)
}

func TestWithTimeout_DeadlineHit(t *testing.T) {
	start := time.Now()
	err := WithTimeout(context.Background(), 10*time.Millisecond, func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	assert.ErrorIs(t, err, perrors.ErrTimeout)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "caller must not block past the budget")
}

func TestWithTimeout_ErrorPassesThrough(t *testing.T) {
	err := WithTimeout(context.Background(), time.Second, func(ctx context.Context) error {
		return perrors.ErrUnavailable
	})
	assert.ErrorIs(t, err, perrors.ErrUnavailable)
}

func TestWithTimeoutValue(t *testing.T) {
	out, err := WithTimeoutValue(context.Background(), time.Second, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 42, out)
}

func TestTimeoutIsRetryable(t *testing.T) {
	err := WithTimeout(context.Background(), time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.True(t, perrors.IsRetryable(err))
}
