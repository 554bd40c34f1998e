package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	perrors "github.com/pace-labs/pace-engine/internal/errors"
)

// WithTimeout runs fn under a context deadline. A deadline hit surfaces as
// ErrTimeout so the retry layer can classify it; the caller is never blocked
// past the budget because fn receives the bounded context.
func WithTimeout(ctx context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	err := fn(tctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("after %s: %w", d, perrors.ErrTimeout)
	}
	return err
}

// WithTimeoutValue is WithTimeout for functions that return a value.
func WithTimeoutValue[T any](ctx context.Context, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := WithTimeout(ctx, d, func(ctx context.Context) error {
		var ferr error
		out, ferr = fn(ctx)
		return ferr
	})
	return out, err
}
