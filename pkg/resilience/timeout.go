package resilience

import (
	"context"
	"fmt"
	"time"
)

// WithTimeout bounds fn by timeout even when fn ignores its context. A zero
// timeout runs fn directly. fn keeps running in the background after a
// timeout, so it must not touch caller state it does not own.
func WithTimeout(ctx context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if cause := context.Cause(ctx); cause != context.DeadlineExceeded {
			return fmt.Errorf("%s: %w", name, cause)
		}
		return fmt.Errorf("%s: timed out after %v: %w", name, timeout, context.DeadlineExceeded)
	}
}
