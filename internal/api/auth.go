package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
)

// Authenticator re-establishes an API session.
type Authenticator interface {
	Login(ctx context.Context) error
}

// WithAutoAuth runs fn and, if it fails with ErrUnauthorized, logs in again and
// retries exactly once. Any other failure is returned as is.
func WithAutoAuth[T any](ctx context.Context, auth Authenticator, fn func(context.Context) (T, error)) (T, error) {
	attempt := 0
	operation := func() (T, error) {
		attempt++
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if attempt > 1 || !errors.Is(err, ErrUnauthorized) {
			return result, backoff.Permanent(err)
		}
		if loginErr := auth.Login(ctx); loginErr != nil {
			return result, backoff.Permanent(fmt.Errorf("re-authentication failed: %w", loginErr))
		}
		return result, err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 1), ctx)
	return backoff.RetryWithData(operation, policy)
}

// CallWithAutoAuth is WithAutoAuth for operations without a result.
func CallWithAutoAuth(ctx context.Context, auth Authenticator, fn func(context.Context) error) error {
	_, err := WithAutoAuth(ctx, auth, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
