// Package retry runs a fallible operation a bounded number of times with
// exponential backoff between attempts and a deadline per attempt.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	goretry "github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
)

// ErrInvalidPolicy is returned when a policy allows no attempts at all.
var ErrInvalidPolicy = errors.New("retry: max attempts must be positive")

// Policy bounds how an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of invocations, including the first.
	MaxAttempts int
	// InitialBackoff is the delay before the second attempt. It doubles for
	// each further attempt. Zero retries immediately.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between attempts. Zero means uncapped.
	MaxBackoff time.Duration
	// AttemptTimeout bounds a single invocation. Zero means only the
	// caller's context applies.
	AttemptTimeout time.Duration
}

// DefaultPolicy mirrors the classifier retry budget: three attempts.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		AttemptTimeout: 30 * time.Second,
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so that Do returns it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var perr *permanentError
	return errors.As(err, &perr)
}

// Do invokes action until it succeeds, returns a permanent error, or the
// policy's attempts are used up. The last error is returned unchanged. When
// ctx is done no further attempt starts and ctx.Err() is returned.
func Do[T any](ctx context.Context, policy Policy, name string, action func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if policy.MaxAttempts <= 0 {
		return zero, fmt.Errorf("%w (got %d)", ErrInvalidPolicy, policy.MaxAttempts)
	}

	var (
		result  T
		attempt int
	)
	err := goretry.Do(ctx, policy.backoff(), func(ctx context.Context) error {
		attempt++
		attemptCtx, cancel := policy.attemptContext(ctx)
		defer cancel()

		value, err := action(attemptCtx)
		if err == nil {
			result = value
			return nil
		}

		entry := logrus.WithError(err).WithFields(logrus.Fields{
			"operation":    name,
			"attempt":      attempt,
			"max_attempts": policy.MaxAttempts,
		})
		switch {
		case IsPermanent(err):
			entry.Warn("operation failed permanently")
			return err
		case ctx.Err() != nil:
			entry.Warn("operation aborted")
			return ctx.Err()
		case attempt >= policy.MaxAttempts:
			entry.Error("operation failed, giving up")
			return err
		}
		entry.Warn("operation failed, retrying")
		return goretry.RetryableError(err)
	})
	if err != nil {
		if perr, ok := err.(*permanentError); ok {
			return zero, perr.err
		}
		return zero, err
	}
	return result, nil
}

func (p Policy) backoff() goretry.Backoff {
	if p.InitialBackoff <= 0 {
		return goretry.BackoffFunc(func() (time.Duration, bool) {
			return 0, false
		})
	}
	b := goretry.NewExponential(p.InitialBackoff)
	if p.MaxBackoff > 0 {
		b = goretry.WithCappedDuration(p.MaxBackoff, b)
	}
	return goretry.WithJitterPercent(10, b)
}

func (p Policy) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.AttemptTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.AttemptTimeout)
}
