// Package retry runs remote operations under a fixed-delay retry policy with
// an explicit transient/fatal classification.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Class is the outcome of classifying a failed attempt.
type Class int

const (
	// Fatal errors are returned immediately.
	Fatal Class = iota
	// Transient errors are retried until attempts are exhausted.
	Transient
)

func (c Class) String() string {
	switch c {
	case Transient:
		return "transient"
	default:
		return "fatal"
	}
}

// Classifier decides whether an error is worth another attempt.
type Classifier func(error) Class

// Policy controls how many times an operation is attempted and how long to
// wait between attempts. The delay is fixed; there is no backoff.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	Classify    Classifier
}

// DefaultPolicy returns a policy of three attempts one second apart that
// treats every error as fatal until a classifier is supplied.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Delay: time.Second}
}

// ExhaustedError is returned when every attempt failed with a transient error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Do runs op until it succeeds, fails fatally, or runs out of attempts.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	_, err := Value(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	classify := p.Classify
	if classify == nil {
		classify = func(error) Class { return Fatal }
	}

	var (
		zero    T
		lastErr error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if classify(err) != Transient {
			return zero, err
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return zero, errors.Join(ctx.Err(), lastErr)
		case <-time.After(p.Delay):
		}
	}
	return zero, &ExhaustedError{Attempts: attempts, Err: lastErr}
}
