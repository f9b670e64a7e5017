package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var (
	errFlaky = errors.New("flaky")
	errFatal = errors.New("fatal")
)

func classify(err error) Class {
	if errors.Is(err, errFlaky) {
		return Transient
	}
	return Fatal
}

func testPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, Delay: time.Millisecond, Classify: classify}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), testPolicy(3), func(context.Context) error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_FatalIsNotRetried(t *testing.T) {
	calls := 0
	err := Do(context.Background(), testPolicy(5), func(context.Context) error {
		calls++
		return errFatal
	})
	if !errors.Is(err, errFatal) {
		t.Fatalf("err = %v, want errFatal", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	var exhausted *ExhaustedError
	if errors.As(err, &exhausted) {
		t.Error("fatal error should not be reported as exhausted")
	}
}

func TestDo_Exhausted(t *testing.T) {
	calls := 0
	err := Do(context.Background(), testPolicy(4), func(context.Context) error {
		calls++
		return errFlaky
	})
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("err = %v, want *ExhaustedError", err)
	}
	if exhausted.Attempts != 4 || calls != 4 {
		t.Errorf("attempts = %d, calls = %d, want 4/4", exhausted.Attempts, calls)
	}
	if !errors.Is(err, errFlaky) {
		t.Error("exhausted error should unwrap to the last cause")
	}
}

func TestDo_NilClassifierIsFatal(t *testing.T) {
	calls := 0
	_ = Do(context.Background(), Policy{MaxAttempts: 3}, func(context.Context) error {
		calls++
		return errFlaky
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = Do(context.Background(), Policy{Classify: classify}, func(context.Context) error {
		calls++
		return errFlaky
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_CancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 10, Delay: time.Hour, Classify: classify}

	calls := 0
	err := Do(ctx, p, func(context.Context) error {
		calls++
		cancel()
		return errFlaky
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestValue_ReturnsResult(t *testing.T) {
	calls := 0
	got, err := Value(context.Background(), testPolicy(2), func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errFlaky
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if got != "ok" {
		t.Errorf("got %q, want ok", got)
	}
}
