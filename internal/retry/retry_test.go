package retry

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestDoSucceedsAfterRetries(t *testing.T) {
	attempts := 0
	res := Do(context.Background(), Config{MaxAttempts: 3, InitialDelay: time.Millisecond}, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if res.Err != nil {
		t.Fatalf("Do() err = %v, want nil", res.Err)
	}
	if res.Attempts != 3 {
		t.Fatalf("Attempts = %d, want 3", res.Attempts)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	attempts := 0
	wantErr := errors.New("denied")
	res := Do(context.Background(), Config{MaxAttempts: 5, InitialDelay: time.Millisecond}, func() error {
		attempts++
		return Permanent(wantErr)
	})
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (permanent error must not retry)", attempts)
	}
	if !IsPermanent(res.Err) {
		t.Fatalf("res.Err = %v, want a PermanentError", res.Err)
	}
}

func TestDoCustomClassifierOverridesIsPermanent(t *testing.T) {
	attempts := 0
	res := Do(context.Background(), Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		Retryable:    func(err error) bool { return err.Error() == "retry-me" },
	}, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("retry-me")
		}
		return errors.New("give-up")
	})
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
	if res.Err == nil || res.Err.Error() != "give-up" {
		t.Fatalf("res.Err = %v, want classifier to stop retrying on give-up", res.Err)
	}
}

func TestDoInvokesOnRetryBeforeEachRetryButNotAfterFinalAttempt(t *testing.T) {
	var calls []int
	Do(context.Background(), Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		OnRetry:      func(attempt int, err error, delay time.Duration) { calls = append(calls, attempt) },
	}, func() error {
		return errors.New("always fails")
	})
	if len(calls) != 2 {
		t.Fatalf("OnRetry called %d times, want 2 (not after the final, exhausting attempt)", len(calls))
	}
	if calls[0] != 1 || calls[1] != 2 {
		t.Fatalf("OnRetry attempts = %v, want [1 2]", calls)
	}
}

func TestDoCancelledContextStopsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	res := Do(ctx, Config{MaxAttempts: 5, InitialDelay: time.Millisecond}, func() error {
		calls++
		return nil
	})
	if calls != 0 {
		t.Fatalf("op called %d times on an already-cancelled context, want 0", calls)
	}
	if !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("res.Err = %v, want context.Canceled", res.Err)
	}
}

func TestDoWithValueReturnsOpResult(t *testing.T) {
	attempts := 0
	value, res := DoWithValue(context.Background(), Config{MaxAttempts: 3, InitialDelay: time.Millisecond}, func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("not yet")
		}
		return "ok", nil
	})
	if res.Err != nil {
		t.Fatalf("DoWithValue() err = %v, want nil", res.Err)
	}
	if value != "ok" {
		t.Fatalf("value = %q, want %q", value, "ok")
	}
}

func TestBackoffIsExponentialAndCapped(t *testing.T) {
	if got := Backoff(1, 10*time.Millisecond, time.Second, 2.0); got != 10*time.Millisecond {
		t.Fatalf("Backoff(1) = %v, want 10ms", got)
	}
	if got := Backoff(4, 10*time.Millisecond, 50*time.Millisecond, 2.0); got != 50*time.Millisecond {
		t.Fatalf("Backoff(4) = %v, want capped at 50ms", got)
	}
}

func TestBackoffWithJitterStaysWithinRange(t *testing.T) {
	base := Backoff(2, 100*time.Millisecond, time.Second, 2.0)
	for i := 0; i < 20; i++ {
		got := BackoffWithJitter(2, 100*time.Millisecond, time.Second, 2.0)
		if got < base/2 || got > base+base/2 {
			t.Fatalf("BackoffWithJitter = %v, want within [%v, %v]", got, base/2, base+base/2)
		}
	}
}

func TestDoLogsFailedAttempts(t *testing.T) {
	var buf []byte
	logger := slog.New(slog.NewTextHandler(writerFunc(func(p []byte) (int, error) {
		buf = append(buf, p...)
		return len(p), nil
	}), nil))

	Do(context.Background(), Config{MaxAttempts: 2, InitialDelay: time.Millisecond, Logger: logger}, func() error {
		return errors.New("boom")
	})

	if len(buf) == 0 {
		t.Fatal("expected retry logger to receive at least one record")
	}
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
