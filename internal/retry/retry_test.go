package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fast(attempts int) Policy {
	return Policy{
		MaxAttempts:    attempts,
		BaseDelay:      time.Millisecond,
		MaxDelay:       2 * time.Millisecond,
		AttemptTimeout: time.Second,
	}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := fast(3).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := fast(3).Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	sentinel := errors.New("permanent")
	calls := 0
	err := fast(3).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return sentinel
	})
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped sentinel, got %v", err)
	}
}

func TestDo_AttemptGetsDeadline(t *testing.T) {
	p := fast(1)
	err := p.Do(context.Background(), func(ctx context.Context) error {
		deadline, ok := ctx.Deadline()
		if !ok {
			t.Fatal("expected per-attempt deadline")
		}
		if time.Until(deadline) > p.AttemptTimeout {
			t.Fatalf("deadline beyond attempt timeout: %v", time.Until(deadline))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDo_StopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := fast(5).Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected no retries after cancel, got %d calls", calls)
	}
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = Policy{}.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}
