package deadline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRun_SettlesBeforeBudget(t *testing.T) {
	got, err := Run(context.Background(), "fast_op", 500*time.Millisecond, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got != 42 {
		t.Errorf("Run() = %v, want 42", got)
	}
}

func TestRun_PropagatesOperationError(t *testing.T) {
	wantErr := errors.New("boom")
	_, err := Run(context.Background(), "failing_op", 500*time.Millisecond, func(ctx context.Context) (int, error) {
		return 0, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("Run() error = %v, want %v", err, wantErr)
	}
	if IsTimeout(err) {
		t.Error("operation error misclassified as timeout")
	}
}

func TestRun_TimesOut(t *testing.T) {
	start := time.Now()
	_, err := Run(context.Background(), "slow_op", 20*time.Millisecond, func(ctx context.Context) (int, error) {
		time.Sleep(5 * time.Second)
		return 1, nil
	})
	if err == nil {
		t.Fatal("Run() expected timeout error")
	}
	if !IsTimeout(err) {
		t.Errorf("IsTimeout() = false for %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Run() blocked for %s, want ~20ms", elapsed)
	}
}

func TestRun_DoesNotCancelUnderlyingOperation(t *testing.T) {
	var completed atomic.Bool
	_, err := Run(context.Background(), "slow_op", 10*time.Millisecond, func(ctx context.Context) (int, error) {
		time.Sleep(50 * time.Millisecond)
		completed.Store(true)
		return 1, nil
	})
	if !IsTimeout(err) {
		t.Fatalf("Run() error = %v, want timeout", err)
	}

	// The abandoned operation keeps running to completion.
	time.Sleep(100 * time.Millisecond)
	if !completed.Load() {
		t.Error("underlying operation was cancelled by the guard")
	}
}

func TestRun_ContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, "any_op", time.Second, func(ctx context.Context) (int, error) {
		time.Sleep(time.Second)
		return 1, nil
	})
	if !IsTimeout(err) {
		t.Errorf("Run() error = %v, want timeout classification", err)
	}
}

func TestDo(t *testing.T) {
	if err := Do(context.Background(), "noop", time.Second, func(ctx context.Context) error {
		return nil
	}); err != nil {
		t.Errorf("Do() error = %v", err)
	}

	err := Do(context.Background(), "slow", 10*time.Millisecond, func(ctx context.Context) error {
		time.Sleep(time.Second)
		return nil
	})
	if !IsTimeout(err) {
		t.Errorf("Do() error = %v, want timeout", err)
	}
}
