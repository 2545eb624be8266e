// Package deadline wraps asynchronous operations with a maximum wait.
//
// A guard that fires does NOT cancel the underlying operation: the operation
// keeps running and its eventual result is discarded. Callers must treat a
// timeout as "outcome unknown", not "operation did not happen".
package deadline

import (
	"context"
	"fmt"
	"time"

	"github.com/convohq/chat-api/internal/utils/platformerrors"
)

type result[T any] struct {
	value T
	err   error
}

// Run executes op and returns its result if it settles within budget,
// otherwise a TIMEOUT PlatformError carrying the operation's label.
//
// op receives the caller's context unchanged; it is not cancelled when the
// guard gives up. The result channel is buffered so the abandoned goroutine
// can still complete and exit.
func Run[T any](ctx context.Context, label string, budget time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	done := make(chan result[T], 1)

	go func() {
		value, err := op(ctx)
		done <- result[T]{value: value, err: err}
	}()

	timer := time.NewTimer(budget)
	defer timer.Stop()

	var zero T
	select {
	case res := <-done:
		return res.value, res.err
	case <-timer.C:
		return zero, timeoutError(ctx, label, budget)
	case <-ctx.Done():
		return zero, platformerrors.NewError(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeTimeout,
			fmt.Sprintf("%s abandoned: request context done", label), ctx.Err(), "")
	}
}

// Do is Run for operations without a result value.
func Do(ctx context.Context, label string, budget time.Duration, op func(ctx context.Context) error) error {
	_, err := Run(ctx, label, budget, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// IsTimeout reports whether err came from a fired guard.
func IsTimeout(err error) bool {
	return platformerrors.IsErrorType(err, platformerrors.ErrorTypeTimeout)
}

func timeoutError(ctx context.Context, label string, budget time.Duration) *platformerrors.PlatformError {
	return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerInfrastructure, platformerrors.ErrorTypeTimeout,
		fmt.Sprintf("%s timed out after %s", label, budget), nil, "",
		map[string]any{"operation": label, "budget_ms": budget.Milliseconds()})
}
