// Package retry wraps fallible operations in a bounded, fixed-backoff
// retry loop. One executor serves every caller; only the attempt budget
// differs between target classes (storage calls get a short budget,
// external REST collaborators a longer one).
package retry

import (
	"context"
	"errors"
	"time"

	retrygo "github.com/avast/retry-go"

	"github.com/taskledger/taskledger/internal/store"
)

// Default budgets per target class of operation.
const (
	// StoreAttempts is the attempt budget for backing-store calls.
	StoreAttempts = 3
	// StoreDelay is the fixed delay between store attempts.
	StoreDelay = 1 * time.Second

	// RestAttempts is the attempt budget for external REST collaborators.
	RestAttempts = 8
	// RestDelay is the fixed delay between REST attempts.
	RestDelay = 5 * time.Second
)

// Do invokes op, retrying on any error with a fixed delay between
// attempts until the budget is exhausted. The last error is propagated to
// the caller unchanged. Absence (store.ErrNotFound) is an expected outcome,
// not a transient fault, and is returned without retrying. Cancelling ctx
// while waiting between attempts aborts the loop with the context's error.
func Do(ctx context.Context, op func() error, maxAttempts uint, delay time.Duration) error {
	return retrygo.Do(op,
		retrygo.Context(ctx),
		retrygo.Attempts(maxAttempts),
		retrygo.Delay(delay),
		retrygo.DelayType(retrygo.FixedDelay),
		retrygo.LastErrorOnly(true),
		retrygo.RetryIf(func(err error) bool {
			return !errors.Is(err, store.ErrNotFound)
		}),
	)
}

// DoStore runs op with the store attempt budget.
func DoStore(ctx context.Context, op func() error) error {
	return Do(ctx, op, StoreAttempts, StoreDelay)
}

// DoRest runs op with the REST collaborator attempt budget.
func DoRest(ctx context.Context, op func() error) error {
	return Do(ctx, op, RestAttempts, RestDelay)
}

// Value runs op with the given budget and returns its result, retrying on
// error like Do. The operation's failure type reaches the caller intact
// through the unchanged last error.
func Value[T any](ctx context.Context, op func() (T, error), maxAttempts uint, delay time.Duration) (T, error) {
	var result T
	err := Do(ctx, func() error {
		var opErr error
		result, opErr = op()
		return opErr
	}, maxAttempts, delay)
	return result, err
}

// StoreValue runs op with the store attempt budget and returns its result.
func StoreValue[T any](ctx context.Context, op func() (T, error)) (T, error) {
	return Value(ctx, op, StoreAttempts, StoreDelay)
}
