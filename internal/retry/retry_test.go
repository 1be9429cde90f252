package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskledger/taskledger/internal/store"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return nil
	}, 3, time.Millisecond)

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("no host available")
		}
		return nil
	}, 3, time.Millisecond)

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsBudgetAndPropagatesLastError(t *testing.T) {
	boom := errors.New("query execution failed")
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return boom
	}, 3, time.Millisecond)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestDoDoesNotRetryNotFound(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return store.ErrTaskNotFound
	}, 5, time.Millisecond)

	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 1, calls)
}

func TestDoAbortsOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, func() error {
			calls++
			return errors.New("still failing")
		}, 100, 50*time.Millisecond)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Less(t, calls, 100)
	case <-time.After(2 * time.Second):
		t.Fatal("retry loop did not abort on cancellation")
	}
}

func TestStoreValueReturnsResult(t *testing.T) {
	got, err := StoreValue(context.Background(), func() (int, error) {
		return 7, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 7, got)
}
