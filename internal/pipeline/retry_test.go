package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func TestRetryPolicyStopsAtBudget(t *testing.T) {
	calls := 0
	attempts, err := RetryPolicy{MaxAttempts: 4}.Do(context.Background(), func(error) bool { return true }, func(int) error {
		calls++
		return errFlaky
	})
	require.ErrorIs(t, err, errFlaky)
	require.Equal(t, 4, attempts)
	require.Equal(t, 4, calls)
}

func TestRetryPolicySucceedsLater(t *testing.T) {
	attempts, err := RetryPolicy{MaxAttempts: 5, Delay: time.Millisecond}.Do(context.Background(), func(error) bool { return true }, func(attempt int) error {
		if attempt < 3 {
			return errFlaky
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestRetryPolicyPermanentError(t *testing.T) {
	calls := 0
	attempts, err := RetryPolicy{MaxAttempts: 4}.Do(context.Background(), func(error) bool { return false }, func(int) error {
		calls++
		return errFlaky
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
	require.Equal(t, 1, calls)
}

func TestRetryPolicyHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	attempts, err := RetryPolicy{MaxAttempts: 10, Delay: time.Hour}.Do(ctx, func(error) bool { return true }, func(int) error {
		return errFlaky
	})
	require.ErrorIs(t, err, errFlaky)
	require.Equal(t, 1, attempts)
}
