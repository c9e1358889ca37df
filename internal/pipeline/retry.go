package pipeline

import (
	"context"
	"time"
)

// RetryPolicy is a fixed-delay retry budget. MaxAttempts counts the first
// attempt too.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Do calls fn until it succeeds, returns an error retryable rejects, or the
// budget runs out. It returns the number of attempts made and the last error.
func (p RetryPolicy) Do(ctx context.Context, retryable func(error) bool, fn func(attempt int) error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	var err error
	for attempt := 1; ; attempt++ {
		err = fn(attempt)
		if err == nil || !retryable(err) || attempt >= maxAttempts {
			return attempt, err
		}
		if p.Delay <= 0 {
			continue
		}
		timer := time.NewTimer(p.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, err
		case <-timer.C:
		}
	}
}
