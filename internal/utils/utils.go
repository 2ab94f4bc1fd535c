package utils

import (
	"context"
	"time"
)

var sleep = time.Sleep

// WaitFor blocks for d or until ctx is done, whichever comes first.
func WaitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sleep(d)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Backoff doubles base for every attempt after the first and caps the result at ceiling.
// A non-positive ceiling means no cap.
func Backoff(base time.Duration, attempt int, ceiling time.Duration) time.Duration {
	if base <= 0 || attempt <= 0 {
		return 0
	}

	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if ceiling > 0 && d >= ceiling {
			return ceiling
		}
	}

	if ceiling > 0 && d > ceiling {
		return ceiling
	}
	return d
}
