package deprivation

import (
	"context"
	"time"
)

// SetSleep replaces the loader's wait function.
func (l *Loader) SetSleep(fn func(ctx context.Context, d time.Duration) error) {
	l.sleep = fn
}

func (l *Loader) Backoff(attempt int) time.Duration {
	return l.backoff(attempt)
}
