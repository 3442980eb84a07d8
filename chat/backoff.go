package chat

import (
	"context"
	"time"
)

// MaxBackoff is the delay used once the doubling schedule passes 128s.
const MaxBackoff = 120 * time.Second

// BackoffDelay returns the wait before the next connect attempt after
// failures consecutive failed attempts: 2^n seconds while that is at most
// 128s, MaxBackoff afterwards. The sequence is 1, 2, 4, ..., 64, 128, 120, 120.
func BackoffDelay(failures int) time.Duration {
	if failures < 0 {
		failures = 0
	}
	if failures > 7 {
		return MaxBackoff
	}
	return time.Duration(1<<failures) * time.Second
}

// backoff counts consecutive failed attempts of one connection.
type backoff struct {
	failures int
	// scale shortens delays in tests; 0 means real seconds.
	scale time.Duration
}

// next returns the delay for the current failure count and advances it.
func (b *backoff) next() time.Duration {
	d := BackoffDelay(b.failures)
	b.failures++
	if b.scale > 0 {
		d = d / time.Second * b.scale
	}
	return d
}

func (b *backoff) reset() { b.failures = 0 }

// sleepContext waits for d or until ctx is done. It reports whether the full
// delay elapsed.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
