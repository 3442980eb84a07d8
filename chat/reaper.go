package chat

import (
	"context"
	"log/slog"
	"time"
)

// ReapIdle closes every connection whose last Join, Part or Send is older
// than idle. It returns the keys it closed.
func (r *Registry) ReapIdle(now time.Time, idle time.Duration) []Key {
	var reaped []Key
	for _, c := range r.Connections() {
		if now.Sub(c.LastActivity()) < idle {
			continue
		}
		if err := r.Remove(c.Key()); err != nil {
			r.log.Warn("idle close failed", slog.String("key", c.Key().String()), slog.Any("err", err))
			continue
		}
		r.log.Info("closed idle chat connection",
			slog.String("key", c.Key().String()),
			slog.Time("last_activity", c.LastActivity()))
		reaped = append(reaped, c.Key())
	}
	return reaped
}

// StartIdleReaper runs ReapIdle every interval until ctx is cancelled. It
// does nothing when idle is zero.
func StartIdleReaper(ctx context.Context, r *Registry, idle, interval time.Duration) {
	if idle <= 0 {
		slog.Info("idle reaper disabled")
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		slog.Info("idle reaper started", slog.Duration("idle", idle), slog.Duration("interval", interval))
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				r.ReapIdle(now, idle)
			}
		}
	}()
}
