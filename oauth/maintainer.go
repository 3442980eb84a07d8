// Package oauth keeps stored chat credentials honest between connection
// attempts. A jittered sweep validates every stored token and raises the
// once-per-episode expiry notice for tokens Twitch no longer accepts.
package oauth

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/onnwee/chat-bridge/chat"
)

// Notifier raises an expiry notice; *chat.ExpiryNotifier implements it.
type Notifier interface {
	Notify(ctx context.Context, key chat.Key, account chat.Account) (bool, error)
}

// Maintainer validates stored credentials.
type Maintainer struct {
	Store    chat.Store
	Gate     chat.CredentialGate
	Notifier Notifier
	Scopes   []string
	// Timeout bounds a single validation call; default 15s.
	Timeout time.Duration
	Logger  *slog.Logger
}

// SweepResult counts outcomes of one sweep.
type SweepResult struct {
	Checked       int
	Invalid       int
	Notified      int
	Indeterminate int
}

// Sweep validates every stored credential once. Invalid credentials get an
// expiry notice (suppressed when one was already sent); records whose
// validation is indeterminate are skipped until the next sweep.
func (m *Maintainer) Sweep(ctx context.Context) (SweepResult, error) {
	log := m.Logger
	if log == nil {
		log = slog.Default()
	}
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	recs, err := m.Store.List(ctx)
	if err != nil {
		return SweepResult{}, err
	}
	var res SweepResult
	for _, rec := range recs {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Checked++
		vctx, cancel := context.WithTimeout(ctx, timeout)
		validity, err := m.Gate.Validate(vctx, rec.Account(), rec.AccessToken, m.Scopes)
		cancel()

		switch validity {
		case chat.Valid:
		case chat.Invalid:
			res.Invalid++
			sent, err := m.Notifier.Notify(ctx, rec.Key(), rec.Account())
			if err != nil {
				log.Warn("expiry notice failed", slog.String("key", rec.Key().String()), slog.Any("err", err))
				continue
			}
			if sent {
				res.Notified++
			}
		default:
			res.Indeterminate++
			log.Debug("token validation indeterminate", slog.String("key", rec.Key().String()), slog.Any("err", err))
		}
	}
	return res, nil
}

// StartValidator runs Sweep every interval (±20% jitter) until ctx is done.
// The first sweep waits a random fraction of half an interval so that
// replicas spread their load.
func StartValidator(ctx context.Context, m *Maintainer, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	log := m.Logger
	if log == nil {
		log = slog.Default()
	}
	//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
	initialJitter := time.Duration(rand.Int63n(int64(interval/2) + 1))
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(initialJitter):
		}
		for {
			res, err := m.Sweep(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warn("token sweep failed", slog.Any("err", err))
			} else {
				log.Info("token sweep complete",
					slog.Int("checked", res.Checked),
					slog.Int("invalid", res.Invalid),
					slog.Int("notified", res.Notified),
					slog.Int("indeterminate", res.Indeterminate))
			}

			jitterRange := int64(interval / 5)
			//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
			jitter := time.Duration(rand.Int63n(jitterRange*2+1) - jitterRange)
			select {
			case <-ctx.Done():
				return
			case <-time.After(interval + jitter):
			}
		}
	}()
}
