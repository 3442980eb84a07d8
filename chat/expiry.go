package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/onnwee/chat-bridge/telemetry"
)

// ExpiryNotifier emits credential-expired notices, at most one per
// revocation episode. The episode is tracked by the stored ExpiryNotified
// flag, so it survives restarts; UpdateToken clears it.
type ExpiryNotifier struct {
	store    Store
	listener Listener

	mu sync.Mutex
}

func NewExpiryNotifier(store Store, listener Listener) *ExpiryNotifier {
	if listener == nil {
		listener = NopListener{}
	}
	return &ExpiryNotifier{store: store, listener: listener}
}

// Notify emits a notice for key unless one was already sent in this episode.
// It reports whether a notice was emitted.
func (n *ExpiryNotifier) Notify(ctx context.Context, key Key, account Account) (bool, error) {
	sent, err := n.claim(ctx, key)
	if !sent || err != nil {
		return false, err
	}
	telemetry.Inc(telemetry.CredentialExpired)
	n.listener.CredentialExpired(ctx, key, account)
	return true, nil
}

// claim sets the episode flag and reports whether this caller owns the
// notice. Delivery happens outside the lock.
func (n *ExpiryNotifier) claim(ctx context.Context, key Key) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	rec, err := n.store.Load(ctx, key)
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if rec.ExpiryNotified {
		slog.Debug("expiry notice suppressed", slog.String("key", key.String()))
		return false, nil
	}
	// flag first: a notice that cannot be recorded would repeat forever
	if err := n.store.SetExpiryNotified(ctx, key, true); err != nil {
		return false, fmt.Errorf("mark %s notified: %w", key, err)
	}
	return true, nil
}
