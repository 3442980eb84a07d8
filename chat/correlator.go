package chat

import (
	"context"
	"sync"
	"time"

	"github.com/onnwee/chat-bridge/irc"
)

// CorrelationKey identifies the confirmation a waiter expects. Scope keeps
// connections that share a Correlator apart; Account and Channel are wire
// logins.
type CorrelationKey struct {
	Scope   string
	Kind    irc.Kind
	Account string
	Channel string
}

// Correlator matches inbound events to callers waiting for them. Waiters
// register before the command is sent so a fast confirmation is never missed.
type Correlator struct {
	mu      sync.Mutex
	waiters map[CorrelationKey]map[*Waiter]struct{}
}

func NewCorrelator() *Correlator {
	return &Correlator{waiters: make(map[CorrelationKey]map[*Waiter]struct{})}
}

// Waiter is a single pending expectation. It is satisfied at most once.
type Waiter struct {
	c   *Correlator
	key CorrelationKey
	ch  chan irc.Event
}

// Expect registers a waiter for key.
func (c *Correlator) Expect(key CorrelationKey) *Waiter {
	w := &Waiter{c: c, key: key, ch: make(chan irc.Event, 1)}
	c.mu.Lock()
	set, ok := c.waiters[key]
	if !ok {
		set = make(map[*Waiter]struct{})
		c.waiters[key] = set
	}
	set[w] = struct{}{}
	c.mu.Unlock()
	return w
}

// Publish hands ev to every waiter registered under key and removes them.
// It returns how many waiters were satisfied.
func (c *Correlator) Publish(key CorrelationKey, ev irc.Event) int {
	c.mu.Lock()
	set := c.waiters[key]
	delete(c.waiters, key)
	c.mu.Unlock()
	for w := range set {
		w.ch <- ev
	}
	return len(set)
}

// Pending reports the number of registered waiters.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, set := range c.waiters {
		n += len(set)
	}
	return n
}

// Wait blocks until the event arrives, timeout elapses, ctx ends, or gone is
// closed. The waiter is removed on every non-matching return.
func (w *Waiter) Wait(ctx context.Context, timeout time.Duration, gone <-chan struct{}) (irc.Event, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case ev := <-w.ch:
		return ev, nil
	case <-t.C:
		w.Cancel()
		select {
		case ev := <-w.ch:
			// published between the timer firing and Cancel
			return ev, nil
		default:
		}
		return irc.Event{}, ErrConfirmationTimeout
	case <-gone:
		w.Cancel()
		return irc.Event{}, ErrTransportClosed
	case <-ctx.Done():
		w.Cancel()
		return irc.Event{}, ctx.Err()
	}
}

// Cancel unregisters the waiter.
func (w *Waiter) Cancel() {
	w.c.mu.Lock()
	defer w.c.mu.Unlock()
	set, ok := w.c.waiters[w.key]
	if !ok {
		return
	}
	delete(set, w)
	if len(set) == 0 {
		delete(w.c.waiters, w.key)
	}
}
