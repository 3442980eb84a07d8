package chat

import (
	"context"

	"github.com/onnwee/chat-bridge/irc"
)

// Transport is one duplex line-oriented session. *irc.Session implements it.
type Transport interface {
	Send(line string) error
	// Run delivers inbound lines until the session ends, then closes it.
	Run(handle func(line string)) error
	Close() error
	Done() <-chan struct{}
}

// Dialer opens Transports.
type Dialer interface {
	Dial(ctx context.Context) (Transport, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context) (Transport, error)

func (f DialerFunc) Dial(ctx context.Context) (Transport, error) { return f(ctx) }

// IRCDialer dials real Twitch WebSocket sessions.
func IRCDialer(d *irc.Dialer) Dialer {
	return DialerFunc(func(ctx context.Context) (Transport, error) {
		s, err := d.Dial(ctx)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}
