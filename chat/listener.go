package chat

import (
	"context"
	"log/slog"
)

// Listener receives connection events. Implementations must not block.
type Listener interface {
	ReadinessChanged(key Key, ready bool)
	ChannelJoined(key Key, channel Account)
	ChannelParted(key Key, channel Account)
	MessageReceived(key Key, msg Message)
	// CredentialExpired is emitted at most once per revocation episode.
	CredentialExpired(ctx context.Context, key Key, account Account)
}

// Listeners fans events out to every listener in order.
type Listeners []Listener

func (ls Listeners) ReadinessChanged(key Key, ready bool) {
	for _, l := range ls {
		l.ReadinessChanged(key, ready)
	}
}

func (ls Listeners) ChannelJoined(key Key, channel Account) {
	for _, l := range ls {
		l.ChannelJoined(key, channel)
	}
}

func (ls Listeners) ChannelParted(key Key, channel Account) {
	for _, l := range ls {
		l.ChannelParted(key, channel)
	}
}

func (ls Listeners) MessageReceived(key Key, msg Message) {
	for _, l := range ls {
		l.MessageReceived(key, msg)
	}
}

func (ls Listeners) CredentialExpired(ctx context.Context, key Key, account Account) {
	for _, l := range ls {
		l.CredentialExpired(ctx, key, account)
	}
}

// NopListener ignores every event. Embed it to implement a subset.
type NopListener struct{}

func (NopListener) ReadinessChanged(Key, bool)                      {}
func (NopListener) ChannelJoined(Key, Account)                      {}
func (NopListener) ChannelParted(Key, Account)                      {}
func (NopListener) MessageReceived(Key, Message)                    {}
func (NopListener) CredentialExpired(context.Context, Key, Account) {}

// LogListener writes every event to a structured logger.
type LogListener struct {
	Logger *slog.Logger
}

func (l LogListener) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

func (l LogListener) ReadinessChanged(key Key, ready bool) {
	l.logger().Info("chat readiness changed", slog.String("key", key.String()), slog.Bool("ready", ready))
}

func (l LogListener) ChannelJoined(key Key, channel Account) {
	l.logger().Info("chat channel joined", slog.String("key", key.String()), slog.String("channel", channel.Wire()))
}

func (l LogListener) ChannelParted(key Key, channel Account) {
	l.logger().Info("chat channel parted", slog.String("key", key.String()), slog.String("channel", channel.Wire()))
}

func (l LogListener) MessageReceived(key Key, msg Message) {
	l.logger().Debug("chat message",
		slog.String("key", key.String()),
		slog.String("channel", msg.Channel.Wire()),
		slog.String("sender", msg.Sender.Wire()),
		slog.String("text", msg.Text))
}

func (l LogListener) CredentialExpired(_ context.Context, key Key, account Account) {
	l.logger().Warn("chat credential expired", slog.String("key", key.String()), slog.String("account", account.Wire()))
}
