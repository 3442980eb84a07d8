package server

import (
	"context"

	"github.com/onnwee/chat-bridge/chat"
)

// Pinger reports store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Registry is the view of *chat.Registry the handlers need.
type Registry interface {
	Started() bool
	Snapshot() []chat.Info
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	store    Pinger
	registry Registry
}

func NewHandlers(store Pinger, registry Registry) *Handlers {
	return &Handlers{store: store, registry: registry}
}
