package chat_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/onnwee/chat-bridge/chat"
	"github.com/onnwee/chat-bridge/chat/mocks"
	"github.com/onnwee/chat-bridge/testutil"
)

var fastConfig = chat.ConnConfig{
	ConfirmTimeout: 100 * time.Millisecond,
	WelcomeTimeout: 100 * time.Millisecond,
	JoinPause:      time.Millisecond,
	BackoffUnit:    time.Millisecond,
	Scopes:         []string{"chat:read", "chat:edit"},
}

const eventually = 2 * time.Second

func channelAccounts(n int) []chat.Account {
	out := make([]chat.Account, n)
	for i := range out {
		out[i] = chat.Account{ID: fmt.Sprintf("%d", 100+i), Login: fmt.Sprintf("chan%d", i)}
	}
	return out
}

func ids(accounts []chat.Account) []string {
	out := make([]string, len(accounts))
	for i, a := range accounts {
		out[i] = a.ID
	}
	return out
}

func record(tenant, accountID, login string, channels []chat.Account) chat.Record {
	return chat.Record{
		Tenant:         tenant,
		AccountID:      accountID,
		Username:       login,
		AccessToken:    "tok-" + login,
		JoinedChannels: ids(channels),
	}
}

// recorder captures listener events.
type recorder struct {
	chat.NopListener

	mu      sync.Mutex
	expired []chat.Key
	ready   []bool
	joined  []string
	parted  []string
	msgs    []chat.Message
}

func (r *recorder) ReadinessChanged(_ chat.Key, ready bool) {
	r.mu.Lock()
	r.ready = append(r.ready, ready)
	r.mu.Unlock()
}

func (r *recorder) ChannelJoined(_ chat.Key, ch chat.Account) {
	r.mu.Lock()
	r.joined = append(r.joined, ch.Wire())
	r.mu.Unlock()
}

func (r *recorder) ChannelParted(_ chat.Key, ch chat.Account) {
	r.mu.Lock()
	r.parted = append(r.parted, ch.Wire())
	r.mu.Unlock()
}

func (r *recorder) MessageReceived(_ chat.Key, msg chat.Message) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func (r *recorder) messages() []chat.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]chat.Message(nil), r.msgs...)
}

func (r *recorder) CredentialExpired(_ context.Context, key chat.Key, _ chat.Account) {
	r.mu.Lock()
	r.expired = append(r.expired, key)
	r.mu.Unlock()
}

func (r *recorder) expiredCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.expired)
}

// resolverFor answers lookups from a fixed id → login table.
func resolverFor(ctrl *gomock.Controller, accounts ...chat.Account) *mocks.MockAccountResolver {
	table := make(map[string]chat.Account, len(accounts))
	for _, a := range accounts {
		table[a.ID] = a
	}
	r := mocks.NewMockAccountResolver(ctrl)
	r.EXPECT().ResolveAccounts(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, ids []string) ([]chat.Account, error) {
			var out []chat.Account
			for _, id := range ids {
				if a, ok := table[id]; ok {
					out = append(out, a)
				}
			}
			return out, nil
		}).AnyTimes()
	return r
}

func startConn(t *testing.T, opts chat.Options) *chat.Conn {
	t.Helper()
	if opts.Config.ConfirmTimeout == 0 {
		opts.Config = fastConfig
	}
	c := chat.NewConn(opts)
	c.Start()
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitReady(t *testing.T, c *chat.Conn) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), eventually)
	defer cancel()
	if err := c.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady: %v (state %s)", err, c.State())
	}
}

var _ chat.Dialer = (*testutil.FakeTwitch)(nil)
