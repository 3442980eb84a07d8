package chat_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/onnwee/chat-bridge/chat"
	"github.com/onnwee/chat-bridge/chat/mocks"
	"github.com/onnwee/chat-bridge/testutil"
)

type registryFixture struct {
	reg      *chat.Registry
	store    *chat.MemoryStore
	twitch   *testutil.FakeTwitch
	gate     *mocks.MockCredentialGate
	listener *recorder
}

func newRegistryFixture(t *testing.T, recs []chat.Record, accounts ...chat.Account) *registryFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &registryFixture{
		store:    chat.NewMemoryStore(recs...),
		twitch:   testutil.NewFakeTwitch(),
		gate:     mocks.NewMockCredentialGate(ctrl),
		listener: &recorder{},
	}
	for _, r := range recs {
		accounts = append(accounts, r.Account())
	}
	f.reg = chat.NewRegistry(chat.RegistryConfig{
		Store:              f.store,
		Gate:               f.gate,
		Resolver:           resolverFor(ctrl, accounts...),
		Dialer:             f.twitch,
		Listener:           f.listener,
		Conn:               fastConfig,
		StartupConcurrency: 2,
		StartupPacing:      time.Millisecond,
	})
	t.Cleanup(func() { _ = f.reg.CloseAll(context.Background()) })
	return f
}

func TestRegistryGetOrCreateSingleFlight(t *testing.T) {
	req := require.New(t)
	channels := channelAccounts(2)
	rec := record("guild", "1", "bot", channels)
	f := newRegistryFixture(t, []chat.Record{rec}, channels...)
	f.gate.EXPECT().Validate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(chat.Valid, nil).Times(1)

	const callers = 32
	var wg sync.WaitGroup
	conns := make([]*chat.Conn, callers)
	errs := make([]error, callers)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			conns[i], errs[i] = f.reg.GetOrCreate(context.Background(), rec.Key())
		}(i)
	}
	close(start)
	wg.Wait()

	for i := range conns {
		req.NoError(errs[i])
		req.Same(conns[0], conns[i])
	}
	waitReady(t, conns[0])
	req.Equal(1, f.twitch.Dials())
	req.Len(f.reg.Connections(), 1)
	req.Equal(ids(channels), ids(conns[0].Channels()))
}

func TestRegistryNotSetUp(t *testing.T) {
	req := require.New(t)
	f := newRegistryFixture(t, nil)
	_, err := f.reg.GetOrCreate(context.Background(), chat.Key{Tenant: "guild", AccountID: "404"})
	req.ErrorIs(err, chat.ErrNotSetUp)
	req.Equal(chat.ClassNotSetUp, chat.Classify(err))

	_, err = f.reg.Get(chat.Key{Tenant: "guild", AccountID: "404"})
	req.ErrorIs(err, chat.ErrNotFound)
}

func TestRegistryInvalidCredentialFailsFast(t *testing.T) {
	req := require.New(t)
	rec := record("guild", "1", "bot", nil)
	f := newRegistryFixture(t, []chat.Record{rec})
	f.gate.EXPECT().Validate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(chat.Invalid, nil).Times(2)

	for i := 0; i < 2; i++ {
		_, err := f.reg.GetOrCreate(context.Background(), rec.Key())
		req.ErrorIs(err, chat.ErrCredentialInvalid)
	}
	req.Zero(f.twitch.Dials(), "must not reach the connect loop")
	req.Empty(f.reg.Connections())
	req.Equal(1, f.listener.expiredCount())

	stored, err := f.store.Load(context.Background(), rec.Key())
	req.NoError(err)
	req.True(stored.ExpiryNotified)
}

func TestRegistryIndeterminateCredentialStillCreates(t *testing.T) {
	req := require.New(t)
	rec := record("guild", "1", "bot", nil)
	f := newRegistryFixture(t, []chat.Record{rec})
	f.gate.EXPECT().Validate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(chat.Indeterminate, nil).Times(1)
	f.gate.EXPECT().Validate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(chat.Valid, nil).AnyTimes()

	c, err := f.reg.GetOrCreate(context.Background(), rec.Key())
	req.NoError(err)
	waitReady(t, c)
}

func TestRegistryRemoveIsIdempotent(t *testing.T) {
	req := require.New(t)
	rec := record("guild", "1", "bot", nil)
	f := newRegistryFixture(t, []chat.Record{rec})
	f.gate.EXPECT().Validate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(chat.Valid, nil).AnyTimes()

	c, err := f.reg.GetOrCreate(context.Background(), rec.Key())
	req.NoError(err)
	waitReady(t, c)

	req.NoError(f.reg.Remove(rec.Key()))
	req.NoError(f.reg.Remove(rec.Key()))
	_, err = f.reg.Get(rec.Key())
	req.ErrorIs(err, chat.ErrNotFound)
	req.Equal(chat.StateClosed, c.State())

	// a fresh connection replaces the removed one
	c2, err := f.reg.GetOrCreate(context.Background(), rec.Key())
	req.NoError(err)
	req.NotSame(c, c2)
}

func TestRegistryClosedConnectionIsForgotten(t *testing.T) {
	req := require.New(t)
	rec := record("guild", "1", "bot", nil)
	f := newRegistryFixture(t, []chat.Record{rec})
	f.gate.EXPECT().Validate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(chat.Valid, nil).AnyTimes()

	c, err := f.reg.GetOrCreate(context.Background(), rec.Key())
	req.NoError(err)
	req.NoError(c.Close())
	_, err = f.reg.Get(rec.Key())
	req.ErrorIs(err, chat.ErrNotFound)
}

func TestRegistryAbortedConnectionIsForgotten(t *testing.T) {
	req := require.New(t)
	rec := record("guild", "1", "bot", nil)
	f := newRegistryFixture(t, []chat.Record{rec})
	f.gate.EXPECT().Validate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(chat.Valid, nil).Times(1)
	f.gate.EXPECT().Validate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(chat.Invalid, nil).AnyTimes()

	c, err := f.reg.GetOrCreate(context.Background(), rec.Key())
	req.NoError(err)
	waitReady(t, c)

	_ = f.twitch.Session().Close()
	<-c.Done()
	req.Equal(chat.StateAborted, c.State())
	_, err = f.reg.Get(rec.Key())
	req.ErrorIs(err, chat.ErrNotFound)
	req.Equal(1, f.listener.expiredCount())
}

func TestRegistryRefreshesUsername(t *testing.T) {
	req := require.New(t)
	rec := record("guild", "1", "oldname", nil)
	ctrl := gomock.NewController(t)
	store := chat.NewMemoryStore(rec)
	reg := chat.NewRegistry(chat.RegistryConfig{
		Store:    store,
		Resolver: resolverFor(ctrl, chat.Account{ID: "1", Login: "newname"}),
		Dialer:   testutil.NewFakeTwitch(),
		Conn:     fastConfig,
	})
	t.Cleanup(func() { _ = reg.CloseAll(context.Background()) })

	c, err := reg.GetOrCreate(context.Background(), rec.Key())
	req.NoError(err)
	req.Equal("newname", c.Account().Wire())
	stored, err := store.Load(context.Background(), rec.Key())
	req.NoError(err)
	req.Equal("newname", stored.Username)
	waitReady(t, c)
}

func TestRegistryStartAllAndCloseAll(t *testing.T) {
	req := require.New(t)
	good1 := record("guild", "1", "one", nil)
	good2 := record("guild", "2", "two", channelAccounts(1))
	bad := record("other", "3", "three", nil)
	f := newRegistryFixture(t, []chat.Record{good1, good2, bad}, channelAccounts(1)...)
	f.gate.EXPECT().Validate(gomock.Any(), gomock.Any(), "tok-three", gomock.Any()).Return(chat.Invalid, nil).AnyTimes()
	f.gate.EXPECT().Validate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(chat.Valid, nil).AnyTimes()

	req.False(f.reg.Started())
	started, err := f.reg.StartAll(context.Background())
	req.NoError(err)
	req.Equal(2, started)
	req.True(f.reg.Started())
	req.Equal(1, f.listener.expiredCount())

	conns := f.reg.Connections()
	req.Len(conns, 2)
	for _, c := range conns {
		waitReady(t, c)
	}
	snap := f.reg.Snapshot()
	req.Len(snap, 2)
	req.Equal("guild", snap[0].Tenant)

	req.NoError(f.reg.CloseAll(context.Background()))
	req.Empty(f.reg.Connections())
	for _, c := range conns {
		req.Equal(chat.StateClosed, c.State())
	}
}

func TestRegistryReapIdle(t *testing.T) {
	req := require.New(t)
	rec := record("guild", "1", "bot", nil)
	f := newRegistryFixture(t, []chat.Record{rec})
	f.gate.EXPECT().Validate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(chat.Valid, nil).AnyTimes()

	c, err := f.reg.GetOrCreate(context.Background(), rec.Key())
	req.NoError(err)
	waitReady(t, c)

	req.Empty(f.reg.ReapIdle(time.Now(), time.Hour))
	reaped := f.reg.ReapIdle(time.Now().Add(2*time.Hour), time.Hour)
	req.Equal([]chat.Key{rec.Key()}, reaped)
	_, err = f.reg.Get(rec.Key())
	req.ErrorIs(err, chat.ErrNotFound)
}

func TestStartIdleReaper(t *testing.T) {
	req := require.New(t)
	rec := record("guild", "1", "bot", nil)
	f := newRegistryFixture(t, []chat.Record{rec})
	f.gate.EXPECT().Validate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(chat.Valid, nil).AnyTimes()

	_, err := f.reg.GetOrCreate(context.Background(), rec.Key())
	req.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	chat.StartIdleReaper(ctx, f.reg, time.Nanosecond, 5*time.Millisecond)
	req.Eventually(func() bool { return len(f.reg.Connections()) == 0 }, eventually, 5*time.Millisecond)
}

func TestRegistryWithoutResolverJoinsIDsAsLogins(t *testing.T) {
	req := require.New(t)
	rec := record("guild", "1", "bot", []chat.Account{{ID: "100"}})
	twitch := testutil.NewFakeTwitch()
	reg := chat.NewRegistry(chat.RegistryConfig{
		Store:  chat.NewMemoryStore(rec),
		Dialer: twitch,
		Conn:   fastConfig,
	})
	t.Cleanup(func() { _ = reg.CloseAll(context.Background()) })

	c, err := reg.GetOrCreate(context.Background(), rec.Key())
	req.NoError(err)
	waitReady(t, c)
	req.Equal([]chat.Account{{ID: "100", Login: "100"}}, c.Channels())
	req.Equal(1, twitch.Count("JOIN #100"))
}

func TestRegistryResolverFailureIsUnavailable(t *testing.T) {
	req := require.New(t)
	rec := record("guild", "1", "bot", channelAccounts(1))
	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockAccountResolver(ctrl)
	resolver.EXPECT().ResolveAccounts(gomock.Any(), gomock.Any()).Return(nil, errors.New("helix: 503")).AnyTimes()
	twitch := testutil.NewFakeTwitch()
	reg := chat.NewRegistry(chat.RegistryConfig{
		Store:    chat.NewMemoryStore(rec),
		Resolver: resolver,
		Dialer:   twitch,
		Conn:     fastConfig,
	})
	t.Cleanup(func() { _ = reg.CloseAll(context.Background()) })

	_, err := reg.GetOrCreate(context.Background(), rec.Key())
	req.ErrorIs(err, chat.ErrUnavailable)
	req.ErrorContains(err, "helix: 503")
	req.Equal(chat.ClassUnavailable, chat.Classify(err))
	req.Zero(twitch.Dials())
	req.Empty(reg.Connections())
}

func TestRegistryKeysWithSlashesDoNotShareAFlight(t *testing.T) {
	req := require.New(t)
	a := record("a/b", "c", "bota", nil)
	b := record("a", "b/c", "botb", nil)
	reg := chat.NewRegistry(chat.RegistryConfig{
		Store:  chat.NewMemoryStore(a, b),
		Dialer: testutil.NewFakeTwitch(),
		Conn:   fastConfig,
	})
	t.Cleanup(func() { _ = reg.CloseAll(context.Background()) })

	for i := 0; i < 20; i++ {
		var wg sync.WaitGroup
		got := make([]*chat.Conn, 2)
		for j, rec := range []chat.Record{a, b} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c, err := reg.GetOrCreate(context.Background(), rec.Key())
				if err == nil {
					got[j] = c
				}
			}()
		}
		wg.Wait()
		req.NotNil(got[0])
		req.NotNil(got[1])
		req.Equal(a.Key(), got[0].Key())
		req.Equal(b.Key(), got[1].Key())
		req.NoError(reg.CloseAll(context.Background()))
	}
}
