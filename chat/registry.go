package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/onnwee/chat-bridge/telemetry"
)

// RegistryConfig wires a Registry to its collaborators.
type RegistryConfig struct {
	Store    Store
	Gate     CredentialGate
	Resolver AccountResolver
	Dialer   Dialer
	Listener Listener
	Conn     ConnConfig
	Logger   *slog.Logger

	// StartupConcurrency bounds StartAll; StartupPacing spaces its launches.
	StartupConcurrency int
	StartupPacing      time.Duration
}

// Registry owns the live connections, at most one per Key.
type Registry struct {
	cfg      RegistryConfig
	corr     *Correlator
	notifier *ExpiryNotifier
	log      *slog.Logger

	group singleflight.Group

	mu    sync.RWMutex
	conns map[Key]*Conn

	startedMu sync.Mutex
	started   bool
}

func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Listener == nil {
		cfg.Listener = NopListener{}
	}
	if cfg.StartupConcurrency <= 0 {
		cfg.StartupConcurrency = 4
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		cfg:      cfg,
		corr:     NewCorrelator(),
		notifier: NewExpiryNotifier(cfg.Store, cfg.Listener),
		log:      logger.With(slog.String("component", "chat_registry")),
		conns:    make(map[Key]*Conn),
	}
}

// Notifier returns the registry's expiry notifier, shared with the token
// maintainer so both honor the same episode flag.
func (r *Registry) Notifier() *ExpiryNotifier { return r.notifier }

// Get returns the live connection for key or ErrNotFound.
func (r *Registry) Get(key Key) (*Conn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.conns[key]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
}

// GetOrCreate returns the live connection for key, creating and starting it
// if needed. Concurrent callers for the same key share one construction.
// The returned connection may still be connecting; its operations wait for
// readiness.
func (r *Registry) GetOrCreate(ctx context.Context, key Key) (*Conn, error) {
	if c, err := r.Get(key); err == nil {
		return c, nil
	}
	ch := r.group.DoChan(key.flightKey(), func() (any, error) {
		// a previous flight may have finished between Get and DoChan
		if c, err := r.Get(key); err == nil {
			return c, nil
		}
		return r.create(context.WithoutCancel(ctx), key)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Conn), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Registry) create(ctx context.Context, key Key) (*Conn, error) {
	ctx, span := telemetry.StartSpan(ctx, "chat", "chat.registry.create",
		attribute.String("chat.key", key.String()))
	defer span.End()

	if r.cfg.Store == nil {
		return nil, fmt.Errorf("%s: %w", key, ErrNotSetUp)
	}
	rec, err := r.cfg.Store.Load(ctx, key)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	rec = r.refreshUsername(ctx, rec)

	prevalidated := false
	if r.cfg.Gate != nil {
		v, verr := r.cfg.Gate.Validate(ctx, rec.Account(), rec.AccessToken, r.cfg.Conn.Scopes)
		switch v {
		case Invalid:
			if _, nerr := r.notifier.Notify(ctx, key, rec.Account()); nerr != nil {
				r.log.Warn("credential expiry notice failed", slog.String("key", key.String()), slog.Any("err", nerr))
			}
			telemetry.RecordError(span, ErrCredentialInvalid)
			return nil, fmt.Errorf("%s: %w", key, ErrCredentialInvalid)
		case Valid:
			prevalidated = true
		default:
			// left to the connection's retry loop
			r.log.Warn("credential check indeterminate", slog.String("key", key.String()), slog.Any("err", verr))
		}
	}

	channels, err := r.resolveChannels(ctx, rec.JoinedChannels)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	c := NewConn(Options{
		Record:       rec,
		Channels:     channels,
		Dialer:       r.cfg.Dialer,
		Gate:         r.cfg.Gate,
		Store:        r.cfg.Store,
		Notifier:     r.notifier,
		Listener:     r.cfg.Listener,
		Correlator:   r.corr,
		Config:       r.cfg.Conn,
		Logger:       r.log,
		Prevalidated: prevalidated,
		OnClose:      r.release,
	})
	r.mu.Lock()
	r.conns[key] = c
	r.mu.Unlock()
	c.Start()

	r.log.Info("chat connection created",
		slog.String("key", key.String()),
		slog.String("account", rec.Account().Wire()),
		slog.Int("channels", len(channels)))
	telemetry.SetSpanSuccess(span)
	return c, nil
}

// refreshUsername picks up a login change for the account itself.
func (r *Registry) refreshUsername(ctx context.Context, rec Record) Record {
	if r.cfg.Resolver == nil {
		return rec
	}
	accounts, err := r.cfg.Resolver.ResolveAccounts(ctx, []string{rec.AccountID})
	if err != nil || len(accounts) == 0 {
		if err != nil {
			r.log.Warn("username refresh failed", slog.String("key", rec.Key().String()), slog.Any("err", err))
		}
		return rec
	}
	if login := accounts[0].Login; login != "" && !strings.EqualFold(login, rec.Username) {
		r.log.Info("username changed upstream", slog.String("from", rec.Username), slog.String("to", login))
		rec.Username = login
		if err := r.cfg.Store.Save(ctx, rec); err != nil {
			r.log.Warn("persist refreshed username failed", slog.Any("err", err))
		}
	}
	return rec
}

func (r *Registry) resolveChannels(ctx context.Context, ids []string) ([]Account, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if r.cfg.Resolver == nil {
		// without Helix the stored ids double as logins
		return lo.Map(ids, func(id string, _ int) Account { return Account{ID: id, Login: id} }), nil
	}
	accounts, err := r.cfg.Resolver.ResolveAccounts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve channels: %w: %w", ErrUnavailable, err)
	}
	if len(accounts) < len(ids) {
		r.log.Warn("some stored channels no longer exist", slog.Int("stored", len(ids)), slog.Int("resolved", len(accounts)))
	}
	return accounts, nil
}

// release forgets c if it is still the registered connection for its key.
func (r *Registry) release(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.conns[c.Key()]; ok && cur == c {
		delete(r.conns, c.Key())
	}
}

// Remove closes and forgets the connection for key. It is idempotent.
func (r *Registry) Remove(key Key) error {
	r.mu.Lock()
	c, ok := r.conns[key]
	delete(r.conns, key)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return c.Close()
}

// Connections returns the live connections ordered by key.
func (r *Registry) Connections() []*Conn {
	r.mu.RLock()
	out := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key().String() < out[j].Key().String() })
	return out
}

// Snapshot describes every live connection.
func (r *Registry) Snapshot() []Info {
	conns := r.Connections()
	out := make([]Info, len(conns))
	for i, c := range conns {
		out[i] = c.Info()
	}
	return out
}

// StartAll creates a connection for every stored record. Records whose
// credential is rejected are skipped after their expiry notice; other
// failures are logged. It returns the number of connections started.
func (r *Registry) StartAll(ctx context.Context) (int, error) {
	recs, err := r.cfg.Store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list chat connections: %w", err)
	}

	var (
		mu      sync.Mutex
		started int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.StartupConcurrency)
	for i, rec := range recs {
		if i > 0 && !sleepContext(gctx, r.cfg.StartupPacing) {
			break
		}
		g.Go(func() error {
			if _, err := r.GetOrCreate(gctx, rec.Key()); err != nil {
				r.log.Warn("startup connection skipped",
					slog.String("key", rec.Key().String()),
					slog.String("class", Classify(err).String()),
					slog.Any("err", err))
				return nil
			}
			mu.Lock()
			started++
			mu.Unlock()
			return nil
		})
	}
	err = g.Wait()
	r.startedMu.Lock()
	r.started = true
	r.startedMu.Unlock()
	if err == nil {
		err = ctx.Err()
	}
	r.log.Info("chat startup complete", slog.Int("records", len(recs)), slog.Int("started", started))
	return started, err
}

// Started reports whether StartAll has finished.
func (r *Registry) Started() bool {
	r.startedMu.Lock()
	defer r.startedMu.Unlock()
	return r.started
}

// CloseAll closes every live connection concurrently.
func (r *Registry) CloseAll(ctx context.Context) error {
	conns := r.Connections()
	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c *Conn) {
			defer wg.Done()
			_ = r.Remove(c.Key())
		}(c)
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.log.Info("chat connections closed", slog.Int("count", len(conns)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
