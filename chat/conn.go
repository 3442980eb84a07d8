package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/chat-bridge/irc"
	"github.com/onnwee/chat-bridge/telemetry"
)

// ConnConfig holds lifecycle timing.
type ConnConfig struct {
	ConfirmTimeout time.Duration // JOIN/PART confirmation; default 8s
	WelcomeTimeout time.Duration // 001 after NICK; default 8s
	JoinPause      time.Duration // between startup joins; default 500ms
	// BackoffUnit replaces one second in the backoff schedule. Zero means
	// real seconds.
	BackoffUnit time.Duration
	Scopes      []string
}

func (c ConnConfig) withDefaults() ConnConfig {
	if c.ConfirmTimeout <= 0 {
		c.ConfirmTimeout = 8 * time.Second
	}
	if c.WelcomeTimeout <= 0 {
		c.WelcomeTimeout = 8 * time.Second
	}
	if c.JoinPause < 0 {
		c.JoinPause = 0
	} else if c.JoinPause == 0 {
		c.JoinPause = 500 * time.Millisecond
	}
	return c
}

// Options configure a Conn.
type Options struct {
	Record   Record
	Channels []Account // startup channels, in join order
	Dialer   Dialer
	Gate     CredentialGate
	Store    Store
	Notifier *ExpiryNotifier
	Listener Listener
	// Correlator may be shared between connections; nil gives the Conn its own.
	Correlator *Correlator
	Config     ConnConfig
	Logger     *slog.Logger
	// Prevalidated skips the credential check on the first attempt.
	Prevalidated bool
	// OnClose runs once after the lifecycle ends, whatever the reason.
	OnClose func(*Conn)
}

// Conn is one authenticated chat session for a (tenant, account) pair. It
// reconnects on its own until closed or until its credential is rejected.
type Conn struct {
	id       string
	key      Key
	account  Account
	dialer   Dialer
	gate     CredentialGate
	store    Store
	notifier *ExpiryNotifier
	listener Listener
	corr     *Correlator
	cfg      ConnConfig
	log      *slog.Logger
	onClose  func(*Conn)

	channels ChannelSet
	startup  []Account
	sendMu   sync.Mutex

	mu          sync.Mutex
	state       State
	token       string
	ready       bool
	readyCh     chan struct{}
	transport   Transport
	abortErr    error
	prevalidate bool

	lastActivity   atomic.Int64
	closeRequested atomic.Bool

	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

// NewConn builds a Conn in the Disconnected state. Call Start to connect.
func NewConn(opts Options) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		id:          uuid.NewString(),
		key:         opts.Record.Key(),
		account:     opts.Record.Account(),
		token:       opts.Record.AccessToken,
		dialer:      opts.Dialer,
		gate:        opts.Gate,
		store:       opts.Store,
		notifier:    opts.Notifier,
		listener:    opts.Listener,
		corr:        opts.Correlator,
		cfg:         opts.Config.withDefaults(),
		onClose:     opts.OnClose,
		startup:     lo.UniqBy(opts.Channels, func(a Account) string { return a.Wire() }),
		readyCh:     make(chan struct{}),
		prevalidate: opts.Prevalidated,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	if c.listener == nil {
		c.listener = NopListener{}
	}
	if c.corr == nil {
		c.corr = NewCorrelator()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c.log = logger.With(
		slog.String("component", "irc_conn"),
		slog.String("tenant", c.key.Tenant),
		slog.String("account", c.account.Wire()),
		slog.String("conn_id", c.id),
	)
	c.touch()
	return c
}

// Start launches the lifecycle goroutine. It is a no-op after the first call
// or after Close.
func (c *Conn) Start() {
	c.startOnce.Do(func() {
		telemetry.AddConnections(1)
		go c.run()
	})
}

func (c *Conn) ID() string       { return c.id }
func (c *Conn) Key() Key         { return c.key }
func (c *Conn) Account() Account { return c.account }

func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Ready reports whether the connection is currently ready.
func (c *Conn) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Channels returns the confirmed channels in join order.
func (c *Conn) Channels() []Account { return c.channels.Joined() }

// LastActivity is the time of the last Join, Part or Send (or creation).
func (c *Conn) LastActivity() time.Time { return time.Unix(0, c.lastActivity.Load()) }

// Done is closed when the lifecycle has ended.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err reports why an aborted connection ended.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.abortErr
}

func (c *Conn) touch() { c.lastActivity.Store(time.Now().UnixNano()) }

func (c *Conn) setState(s State) {
	c.mu.Lock()
	prev := c.state
	if prev != StateAborted && prev != StateClosed {
		c.state = s
	}
	c.mu.Unlock()
	if prev != s {
		c.log.Debug("chat state", slog.String("from", prev.String()), slog.String("to", s.String()))
	}
}

func (c *Conn) setReady(ready bool) {
	c.mu.Lock()
	if c.ready == ready {
		c.mu.Unlock()
		return
	}
	c.ready = ready
	if ready {
		c.state = StateReady
		close(c.readyCh)
	} else {
		c.readyCh = make(chan struct{})
	}
	c.mu.Unlock()
	telemetry.SetReady(ready)
	c.listener.ReadinessChanged(c.key, ready)
}

func (c *Conn) currentTransport() Transport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport
}

// WaitReady blocks until the connection is ready. It fails immediately once
// the connection is aborted or closed.
func (c *Conn) WaitReady(ctx context.Context) error {
	for {
		c.mu.Lock()
		switch {
		case c.abortErr != nil:
			err := c.abortErr
			c.mu.Unlock()
			return err
		case c.closeRequested.Load() || c.state == StateClosed:
			c.mu.Unlock()
			return ErrClosed
		}
		ch := c.readyCh
		c.mu.Unlock()

		select {
		case <-ch:
			return nil
		case <-c.done:
			// loop once more to report abort or close
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Conn) run() {
	defer c.finish()

	bo := backoff{scale: c.cfg.BackoffUnit}
	for attempt := 0; ; attempt++ {
		if c.ctx.Err() != nil {
			return
		}
		if attempt > 0 {
			c.setState(StateReconnecting)
		}
		tr, err := c.establish(attempt)
		if err != nil {
			if errors.Is(err, ErrCredentialInvalid) || errors.Is(err, ErrNotSetUp) {
				c.abort(err)
				return
			}
			if c.ctx.Err() != nil {
				return
			}
			d := bo.next()
			telemetry.Observe(telemetry.BackoffSeconds, d)
			c.log.Warn("chat connect attempt failed",
				slog.Any("err", err),
				slog.Int("failures", bo.failures),
				slog.Duration("backoff", d))
			if !sleepContext(c.ctx, d) {
				return
			}
			continue
		}
		bo.reset()
		c.startup = nil
		c.setReady(true)
		c.log.Info("chat connection ready", slog.Int("channels", c.channels.Len()))

		select {
		case <-tr.Done():
		case <-c.ctx.Done():
			_ = tr.Close()
		}
		c.setReady(false)
		if c.closeRequested.Load() || c.ctx.Err() != nil {
			return
		}
		telemetry.Inc(telemetry.Reconnects)
		c.log.Warn("chat transport lost, reconnecting")
	}
}

// establish runs one connect attempt: credential check, dial, PASS/NICK,
// welcome, startup joins. On success the returned transport is live and its
// receive loop is running.
func (c *Conn) establish(attempt int) (Transport, error) {
	telemetry.Inc(telemetry.ConnectAttempts)
	start := time.Now()

	if err := c.checkCredential(attempt); err != nil {
		return nil, err
	}

	c.setState(StateConnecting)
	tr, err := c.dialer.Dial(c.ctx)
	if err != nil {
		telemetry.IncLabel(telemetry.ConnectFailures, "dial")
		return nil, fmt.Errorf("%w: %v", ErrTransportFailure, err)
	}
	c.mu.Lock()
	c.transport = tr
	token := c.token
	c.mu.Unlock()
	go c.receive(tr)

	c.setState(StateAuthenticating)
	w := c.corr.Expect(CorrelationKey{Scope: c.id, Kind: irc.KindWelcome, Account: c.account.Wire()})
	if err := c.write(tr, irc.Pass(token), "PASS"); err != nil {
		w.Cancel()
		_ = tr.Close()
		telemetry.IncLabel(telemetry.ConnectFailures, "write")
		return nil, err
	}
	if err := c.write(tr, irc.Nick(c.account.Wire()), "NICK"); err != nil {
		w.Cancel()
		_ = tr.Close()
		telemetry.IncLabel(telemetry.ConnectFailures, "write")
		return nil, err
	}
	if _, err := w.Wait(c.ctx, c.cfg.WelcomeTimeout, tr.Done()); err != nil {
		_ = tr.Close()
		if errors.Is(err, ErrConfirmationTimeout) {
			telemetry.IncLabel(telemetry.ConfirmationTimeouts, "welcome")
		}
		telemetry.IncLabel(telemetry.ConnectFailures, "welcome")
		return nil, fmt.Errorf("await welcome: %w", err)
	}

	c.setState(StateJoiningChannels)
	if err := c.joinStartup(tr); err != nil {
		_ = tr.Close()
		telemetry.IncLabel(telemetry.ConnectFailures, "join")
		return nil, err
	}
	telemetry.Observe(telemetry.ConnectDuration, time.Since(start))
	return tr, nil
}

// checkCredential consults the gate before an attempt. Reconnect attempts
// reload the stored record first so a replaced token is picked up.
func (c *Conn) checkCredential(attempt int) error {
	if attempt > 0 && c.store != nil {
		rec, err := c.store.Load(c.ctx, c.key)
		switch {
		case errors.Is(err, ErrNotSetUp):
			return err
		case err != nil:
			c.log.Warn("reload chat record failed, using cached token", slog.Any("err", err))
		default:
			c.mu.Lock()
			c.token = rec.AccessToken
			c.mu.Unlock()
		}
	}
	c.mu.Lock()
	skip := c.prevalidate
	c.prevalidate = false
	token := c.token
	c.mu.Unlock()
	if skip || c.gate == nil {
		return nil
	}

	v, err := c.gate.Validate(c.ctx, c.account, token, c.cfg.Scopes)
	switch v {
	case Valid:
		return nil
	case Invalid:
		return ErrCredentialInvalid
	default:
		telemetry.IncLabel(telemetry.ConnectFailures, "credential_indeterminate")
		if err == nil {
			err = errors.New("no verdict")
		}
		return fmt.Errorf("credential check indeterminate: %w", err)
	}
}

// joinStartup joins every channel recorded for this connection. A missing
// confirmation is retried until it arrives or the transport ends.
func (c *Conn) joinStartup(tr Transport) error {
	targets := lo.UniqBy(append(c.channels.Joined(), c.startup...), func(a Account) string { return a.Wire() })
	for i, ch := range targets {
		if i > 0 && !sleepContext(c.ctx, c.cfg.JoinPause) {
			return c.ctx.Err()
		}
		for {
			w := c.corr.Expect(c.confirmKey(irc.KindJoin, ch))
			if err := c.write(tr, irc.Join(ch.Wire()), "JOIN"); err != nil {
				w.Cancel()
				return err
			}
			_, err := w.Wait(c.ctx, c.cfg.ConfirmTimeout, tr.Done())
			if err == nil {
				break
			}
			if !errors.Is(err, ErrConfirmationTimeout) {
				return fmt.Errorf("startup join #%s: %w", ch.Wire(), err)
			}
			telemetry.IncLabel(telemetry.ConfirmationTimeouts, "startup_join")
			c.log.Warn("startup join not confirmed, retrying", slog.String("channel", ch.Wire()))
		}
		c.channels.Confirm(ch)
		c.listener.ChannelJoined(c.key, ch)
	}
	return nil
}

func (c *Conn) receive(tr Transport) {
	err := tr.Run(func(line string) { c.dispatch(tr, line) })
	if err != nil && !c.closeRequested.Load() {
		c.log.Debug("chat receive loop ended", slog.Any("err", err))
	}
}

func (c *Conn) dispatch(tr Transport, line string) {
	ev := irc.Decode(line)
	switch ev.Kind {
	case irc.KindPing:
		if err := c.write(tr, irc.Pong(), "PONG"); err != nil {
			c.log.Warn("pong failed", slog.Any("err", err))
		}
	case irc.KindWelcome:
		c.corr.Publish(CorrelationKey{Scope: c.id, Kind: irc.KindWelcome, Account: ev.Account}, ev)
	case irc.KindMessage:
		ch, ok := c.channels.Lookup(ev.Channel)
		if !ok {
			return
		}
		telemetry.Inc(telemetry.MessagesReceived)
		c.listener.MessageReceived(c.key, Message{
			Channel: ch,
			Sender:  Account{ID: ev.UserID, Login: ev.Account},
			Text:    ev.Text,
			Action:  ev.Action,
		})
	case irc.KindJoin, irc.KindPart:
		key := CorrelationKey{Scope: c.id, Kind: ev.Kind, Account: ev.Account, Channel: ev.Channel}
		if c.corr.Publish(key, ev) == 0 {
			c.log.Debug("unsolicited membership event",
				slog.String("kind", ev.Kind.String()),
				slog.String("user", ev.Account),
				slog.String("channel", ev.Channel))
		}
	}
}

func (c *Conn) confirmKey(kind irc.Kind, ch Account) CorrelationKey {
	return CorrelationKey{Scope: c.id, Kind: kind, Account: c.account.Wire(), Channel: ch.Wire()}
}

// write sends one command. Commands leave in the order callers issue them.
func (c *Conn) write(tr Transport, line, command string) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := tr.Send(line); err != nil {
		return fmt.Errorf("%w: send %s: %v", ErrTransportFailure, command, err)
	}
	telemetry.IncLabel(telemetry.CommandsSent, command)
	return nil
}

// Join sends JOIN for channel and waits for Twitch to confirm it. A timeout
// is returned to the caller and not retried.
func (c *Conn) Join(ctx context.Context, channel Account) error {
	if err := c.WaitReady(ctx); err != nil {
		return err
	}
	ctx, span := telemetry.StartSpan(ctx, "chat", "chat.join",
		attribute.String("chat.key", c.key.String()),
		attribute.String("chat.channel", channel.Wire()))
	defer span.End()

	if !c.channels.Claim(channel) {
		return channelErr("join", channel.Wire(), ErrAlreadyConnected)
	}
	c.touch()
	err := c.confirm(ctx, irc.KindJoin, channel, irc.Join(channel.Wire()), "JOIN")
	if err != nil {
		c.channels.Release(channel)
		telemetry.RecordError(span, err)
		return channelErr("join", channel.Wire(), err)
	}
	c.channels.Confirm(channel)
	c.persistChannels(ctx)
	c.listener.ChannelJoined(c.key, channel)
	telemetry.SetSpanSuccess(span)
	return nil
}

// Part sends PART for channel and waits for Twitch to confirm it.
func (c *Conn) Part(ctx context.Context, channel Account) error {
	if err := c.WaitReady(ctx); err != nil {
		return err
	}
	ctx, span := telemetry.StartSpan(ctx, "chat", "chat.part",
		attribute.String("chat.key", c.key.String()),
		attribute.String("chat.channel", channel.Wire()))
	defer span.End()

	if !c.channels.BeginPart(channel) {
		return channelErr("part", channel.Wire(), ErrNotConnected)
	}
	c.touch()
	err := c.confirm(ctx, irc.KindPart, channel, irc.Part(channel.Wire()), "PART")
	if err != nil {
		c.channels.AbortPart(channel)
		telemetry.RecordError(span, err)
		return channelErr("part", channel.Wire(), err)
	}
	c.channels.Remove(channel)
	c.persistChannels(ctx)
	c.listener.ChannelParted(c.key, channel)
	telemetry.SetSpanSuccess(span)
	return nil
}

func (c *Conn) confirm(ctx context.Context, kind irc.Kind, channel Account, line, command string) error {
	tr := c.currentTransport()
	if tr == nil {
		return ErrTransportClosed
	}
	w := c.corr.Expect(c.confirmKey(kind, channel))
	if err := c.write(tr, line, command); err != nil {
		w.Cancel()
		return err
	}
	_, err := w.Wait(ctx, c.cfg.ConfirmTimeout, tr.Done())
	if errors.Is(err, ErrConfirmationTimeout) {
		telemetry.IncLabel(telemetry.ConfirmationTimeouts, command)
	}
	return err
}

// Send writes a PRIVMSG to a joined channel.
func (c *Conn) Send(ctx context.Context, channel Account, text string) error {
	if err := c.WaitReady(ctx); err != nil {
		return err
	}
	if !c.channels.Has(channel) {
		return channelErr("send", channel.Wire(), ErrNotConnected)
	}
	c.touch()
	tr := c.currentTransport()
	if tr == nil {
		return channelErr("send", channel.Wire(), ErrTransportClosed)
	}
	if err := c.write(tr, irc.Privmsg(channel.Wire(), text), "PRIVMSG"); err != nil {
		return channelErr("send", channel.Wire(), err)
	}
	return nil
}

func (c *Conn) persistChannels(ctx context.Context) {
	if c.store == nil {
		return
	}
	if err := c.store.SetJoinedChannels(ctx, c.key, c.channels.IDs()); err != nil {
		c.log.Warn("persist joined channels failed", slog.Any("err", err))
	}
}

// abort ends the connection for good after a fatal credential problem.
func (c *Conn) abort(err error) {
	c.mu.Lock()
	c.state = StateAborted
	c.abortErr = err
	c.mu.Unlock()
	c.log.Error("chat connection aborted", slog.Any("err", err))

	if !errors.Is(err, ErrCredentialInvalid) || c.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, nerr := c.notifier.Notify(ctx, c.key, c.account); nerr != nil {
		c.log.Warn("credential expiry notice failed", slog.Any("err", nerr))
	}
}

// finish runs exactly once when the lifecycle ends.
func (c *Conn) finish() {
	c.setReady(false)
	c.cancel()
	c.mu.Lock()
	if c.state != StateAborted {
		c.state = StateClosed
	}
	tr := c.transport
	c.transport = nil
	c.mu.Unlock()
	if tr != nil {
		_ = tr.Close()
	}
	telemetry.AddConnections(-1)
	if c.onClose != nil {
		c.onClose(c)
	}
	c.log.Info("chat connection ended", slog.String("state", c.State().String()))
	close(c.done)
}

// Close stops the connection and waits for its lifecycle to end. In-flight
// backoff sleeps are cancelled. Close is idempotent.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeRequested.Store(true)
		c.setState(StateClosing)
		c.cancel()
		if tr := c.currentTransport(); tr != nil {
			_ = tr.Close()
		}
		// never started: nothing else will end the lifecycle
		c.startOnce.Do(func() {
			telemetry.AddConnections(1)
			c.finish()
		})
	})
	<-c.done
	return nil
}

// Info is a point-in-time view of a connection.
type Info struct {
	Key          Key       `json:"-"`
	Tenant       string    `json:"tenant"`
	AccountID    string    `json:"account_id"`
	Login        string    `json:"login"`
	State        string    `json:"state"`
	Ready        bool      `json:"ready"`
	Channels     []string  `json:"channels"`
	LastActivity time.Time `json:"last_activity"`
}

func (c *Conn) Info() Info {
	c.mu.Lock()
	state, ready := c.state, c.ready
	c.mu.Unlock()
	return Info{
		Key:          c.key,
		Tenant:       c.key.Tenant,
		AccountID:    c.key.AccountID,
		Login:        c.account.Wire(),
		State:        state.String(),
		Ready:        ready,
		Channels:     lo.Map(c.Channels(), func(a Account, _ int) string { return a.Wire() }),
		LastActivity: c.LastActivity(),
	}
}
