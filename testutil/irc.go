package testutil

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/onnwee/chat-bridge/chat"
)

// ErrFakeDial is returned by FakeTwitch.Dial while FailDials is positive.
var ErrFakeDial = errors.New("fake dial refused")

// FakeTwitch is an in-memory chat server. It welcomes on NICK and echoes
// JOIN/PART back as confirmations, which is how Twitch acknowledges them.
type FakeTwitch struct {
	mu            sync.Mutex
	failDials     int
	silentWelcome bool
	dropJoins     map[string]int
	dials         int
	sent          []string
	sessions      []*FakeTransport
}

func NewFakeTwitch() *FakeTwitch {
	return &FakeTwitch{dropJoins: make(map[string]int)}
}

// FailDials makes the next n dials fail.
func (f *FakeTwitch) FailDials(n int) {
	f.mu.Lock()
	f.failDials = n
	f.mu.Unlock()
}

// SilentWelcome stops the server from answering NICK.
func (f *FakeTwitch) SilentWelcome(silent bool) {
	f.mu.Lock()
	f.silentWelcome = silent
	f.mu.Unlock()
}

// DropJoins ignores the next n JOINs for channel.
func (f *FakeTwitch) DropJoins(channel string, n int) {
	f.mu.Lock()
	f.dropJoins[channel] = n
	f.mu.Unlock()
}

// Dial implements chat.Dialer.
func (f *FakeTwitch) Dial(ctx context.Context) (chat.Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials++
	if f.failDials > 0 {
		f.failDials--
		return nil, ErrFakeDial
	}
	t := &FakeTransport{
		twitch: f,
		in:     make(chan string, 256),
		done:   make(chan struct{}),
	}
	f.sessions = append(f.sessions, t)
	return t, nil
}

func (f *FakeTwitch) Dials() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dials
}

// Sent returns every line written by clients, across sessions.
func (f *FakeTwitch) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

// Count returns how many sent lines start with prefix.
func (f *FakeTwitch) Count(prefix string) int {
	n := 0
	for _, l := range f.Sent() {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}

// Session returns the most recent session, or nil.
func (f *FakeTwitch) Session() *FakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sessions) == 0 {
		return nil
	}
	return f.sessions[len(f.sessions)-1]
}

func (f *FakeTwitch) record(line string) (silent, drop bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, line)
	if strings.HasPrefix(line, "JOIN #") {
		ch := strings.TrimSpace(strings.TrimPrefix(line, "JOIN #"))
		if f.dropJoins[ch] > 0 {
			f.dropJoins[ch]--
			drop = true
		}
	}
	return f.silentWelcome, drop
}

// FakeTransport is one session on a FakeTwitch.
type FakeTransport struct {
	twitch *FakeTwitch
	in     chan string
	done   chan struct{}
	once   sync.Once

	mu   sync.Mutex
	nick string
}

func (t *FakeTransport) Send(line string) error {
	select {
	case <-t.done:
		return errors.New("fake transport closed")
	default:
	}
	silent, drop := t.twitch.record(line)
	cmd := strings.TrimRight(line, "\n")
	switch {
	case strings.HasPrefix(cmd, "NICK "):
		nick := strings.TrimPrefix(cmd, "NICK ")
		t.mu.Lock()
		t.nick = nick
		t.mu.Unlock()
		if !silent {
			t.Inject(":tmi.twitch.tv 001 " + nick + " :Welcome, GLHF!")
		}
	case strings.HasPrefix(cmd, "JOIN #"):
		if !drop {
			t.Inject(t.prefix() + " JOIN " + strings.TrimPrefix(cmd, "JOIN "))
		}
	case strings.HasPrefix(cmd, "PART #"):
		t.Inject(t.prefix() + " PART " + strings.TrimPrefix(cmd, "PART "))
	}
	return nil
}

func (t *FakeTransport) prefix() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return ":" + t.nick + "!" + t.nick + "@" + t.nick + ".tmi.twitch.tv"
}

// Inject queues an inbound line as if the server had sent it.
func (t *FakeTransport) Inject(line string) {
	select {
	case t.in <- line:
	case <-t.done:
	}
}

func (t *FakeTransport) Run(handle func(line string)) error {
	defer t.Close()
	for {
		select {
		case line := <-t.in:
			handle(line)
		case <-t.done:
			return errors.New("fake transport closed")
		}
	}
}

// Close also serves as a server-side hangup in tests.
func (t *FakeTransport) Close() error {
	t.once.Do(func() { close(t.done) })
	return nil
}

func (t *FakeTransport) Done() <-chan struct{} { return t.done }
