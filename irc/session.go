package irc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultURL is Twitch's secure WebSocket chat endpoint.
const DefaultURL = "wss://irc-ws.chat.twitch.tv:443"

// ErrSessionClosed is returned by Send after the session has been closed.
var ErrSessionClosed = errors.New("irc session closed")

// Dialer opens Sessions against a fixed endpoint.
type Dialer struct {
	URL              string
	HandshakeTimeout time.Duration
	// WS overrides the underlying websocket dialer (tests, proxies).
	WS *websocket.Dialer
}

// Dial opens a new session. The context bounds the handshake only.
func (d *Dialer) Dial(ctx context.Context) (*Session, error) {
	url := d.URL
	if url == "" {
		url = DefaultURL
	}
	ws := d.WS
	if ws == nil {
		ws = &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: d.HandshakeTimeout,
		}
		if ws.HandshakeTimeout <= 0 {
			ws.HandshakeTimeout = 10 * time.Second
		}
	}
	conn, _, err := ws.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewSession(conn), nil
}

// Session is one duplex WebSocket connection carrying newline-terminated
// protocol lines. Writes are serialized; reads happen only inside Run.
type Session struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once

	mu  sync.Mutex
	err error
}

// NewSession wraps an established websocket connection.
func NewSession(conn *websocket.Conn) *Session {
	return &Session{conn: conn, done: make(chan struct{})}
}

// Send writes one protocol line as a text frame.
func (s *Session) Send(line string) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
		return fmt.Errorf("irc write: %w", err)
	}
	return nil
}

// Run reads frames until the connection fails or Close is called, handing
// every non-empty line to handle. A single frame may carry several
// CRLF-separated lines. Run closes the session before returning.
func (s *Session) Run(handle func(line string)) error {
	defer func() {
		if err := s.Close(); err != nil {
			slog.Debug("irc session close after read loop", slog.Any("err", err))
		}
	}()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				return ErrSessionClosed
			default:
			}
			s.setErr(err)
			return fmt.Errorf("irc read: %w", err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimRight(line, "\r")
			if line == "" {
				continue
			}
			handle(line)
		}
	}
}

// Close is idempotent.
func (s *Session) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		// WriteControl may run concurrently with WriteMessage.
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = s.conn.Close()
	})
	return err
}

// Done is closed once the session is closed for any reason.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err reports the read error that ended the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}
