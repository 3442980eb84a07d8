// Package irc implements the slice of the Twitch IRC protocol the bridge speaks
// (PASS, NICK, JOIN, PART, PRIVMSG, PING/PONG) and the WebSocket session that
// carries it to irc-ws.chat.twitch.tv.
//
// Decoding produces a tagged Event rather than raw strings so the connection
// state machine can switch on Kind. Lines the bridge does not care about decode
// to KindUnknown, which is not an error.
package irc

import (
	"strings"

	twitch "github.com/gempir/go-twitch-irc/v4"
)

// Kind tags a decoded inbound line.
type Kind int

const (
	KindUnknown Kind = iota
	KindPing
	KindWelcome
	KindJoin
	KindPart
	KindMessage
)

func (k Kind) String() string {
	switch k {
	case KindPing:
		return "ping"
	case KindWelcome:
		return "welcome"
	case KindJoin:
		return "join"
	case KindPart:
		return "part"
	case KindMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Event is one decoded inbound line.
type Event struct {
	Kind Kind
	// Account is the login the event refers to: the nick being welcomed, the
	// user joining/parting, or the sender of a PRIVMSG.
	Account string
	// Channel is the channel name without the leading '#'.
	Channel string
	// UserID is the sender's numeric id from PRIVMSG tags, when present.
	UserID string
	// Text holds the PRIVMSG body or the PING payload.
	Text string
	// Action marks a /me message.
	Action bool
	Raw    string
}

// ServerName is the origin Twitch uses for server-generated lines.
const ServerName = "tmi.twitch.tv"

// Decode parses a single protocol line. PING is matched on the line prefix;
// everything else on the command token (the second whitespace-delimited field,
// not counting a leading tag block).
func Decode(line string) Event {
	line = strings.TrimRight(line, "\r\n")
	if strings.HasPrefix(line, "PING") {
		payload := strings.TrimSpace(strings.TrimPrefix(line, "PING"))
		return Event{Kind: KindPing, Text: strings.TrimPrefix(payload, ":"), Raw: line}
	}
	fields := strings.Fields(line)
	if len(fields) > 0 && strings.HasPrefix(fields[0], "@") {
		// IRCv3 tags precede the prefix
		fields = fields[1:]
	}
	if len(fields) < 2 {
		return Event{Kind: KindUnknown, Raw: line}
	}
	switch fields[1] {
	case "001":
		ev := Event{Kind: KindWelcome, Raw: line}
		if len(fields) > 2 {
			ev.Account = strings.ToLower(fields[2])
		}
		return ev
	case "JOIN", "PART":
		return decodeMembership(line, fields)
	case "PRIVMSG":
		if len(fields) < 3 {
			break
		}
		if m, ok := twitch.ParseMessage(line).(*twitch.PrivateMessage); ok {
			return Event{
				Kind:    KindMessage,
				Account: strings.ToLower(m.User.Name),
				UserID:  m.User.ID,
				Channel: strings.ToLower(m.Channel),
				Text:    m.Message,
				Action:  m.Action,
				Raw:     line,
			}
		}
	}
	return Event{Kind: KindUnknown, Raw: line}
}

// decodeMembership reads JOIN/PART through the go-twitch-irc parser and falls
// back to splitting fields when the parser yields no user or channel.
func decodeMembership(line string, fields []string) Event {
	kind := KindJoin
	if fields[1] == "PART" {
		kind = KindPart
	}
	var user, channel string
	switch m := twitch.ParseMessage(line).(type) {
	case *twitch.UserJoinMessage:
		user, channel = m.User, m.Channel
	case *twitch.UserPartMessage:
		user, channel = m.User, m.Channel
	}
	if user == "" {
		user = prefixNick(fields[0])
	}
	if channel == "" && len(fields) > 2 {
		channel = strings.TrimPrefix(fields[len(fields)-1], "#")
	}
	return Event{Kind: kind, Account: strings.ToLower(user), Channel: strings.ToLower(channel), Raw: line}
}

// prefixNick extracts the nick from ":nick!user@host".
func prefixNick(prefix string) string {
	if !strings.HasPrefix(prefix, ":") {
		return ""
	}
	nick := strings.TrimPrefix(prefix, ":")
	if i := strings.IndexByte(nick, '!'); i >= 0 {
		nick = nick[:i]
	}
	return strings.ToLower(nick)
}

// Pass returns the PASS command. A token may be given with or without its
// "oauth:" prefix.
func Pass(token string) string {
	if i := strings.LastIndex(token, "oauth:"); i >= 0 {
		token = token[i+len("oauth:"):]
	}
	return "PASS oauth:" + token + "\n"
}

func Nick(login string) string { return "NICK " + login + "\n" }

func Join(channel string) string { return "JOIN #" + channel + "\n" }

func Part(channel string) string { return "PART #" + channel + "\n" }

// Privmsg carries no trailing newline; the WebSocket frame delimits it.
func Privmsg(channel, text string) string { return "PRIVMSG #" + channel + " :" + text }

func Pong() string { return "PONG :" + ServerName + "\n" }
