package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyConnected is returned by Join for a channel that is already
	// joined or being joined.
	ErrAlreadyConnected = errors.New("already connected")
	// ErrNotConnected is returned by Part for a channel that is not joined.
	ErrNotConnected = errors.New("not connected")
	// ErrConfirmationTimeout means Twitch did not echo a JOIN or PART in time.
	ErrConfirmationTimeout = errors.New("confirmation timeout")
	// ErrCredentialInvalid means the stored token was rejected by Twitch.
	ErrCredentialInvalid = errors.New("credential invalid")
	ErrTransportFailure  = errors.New("transport failure")
	ErrTransportClosed   = errors.New("transport closed")
	ErrNotSetUp          = errors.New("chat connection not set up")
	ErrNotFound          = errors.New("chat connection not found")
	// ErrUnavailable wraps failures of upstream services that may clear up.
	ErrUnavailable = errors.New("temporarily unavailable")
	// ErrClosed is returned by operations on a closed or aborted connection.
	ErrClosed = errors.New("chat connection closed")
)

// ChannelError ties a failed channel operation to the channel it targeted.
type ChannelError struct {
	Op      string
	Channel string
	Err     error
}

func (e *ChannelError) Error() string {
	switch {
	case errors.Is(e.Err, ErrAlreadyConnected):
		return fmt.Sprintf("Already connected to channel %q!", e.Channel)
	case errors.Is(e.Err, ErrNotConnected):
		return fmt.Sprintf("Not connected to channel %q!", e.Channel)
	}
	return fmt.Sprintf("%s #%s: %v", e.Op, e.Channel, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

func channelErr(op, channel string, err error) error {
	return &ChannelError{Op: op, Channel: channel, Err: err}
}

// ErrorClass buckets errors for HTTP status mapping and metrics labels.
type ErrorClass int

const (
	ClassUnknown ErrorClass = iota
	// ClassMisuse covers caller mistakes: duplicate join, part of an unjoined channel.
	ClassMisuse
	// ClassUnavailable covers transient failures worth retrying later.
	ClassUnavailable
	ClassCredentialExpired
	ClassNotSetUp
)

func (c ErrorClass) String() string {
	switch c {
	case ClassMisuse:
		return "misuse"
	case ClassUnavailable:
		return "unavailable"
	case ClassCredentialExpired:
		return "credential_expired"
	case ClassNotSetUp:
		return "not_set_up"
	default:
		return "unknown"
	}
}

// Classify maps err onto an ErrorClass.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassUnknown
	case errors.Is(err, ErrAlreadyConnected), errors.Is(err, ErrNotConnected):
		return ClassMisuse
	case errors.Is(err, ErrCredentialInvalid):
		return ClassCredentialExpired
	case errors.Is(err, ErrNotSetUp), errors.Is(err, ErrNotFound):
		return ClassNotSetUp
	case errors.Is(err, ErrConfirmationTimeout), errors.Is(err, ErrTransportFailure),
		errors.Is(err, ErrTransportClosed), errors.Is(err, ErrClosed), errors.Is(err, ErrUnavailable):
		return ClassUnavailable
	}
	return ClassUnknown
}
