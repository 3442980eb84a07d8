//go:generate go run go.uber.org/mock/mockgen -source=model.go -destination=mocks/mock_chat.go -package=mocks

package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Account is a Twitch identity: numeric user id plus lowercase login.
type Account struct {
	ID    string
	Login string
}

// Same reports whether a and b name the same Twitch account. Ids win when
// both sides carry one; otherwise logins are compared case-insensitively.
func (a Account) Same(b Account) bool {
	if a.ID != "" && b.ID != "" {
		return a.ID == b.ID
	}
	return strings.EqualFold(a.Login, b.Login)
}

// Wire returns the login as it appears on the wire.
func (a Account) Wire() string { return strings.ToLower(a.Login) }

func (a Account) String() string {
	if a.Login == "" {
		return a.ID
	}
	return a.Login
}

// Key identifies at most one live connection.
type Key struct {
	Tenant    string
	AccountID string
}

func (k Key) String() string { return k.Tenant + "/" + k.AccountID }

// flightKey is unambiguous even when tenant or account contain '/'.
func (k Key) flightKey() string { return fmt.Sprintf("%q/%q", k.Tenant, k.AccountID) }

// Message is a chat line received in a joined channel.
type Message struct {
	Channel Account
	Sender  Account
	Text    string
	// Action marks a /me message.
	Action bool
}

// Record is the persisted configuration of one connection.
type Record struct {
	Tenant         string    `json:"tenant" validate:"required"`
	AccountID      string    `json:"account_id" validate:"required"`
	Username       string    `json:"username" validate:"required"`
	AccessToken    string    `json:"access_token" validate:"required"`
	JoinedChannels []string  `json:"joined_channels"`
	ExpiryNotified bool      `json:"expiry_notified"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Key returns the registry key of the record.
func (r Record) Key() Key { return Key{Tenant: r.Tenant, AccountID: r.AccountID} }

// Account returns the identity the record authenticates as.
func (r Record) Account() Account {
	return Account{ID: r.AccountID, Login: strings.ToLower(r.Username)}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the required fields of a record before it is stored.
func (r Record) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid connection record %s: %w", r.Key(), err)
	}
	return nil
}

// Validity is the tri-state outcome of a credential check.
type Validity int

const (
	// Indeterminate means the check could not be completed (network error,
	// upstream 5xx). It must never be treated as Invalid.
	Indeterminate Validity = iota
	Valid
	Invalid
)

func (v Validity) String() string {
	switch v {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	default:
		return "indeterminate"
	}
}

// CredentialGate validates a stored token for an account.
type CredentialGate interface {
	Validate(ctx context.Context, account Account, token string, scopes []string) (Validity, error)
}

// AccountResolver looks up current Twitch accounts by id. Unknown ids are
// omitted; the order of known ids is preserved.
type AccountResolver interface {
	ResolveAccounts(ctx context.Context, ids []string) ([]Account, error)
}

// Store persists connection records.
type Store interface {
	// Load returns ErrNotSetUp when no record exists for key.
	Load(ctx context.Context, key Key) (Record, error)
	List(ctx context.Context) ([]Record, error)
	Save(ctx context.Context, rec Record) error
	SetJoinedChannels(ctx context.Context, key Key, channelIDs []string) error
	SetExpiryNotified(ctx context.Context, key Key, notified bool) error
	// UpdateToken stores a new credential and clears ExpiryNotified.
	UpdateToken(ctx context.Context, key Key, token string) error
	Delete(ctx context.Context, key Key) error
}

// State is a connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateJoiningChannels
	StateReady
	StateReconnecting
	StateClosing
	StateClosed
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateJoiningChannels:
		return "joining_channels"
	case StateReady:
		return "ready"
	case StateReconnecting:
		return "reconnecting"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
