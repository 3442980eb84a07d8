package chat

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	alpha = Account{ID: "10", Login: "alpha"}
	beta  = Account{ID: "20", Login: "beta"}
)

func TestChannelSetClaimConfirm(t *testing.T) {
	req := require.New(t)
	var s ChannelSet

	req.True(s.Claim(alpha))
	req.False(s.Claim(alpha), "pending claim blocks a second join")
	req.False(s.Has(alpha), "pending is not a member yet")
	req.Zero(s.Len())

	s.Confirm(alpha)
	req.True(s.Has(alpha))
	req.False(s.Claim(alpha))
	req.Equal([]string{"10"}, s.IDs())
}

func TestChannelSetLookup(t *testing.T) {
	req := require.New(t)
	var s ChannelSet

	req.True(s.Claim(alpha))
	_, ok := s.Lookup("alpha")
	req.False(ok, "pending channels do not receive messages")

	s.Confirm(alpha)
	got, ok := s.Lookup("ALPHA")
	req.True(ok)
	req.Equal(alpha, got)

	_, ok = s.Lookup("beta")
	req.False(ok)
}

func TestChannelSetReleaseOnlyPending(t *testing.T) {
	req := require.New(t)
	var s ChannelSet
	s.Confirm(alpha)
	s.Release(alpha)
	req.True(s.Has(alpha), "release must not drop a joined channel")

	req.True(s.Claim(beta))
	s.Release(beta)
	req.True(s.Claim(beta))
}

func TestChannelSetPart(t *testing.T) {
	req := require.New(t)
	var s ChannelSet
	req.False(s.BeginPart(alpha))

	s.Confirm(alpha)
	s.Confirm(beta)
	req.True(s.BeginPart(alpha))
	req.False(s.BeginPart(alpha), "second part while parting")
	req.True(s.Has(alpha))

	s.AbortPart(alpha)
	req.True(s.BeginPart(alpha))
	s.Remove(alpha)
	req.Equal([]Account{beta}, s.Joined())
}

func TestChannelSetOrderAndMatching(t *testing.T) {
	req := require.New(t)
	var s ChannelSet
	s.Confirm(beta)
	s.Confirm(alpha)
	s.Confirm(Account{ID: "20", Login: "renamed"})
	req.Equal([]Account{beta, alpha}, s.Joined())
	req.True(s.Has(Account{Login: "ALPHA"}))
}

func TestChannelErrorMessages(t *testing.T) {
	req := require.New(t)
	err := channelErr("join", "somechannel", ErrAlreadyConnected)
	req.Equal(`Already connected to channel "somechannel"!`, err.Error())
	req.True(errors.Is(err, ErrAlreadyConnected))

	err = channelErr("part", "x", ErrNotConnected)
	req.Equal(`Not connected to channel "x"!`, err.Error())

	var ce *ChannelError
	req.True(errors.As(channelErr("join", "x", ErrConfirmationTimeout), &ce))
	req.Equal("join", ce.Op)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorClass
	}{
		{nil, ClassUnknown},
		{errors.New("boom"), ClassUnknown},
		{channelErr("join", "x", ErrAlreadyConnected), ClassMisuse},
		{channelErr("send", "x", ErrNotConnected), ClassMisuse},
		{ErrCredentialInvalid, ClassCredentialExpired},
		{ErrNotSetUp, ClassNotSetUp},
		{ErrNotFound, ClassNotSetUp},
		{channelErr("join", "x", ErrConfirmationTimeout), ClassUnavailable},
		{ErrClosed, ClassUnavailable},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
