package chat

import (
	"sync"

	"github.com/samber/lo"
)

type memberState int

const (
	memberPending memberState = iota
	memberJoined
	memberParting
)

type member struct {
	account Account
	state   memberState
}

// ChannelSet is the ordered set of channels a connection is in. A channel is
// claimed (pending) before its JOIN is sent, so a concurrent second join of
// the same channel fails instead of racing the first.
type ChannelSet struct {
	mu      sync.Mutex
	members []*member
}

func (s *ChannelSet) find(ch Account) (int, *member) {
	for i, m := range s.members {
		if m.account.Same(ch) {
			return i, m
		}
	}
	return -1, nil
}

// Claim marks ch as pending. It fails if ch is already present in any state.
func (s *ChannelSet) Claim(ch Account) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, m := s.find(ch); m != nil {
		return false
	}
	s.members = append(s.members, &member{account: ch, state: memberPending})
	return true
}

// Confirm marks a pending claim as joined, adding ch if it is absent.
func (s *ChannelSet) Confirm(ch Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, m := s.find(ch); m != nil {
		m.state = memberJoined
		return
	}
	s.members = append(s.members, &member{account: ch, state: memberJoined})
}

// Release drops a claim that is still pending.
func (s *ChannelSet) Release(ch Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, m := s.find(ch); m != nil && m.state == memberPending {
		s.members = append(s.members[:i], s.members[i+1:]...)
	}
}

// BeginPart moves a joined channel to parting. It fails if ch is not joined.
func (s *ChannelSet) BeginPart(ch Account) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, m := s.find(ch)
	if m == nil || m.state != memberJoined {
		return false
	}
	m.state = memberParting
	return true
}

// AbortPart reverts a parting channel to joined.
func (s *ChannelSet) AbortPart(ch Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, m := s.find(ch); m != nil && m.state == memberParting {
		m.state = memberJoined
	}
}

// Remove deletes ch regardless of state.
func (s *ChannelSet) Remove(ch Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, m := s.find(ch); m != nil {
		s.members = append(s.members[:i], s.members[i+1:]...)
	}
}

// Has reports whether ch is joined (or being parted, which still receives
// messages until Twitch confirms).
func (s *ChannelSet) Has(ch Account) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, m := s.find(ch)
	return m != nil && m.state != memberPending
}

// Lookup returns the joined channel whose login is login.
func (s *ChannelSet) Lookup(login string) (Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, m := s.find(Account{Login: login})
	if m == nil || m.state == memberPending {
		return Account{}, false
	}
	return m.account, true
}

// Joined returns the confirmed channels in join order.
func (s *ChannelSet) Joined() []Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.FilterMap(s.members, func(m *member, _ int) (Account, bool) {
		return m.account, m.state != memberPending
	})
}

// IDs returns the ids of confirmed channels, for persistence.
func (s *ChannelSet) IDs() []string {
	return lo.Map(s.Joined(), func(a Account, _ int) string { return a.ID })
}

func (s *ChannelSet) Len() int {
	return len(s.Joined())
}
