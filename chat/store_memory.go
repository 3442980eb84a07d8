package chat

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

// MemoryStore is a process-local Store, used when no database is configured
// and in tests.
type MemoryStore struct {
	mu   sync.Mutex
	recs map[Key]Record
}

func NewMemoryStore(recs ...Record) *MemoryStore {
	s := &MemoryStore{recs: make(map[Key]Record)}
	for _, r := range recs {
		s.recs[r.Key()] = clone(r)
	}
	return s
}

func clone(r Record) Record {
	r.JoinedChannels = append([]string(nil), r.JoinedChannels...)
	return r
}

func (s *MemoryStore) Load(_ context.Context, key Key) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recs[key]
	if !ok {
		return Record{}, fmt.Errorf("%s: %w", key, ErrNotSetUp)
	}
	return clone(r), nil
}

func (s *MemoryStore) List(_ context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := lo.Map(lo.Values(s.recs), func(r Record, _ int) Record { return clone(r) })
	sort.Slice(out, func(i, j int) bool { return out[i].Key().String() < out[j].Key().String() })
	return out, nil
}

func (s *MemoryStore) Save(_ context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	rec.UpdatedAt = time.Now().UTC()
	s.mu.Lock()
	s.recs[rec.Key()] = clone(rec)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) update(key Key, fn func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recs[key]
	if !ok {
		return fmt.Errorf("%s: %w", key, ErrNotSetUp)
	}
	fn(&r)
	r.UpdatedAt = time.Now().UTC()
	s.recs[key] = r
	return nil
}

func (s *MemoryStore) SetJoinedChannels(_ context.Context, key Key, ids []string) error {
	return s.update(key, func(r *Record) { r.JoinedChannels = append([]string(nil), ids...) })
}

func (s *MemoryStore) SetExpiryNotified(_ context.Context, key Key, notified bool) error {
	return s.update(key, func(r *Record) { r.ExpiryNotified = notified })
}

func (s *MemoryStore) UpdateToken(_ context.Context, key Key, token string) error {
	return s.update(key, func(r *Record) {
		r.AccessToken = token
		r.ExpiryNotified = false
	})
}

func (s *MemoryStore) Delete(_ context.Context, key Key) error {
	s.mu.Lock()
	delete(s.recs, key)
	s.mu.Unlock()
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }
