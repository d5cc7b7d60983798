package store

import (
	"context"
	"sync"
	"time"

	"github.com/turrn3r/walletlink/core"
)

// MemoryStore is an in-memory implementation of the NonceStore and LinkStore ports.
// State does not survive a restart.
type MemoryStore struct {
	challenges map[string]core.NonceChallenge
	links      map[string]core.WalletLink
	mu         sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		challenges: make(map[string]core.NonceChallenge),
		links:      make(map[string]core.WalletLink),
	}
}

// Put replaces the challenge held for the user_key
func (s *MemoryStore) Put(ctx context.Context, challenge *core.NonceChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.challenges[challenge.UserKey] = *challenge
	return nil
}

// Get returns a copy of the challenge held for the user_key
func (s *MemoryStore) Get(ctx context.Context, userKey string) (*core.NonceChallenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.challenges[userKey]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &c, nil
}

// Consume flips the consumed flag under the write lock
func (s *MemoryStore) Consume(ctx context.Context, userKey, nonce string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[userKey]
	if !ok || c.Nonce != nonce || !c.Live(now) {
		return false, nil
	}

	c.Consumed = true
	s.challenges[userKey] = c
	return true, nil
}

// Release clears the consumed flag if the challenge still carries nonce
func (s *MemoryStore) Release(ctx context.Context, userKey, nonce string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[userKey]
	if !ok || c.Nonce != nonce {
		return nil
	}

	c.Consumed = false
	s.challenges[userKey] = c
	return nil
}

// PurgeExpired drops challenges that expired before the given time
func (s *MemoryStore) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k, c := range s.challenges {
		if c.ExpiresAt.Before(before) {
			delete(s.challenges, k)
			n++
		}
	}
	return n, nil
}

// Upsert writes the link, last writer wins
func (s *MemoryStore) Upsert(ctx context.Context, link *core.WalletLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.links[link.UserKey] = *link
	return nil
}

// Lookup returns a copy of the link held for the user_key
func (s *MemoryStore) Lookup(ctx context.Context, userKey string) (*core.WalletLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.links[userKey]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &l, nil
}
