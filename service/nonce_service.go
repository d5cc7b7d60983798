package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/turrn3r/walletlink/core"
	"github.com/turrn3r/walletlink/observability"
	"github.com/turrn3r/walletlink/ports"
)

// DefaultNonceTTL is how long an issued nonce stays usable
const DefaultNonceTTL = 5 * time.Minute

// nonceBytes is the entropy of an issued nonce
const nonceBytes = 16

// NonceService issues and consumes single-use nonces per user_key
type NonceService struct {
	store ports.NonceStore
	ttl   time.Duration
	now   func() time.Time
}

// NewNonceService creates a new nonce service. A nil clock means time.Now.
func NewNonceService(store ports.NonceStore, ttl time.Duration, now func() time.Time) *NonceService {
	if ttl <= 0 {
		ttl = DefaultNonceTTL
	}
	if now == nil {
		now = time.Now
	}
	return &NonceService{
		store: store,
		ttl:   ttl,
		now:   now,
	}
}

// Issue stores a fresh challenge for userKey, replacing any earlier one, and returns its nonce
func (s *NonceService) Issue(ctx context.Context, userKey string) (string, error) {
	if err := validateUserKey(userKey); err != nil {
		return "", err
	}

	buf := make([]byte, nonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := s.now()
	challenge := &core.NonceChallenge{
		UserKey:   userKey,
		Nonce:     hex.EncodeToString(buf),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	if err := s.store.Put(ctx, challenge); err != nil {
		return "", err
	}

	observability.NoncesIssued.Inc()
	return challenge.Nonce, nil
}

// Current returns the live challenge for userKey or core.ErrNonceExpiredOrMissing
func (s *NonceService) Current(ctx context.Context, userKey string) (*core.NonceChallenge, error) {
	challenge, err := s.store.Get(ctx, userKey)
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.ErrNonceExpiredOrMissing
	}
	if err != nil {
		return nil, err
	}

	if !challenge.Live(s.now()) {
		return nil, core.ErrNonceExpiredOrMissing
	}

	return challenge, nil
}

// VerifyAndConsume marks the challenge consumed. Exactly one concurrent caller
// can succeed for a given nonce; the others get core.ErrNonceExpiredOrMissing.
func (s *NonceService) VerifyAndConsume(ctx context.Context, userKey, nonce string) error {
	ok, err := s.store.Consume(ctx, userKey, nonce, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return core.ErrNonceExpiredOrMissing
	}
	return nil
}

// Release makes a consumed nonce usable again
func (s *NonceService) Release(ctx context.Context, userKey, nonce string) error {
	return s.store.Release(ctx, userKey, nonce)
}

// Purge removes challenges that are already past their expiry
func (s *NonceService) Purge(ctx context.Context) (int64, error) {
	return s.store.PurgeExpired(ctx, s.now())
}
