package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/turrn3r/walletlink/core"
)

// consumeScript performs the conditional consume server-side so that
// concurrent submissions for one user_key observe a single transition.
//
// KEYS[1] challenge hash, ARGV[1] nonce, ARGV[2] now in unix millis
var consumeScript = redis.NewScript(`
local h = redis.call("HMGET", KEYS[1], "nonce", "expires_at", "consumed")
if not h[1] then
	return 0
end
if h[1] ~= ARGV[1] or h[3] == "1" or tonumber(h[2]) < tonumber(ARGV[2]) then
	return 0
end
redis.call("HSET", KEYS[1], "consumed", "1")
return 1
`)

// releaseScript clears the consumed flag if the hash still carries the nonce.
//
// KEYS[1] challenge hash, ARGV[1] nonce
var releaseScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "nonce") == ARGV[1] then
	redis.call("HSET", KEYS[1], "consumed", "0")
	return 1
end
return 0
`)

// RedisStore is a Redis implementation of the NonceStore and LinkStore ports.
// Challenges are hashes that also carry a key TTL, so expired ones vanish on their own.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "walletlink:",
	}
}

func (s *RedisStore) nonceKey(userKey string) string {
	return s.prefix + "nonce:" + userKey
}

func (s *RedisStore) linkKey(userKey string) string {
	return s.prefix + "link:" + userKey
}

// Put replaces the challenge hash for the user_key
func (s *RedisStore) Put(ctx context.Context, challenge *core.NonceChallenge) error {
	key := s.nonceKey(challenge.UserKey)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"nonce", challenge.Nonce,
			"issued_at", challenge.IssuedAt.UnixMilli(),
			"expires_at", challenge.ExpiresAt.UnixMilli(),
			"consumed", boolFlag(challenge.Consumed),
		)
		pipe.PExpireAt(ctx, key, challenge.ExpiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store challenge: %v: %w", err, core.ErrStorageFailure)
	}

	return nil
}

// Get reads the challenge hash for the user_key
func (s *RedisStore) Get(ctx context.Context, userKey string) (*core.NonceChallenge, error) {
	vals, err := s.client.HGetAll(ctx, s.nonceKey(userKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read challenge: %v: %w", err, core.ErrStorageFailure)
	}
	if len(vals) == 0 {
		return nil, core.ErrNotFound
	}

	issued, err := strconv.ParseInt(vals["issued_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt issued_at: %v: %w", err, core.ErrStorageFailure)
	}
	expires, err := strconv.ParseInt(vals["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt expires_at: %v: %w", err, core.ErrStorageFailure)
	}

	return &core.NonceChallenge{
		UserKey:   userKey,
		Nonce:     vals["nonce"],
		IssuedAt:  time.UnixMilli(issued),
		ExpiresAt: time.UnixMilli(expires),
		Consumed:  vals["consumed"] == "1",
	}, nil
}

// Consume runs the conditional consume script
func (s *RedisStore) Consume(ctx context.Context, userKey, nonce string, now time.Time) (bool, error) {
	n, err := consumeScript.Run(ctx, s.client, []string{s.nonceKey(userKey)}, nonce, now.UnixMilli()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to consume challenge: %v: %w", err, core.ErrStorageFailure)
	}

	return n == 1, nil
}

// Release runs the release script
func (s *RedisStore) Release(ctx context.Context, userKey, nonce string) error {
	if err := releaseScript.Run(ctx, s.client, []string{s.nonceKey(userKey)}, nonce).Err(); err != nil {
		return fmt.Errorf("failed to release challenge: %v: %w", err, core.ErrStorageFailure)
	}

	return nil
}

// PurgeExpired is a no-op, key TTLs already drop expired challenges
func (s *RedisStore) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

// Upsert overwrites the link hash for the user_key
func (s *RedisStore) Upsert(ctx context.Context, link *core.WalletLink) error {
	err := s.client.HSet(ctx, s.linkKey(link.UserKey),
		"address", link.Address,
		"linked_at", link.LinkedAt.UnixMilli(),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to store link: %v: %w", err, core.ErrStorageFailure)
	}

	return nil
}

// Lookup reads the link hash for the user_key
func (s *RedisStore) Lookup(ctx context.Context, userKey string) (*core.WalletLink, error) {
	vals, err := s.client.HGetAll(ctx, s.linkKey(userKey)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read link: %v: %w", err, core.ErrStorageFailure)
	}
	if len(vals) == 0 {
		return nil, core.ErrNotFound
	}

	linkedAt, err := strconv.ParseInt(vals["linked_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt linked_at: %v: %w", err, core.ErrStorageFailure)
	}

	return &core.WalletLink{
		UserKey:  userKey,
		Address:  vals["address"],
		LinkedAt: time.UnixMilli(linkedAt),
	}, nil
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
