package ports

import (
	"context"
	"time"

	"github.com/turrn3r/walletlink/core"
)

// NonceStore persists at most one challenge per user_key
type NonceStore interface {
	// Put replaces any challenge held for challenge.UserKey
	Put(ctx context.Context, challenge *core.NonceChallenge) error

	// Get returns the challenge held for userKey or core.ErrNotFound
	Get(ctx context.Context, userKey string) (*core.NonceChallenge, error)

	// Consume marks the challenge consumed iff it is unconsumed, unexpired at now
	// and carries nonce. It reports whether this call performed the transition.
	Consume(ctx context.Context, userKey, nonce string, now time.Time) (bool, error)

	// Release undoes a Consume of nonce when the link write that followed it
	// failed. It is a no-op when the challenge was replaced meanwhile.
	Release(ctx context.Context, userKey, nonce string) error

	// PurgeExpired deletes challenges that expired before the given time
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// LinkStore persists the user_key to wallet mapping
type LinkStore interface {
	// Upsert writes or overwrites the link for link.UserKey
	Upsert(ctx context.Context, link *core.WalletLink) error

	// Lookup returns the link for userKey or core.ErrNotFound
	Lookup(ctx context.Context, userKey string) (*core.WalletLink, error)
}
