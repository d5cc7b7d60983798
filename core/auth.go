package core

import "time"

// NonceChallenge is a single-use nonce issued to a user_key
type NonceChallenge struct {
	UserKey   string    // Platform supplied identifier, untrusted but stable
	Nonce     string    // Random token to be signed
	IssuedAt  time.Time // When the challenge was created
	ExpiresAt time.Time // When the challenge expires
	Consumed  bool      // Set once a link has been proven with this nonce
}

// Live reports whether the challenge can still be consumed at now
func (c *NonceChallenge) Live(now time.Time) bool {
	return !c.Consumed && !now.After(c.ExpiresAt)
}

// WalletLink binds a user_key to a wallet address
type WalletLink struct {
	UserKey  string    // Platform supplied identifier
	Address  string    // Checksummed hex address
	LinkedAt time.Time // When the link was last written
}

// LinkedEvent is published after a wallet has been linked
type LinkedEvent struct {
	UserKey  string    `json:"user_key"`
	Address  string    `json:"address"`
	LinkedAt time.Time `json:"linked_at"`
}
