package ports

// Ticketer issues and checks deep-link tickets binding a link URL to a user_key
type Ticketer interface {
	Issue(userKey string) (string, error)
	Verify(ticket, userKey string) error
}

// SignatureVerifier recovers signers of personal messages
type SignatureVerifier interface {
	// Recover returns the checksummed address that signed message
	Recover(message, signature string) (string, error)

	// Verify checks that claimedAddress signed the challenge message for userKey and nonce
	Verify(userKey, nonce, claimedAddress, signature string) error
}
