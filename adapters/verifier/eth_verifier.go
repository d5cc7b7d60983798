package verifier

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/turrn3r/walletlink/core"
	"github.com/turrn3r/walletlink/ports"
)

const signatureLength = 65

// EthVerifier recovers signers of EIP-191 personal messages
type EthVerifier struct{}

// NewEthVerifier creates a new personal-message verifier
func NewEthVerifier() ports.SignatureVerifier {
	return EthVerifier{}
}

// Recover returns the checksummed address that produced signature over message
func (EthVerifier) Recover(message, signature string) (string, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return "", fmt.Errorf("failed to decode signature: %w", core.ErrInvalidSignature)
	}
	if len(sig) != signatureLength {
		return "", fmt.Errorf("signature must be %d bytes: %w", signatureLength, core.ErrInvalidSignature)
	}

	// Wallets emit V as 27/28, recovery wants 0/1
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return "", fmt.Errorf("bad recovery id: %w", core.ErrInvalidSignature)
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return "", fmt.Errorf("failed to recover public key: %w", core.ErrInvalidSignature)
	}

	return crypto.PubkeyToAddress(*pub).Hex(), nil
}

// Verify checks that claimedAddress signed the challenge message for userKey and nonce.
// It never touches nonce state.
func (v EthVerifier) Verify(userKey, nonce, claimedAddress, signature string) error {
	recovered, err := v.Recover(core.ChallengeMessage(userKey, nonce), signature)
	if err != nil {
		return err
	}

	if !core.SameAddress(recovered, claimedAddress) {
		return fmt.Errorf("recovered %s: %w", recovered, core.ErrInvalidSignature)
	}

	return nil
}
