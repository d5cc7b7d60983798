package core

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ChallengeMessage returns the exact text a wallet signs to prove ownership.
// Clients build the same string, so the format must never change.
func ChallengeMessage(userKey, nonce string) string {
	return fmt.Sprintf("Link this wallet to user: %s\nNonce: %s", userKey, nonce)
}

// IsAddress reports whether s is a 0x prefixed 20-byte hex address
func IsAddress(s string) bool {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return false
	}
	return common.IsHexAddress(s)
}

// CanonicalAddress renders a well-formed address in EIP-55 checksummed form
func CanonicalAddress(s string) (string, error) {
	if !IsAddress(s) {
		return "", fmt.Errorf("malformed address %q: %w", s, ErrInvalidInput)
	}
	return common.HexToAddress(s).Hex(), nil
}

// SameAddress compares two hex addresses ignoring case
func SameAddress(a, b string) bool {
	return strings.EqualFold(trimHexPrefix(a), trimHexPrefix(b))
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
