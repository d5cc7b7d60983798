package verifier

import (
	"crypto/ecdsa"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turrn3r/walletlink/core"
)

func sign(t *testing.T, key *ecdsa.PrivateKey, message string) string {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

func TestRecover_ReturnsSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	want := crypto.PubkeyToAddress(key.PublicKey).Hex()

	got, err := NewEthVerifier().Recover("hello", sign(t, key, "hello"))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRecover_AcceptsZeroOneRecoveryID(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	sig, err := crypto.Sign(accounts.TextHash([]byte("hello")), key)
	require.NoError(t, err)

	got, err := NewEthVerifier().Recover("hello", hexutil.Encode(sig))
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey).Hex(), got)
}

func TestRecover_Malformed(t *testing.T) {
	v := NewEthVerifier()

	cases := map[string]string{
		"not hex":   "zzzz",
		"no prefix": "abcd",
		"too short": "0x1234",
		"bad v":     hexutil.Encode(append(make([]byte, 64), 5)),
		"empty":     "",
	}
	for name, sig := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Recover("hello", sig)
			assert.ErrorIs(t, err, core.ErrInvalidSignature)
		})
	}
}

func TestVerify(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey).Hex()

	msg := core.ChallengeMessage("42", "abc")
	v := NewEthVerifier()

	t.Run("matching signer", func(t *testing.T) {
		assert.NoError(t, v.Verify("42", "abc", addr, sign(t, key, msg)))
	})

	t.Run("address case is ignored", func(t *testing.T) {
		assert.NoError(t, v.Verify("42", "abc", strings.ToLower(addr), sign(t, key, msg)))
	})

	t.Run("other signer", func(t *testing.T) {
		err := v.Verify("42", "abc", addr, sign(t, other, msg))
		assert.ErrorIs(t, err, core.ErrInvalidSignature)
	})

	t.Run("different nonce", func(t *testing.T) {
		err := v.Verify("42", "abd", addr, sign(t, key, msg))
		assert.ErrorIs(t, err, core.ErrInvalidSignature)
	})

	t.Run("different user", func(t *testing.T) {
		err := v.Verify("43", "abc", addr, sign(t, key, msg))
		assert.ErrorIs(t, err, core.ErrInvalidSignature)
	})
}
