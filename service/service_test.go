package service

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turrn3r/walletlink/adapters/store"
	"github.com/turrn3r/walletlink/adapters/tokenizer"
	"github.com/turrn3r/walletlink/adapters/verifier"
	"github.com/turrn3r/walletlink/core"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []core.LinkedEvent
	err    error
}

func (p *recordingPublisher) PublishLinked(ctx context.Context, event core.LinkedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

type wallet struct {
	key     *ecdsa.PrivateKey
	address string
}

func newWallet(t *testing.T) wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return wallet{key: key, address: crypto.PubkeyToAddress(key.PublicKey).Hex()}
}

func (w wallet) sign(t *testing.T, userKey, nonce string) string {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash([]byte(core.ChallengeMessage(userKey, nonce))), w.key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

type fixture struct {
	clock  *fakeClock
	store  *store.MemoryStore
	nonces *NonceService
	links  *LinkService
	pub    *recordingPublisher
}

func newFixture(t *testing.T, ttl time.Duration) *fixture {
	t.Helper()
	clock := newFakeClock()
	st := store.NewMemoryStore()
	nonces := NewNonceService(st, ttl, clock.Now)
	pub := &recordingPublisher{}
	return &fixture{
		clock:  clock,
		store:  st,
		nonces: nonces,
		links:  NewLinkService(nonces, verifier.NewEthVerifier(), st, pub, nil),
		pub:    pub,
	}
}

func TestIssue_NonceShape(t *testing.T) {
	f := newFixture(t, time.Minute)

	a, err := f.nonces.Issue(context.Background(), "42")
	require.NoError(t, err)
	b, err := f.nonces.Issue(context.Background(), "42")
	require.NoError(t, err)

	assert.Len(t, a, 2*nonceBytes)
	assert.NotEqual(t, a, b)
}

func TestIssue_EmptyUserKey(t *testing.T) {
	f := newFixture(t, time.Minute)
	_, err := f.nonces.Issue(context.Background(), " ")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestIssue_SecondInvalidatesFirst(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()

	first, err := f.nonces.Issue(ctx, "42")
	require.NoError(t, err)
	second, err := f.nonces.Issue(ctx, "42")
	require.NoError(t, err)

	assert.ErrorIs(t, f.nonces.VerifyAndConsume(ctx, "42", first), core.ErrNonceExpiredOrMissing)
	assert.NoError(t, f.nonces.VerifyAndConsume(ctx, "42", second))
}

func TestVerifyAndConsume_AtMostOnce(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()

	nonce, err := f.nonces.Issue(ctx, "42")
	require.NoError(t, err)

	require.NoError(t, f.nonces.VerifyAndConsume(ctx, "42", nonce))
	assert.ErrorIs(t, f.nonces.VerifyAndConsume(ctx, "42", nonce), core.ErrNonceExpiredOrMissing)
}

func TestVerifyAndConsume_Expired(t *testing.T) {
	f := newFixture(t, 60*time.Second)
	ctx := context.Background()

	nonce, err := f.nonces.Issue(ctx, "42")
	require.NoError(t, err)

	f.clock.Advance(61 * time.Second)
	assert.ErrorIs(t, f.nonces.VerifyAndConsume(ctx, "42", nonce), core.ErrNonceExpiredOrMissing)

	_, err = f.nonces.Current(ctx, "42")
	assert.ErrorIs(t, err, core.ErrNonceExpiredOrMissing)
}

func TestPurge(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()

	_, err := f.nonces.Issue(ctx, "42")
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)
	n, err := f.nonces.Purge(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSubmitLink_Success(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()
	w := newWallet(t)

	nonce, err := f.links.RequestNonce(ctx, "42", "")
	require.NoError(t, err)

	link, err := f.links.SubmitLink(ctx, "42", w.address, w.sign(t, "42", nonce))
	require.NoError(t, err)
	assert.Equal(t, w.address, link.Address)

	got, err := f.links.Lookup(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, w.address, got.Address)

	require.Len(t, f.pub.events, 1)
	assert.Equal(t, "42", f.pub.events[0].UserKey)
	assert.Equal(t, w.address, f.pub.events[0].Address)

	// The nonce is spent
	_, err = f.links.SubmitLink(ctx, "42", w.address, w.sign(t, "42", nonce))
	assert.ErrorIs(t, err, core.ErrNonceExpiredOrMissing)
}

func TestSubmitLink_LowercaseAddressStoredCanonical(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()
	w := newWallet(t)

	nonce, err := f.links.RequestNonce(ctx, "42", "")
	require.NoError(t, err)

	link, err := f.links.SubmitLink(ctx, "42", strings.ToLower(w.address), w.sign(t, "42", nonce))
	require.NoError(t, err)
	assert.Equal(t, w.address, link.Address)
}

func TestSubmitLink_OtherSignerKeepsNonce(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()
	owner := newWallet(t)
	attacker := newWallet(t)

	nonce, err := f.links.RequestNonce(ctx, "42", "")
	require.NoError(t, err)

	_, err = f.links.SubmitLink(ctx, "42", owner.address, attacker.sign(t, "42", nonce))
	assert.ErrorIs(t, err, core.ErrInvalidSignature)

	_, err = f.links.Lookup(ctx, "42")
	assert.ErrorIs(t, err, core.ErrNotFound)

	// Retry with the same nonce still works
	_, err = f.links.SubmitLink(ctx, "42", owner.address, owner.sign(t, "42", nonce))
	assert.NoError(t, err)
}

func TestSubmitLink_NoChallenge(t *testing.T) {
	f := newFixture(t, time.Minute)
	w := newWallet(t)

	_, err := f.links.SubmitLink(context.Background(), "42", w.address, w.sign(t, "42", "anything"))
	assert.ErrorIs(t, err, core.ErrNonceExpiredOrMissing)
}

func TestSubmitLink_ExpiredChallenge(t *testing.T) {
	f := newFixture(t, 60*time.Second)
	ctx := context.Background()
	w := newWallet(t)

	nonce, err := f.links.RequestNonce(ctx, "42", "")
	require.NoError(t, err)
	f.clock.Advance(61 * time.Second)

	_, err = f.links.SubmitLink(ctx, "42", w.address, w.sign(t, "42", nonce))
	assert.ErrorIs(t, err, core.ErrNonceExpiredOrMissing)
}

func TestSubmitLink_StaleNonceAfterReissue(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()
	w := newWallet(t)

	stale, err := f.links.RequestNonce(ctx, "42", "")
	require.NoError(t, err)
	_, err = f.links.RequestNonce(ctx, "42", "")
	require.NoError(t, err)

	// A signature over the replaced nonce no longer matches the server-side message
	_, err = f.links.SubmitLink(ctx, "42", w.address, w.sign(t, "42", stale))
	assert.ErrorIs(t, err, core.ErrInvalidSignature)
}

func TestSubmitLink_InvalidInput(t *testing.T) {
	f := newFixture(t, time.Minute)
	w := newWallet(t)

	cases := []struct {
		name, userKey, address, signature string
	}{
		{"empty user", "", w.address, "0x00"},
		{"empty address", "42", "", "0x00"},
		{"short address", "42", "0x1234", "0x00"},
		{"no prefix", "42", w.address[2:], "0x00"},
		{"not hex", "42", "0xzz11111111111111111111111111111111111111", "0x00"},
		{"empty signature", "42", w.address, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.links.SubmitLink(context.Background(), tc.userKey, tc.address, tc.signature)
			assert.ErrorIs(t, err, core.ErrInvalidInput)
		})
	}
}

func TestSubmitLink_Relink(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()
	a := newWallet(t)
	b := newWallet(t)

	nonce, err := f.links.RequestNonce(ctx, "42", "")
	require.NoError(t, err)
	_, err = f.links.SubmitLink(ctx, "42", a.address, a.sign(t, "42", nonce))
	require.NoError(t, err)

	nonce, err = f.links.RequestNonce(ctx, "42", "")
	require.NoError(t, err)
	_, err = f.links.SubmitLink(ctx, "42", b.address, b.sign(t, "42", nonce))
	require.NoError(t, err)

	got, err := f.links.Lookup(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, b.address, got.Address)
}

func TestSubmitLink_ConcurrentSubmissions(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()
	w := newWallet(t)

	nonce, err := f.links.RequestNonce(ctx, "42", "")
	require.NoError(t, err)
	sig := w.sign(t, "42", nonce)

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.links.SubmitLink(ctx, "42", w.address, sig)
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, core.ErrNonceExpiredOrMissing)
	}
	assert.Equal(t, 1, ok)
}

func TestSubmitLink_PublishFailureDoesNotFail(t *testing.T) {
	f := newFixture(t, time.Minute)
	f.pub.err = errors.New("broker down")
	ctx := context.Background()
	w := newWallet(t)

	nonce, err := f.links.RequestNonce(ctx, "42", "")
	require.NoError(t, err)
	_, err = f.links.SubmitLink(ctx, "42", w.address, w.sign(t, "42", nonce))
	assert.NoError(t, err)
}

type brokenLinks struct{}

func (brokenLinks) Upsert(ctx context.Context, link *core.WalletLink) error {
	return core.ErrStorageFailure
}

func (brokenLinks) Lookup(ctx context.Context, userKey string) (*core.WalletLink, error) {
	return nil, core.ErrStorageFailure
}

func TestSubmitLink_StorageFailure(t *testing.T) {
	f := newFixture(t, time.Minute)
	svc := NewLinkService(f.nonces, verifier.NewEthVerifier(), brokenLinks{}, f.pub, nil)
	ctx := context.Background()
	w := newWallet(t)

	nonce, err := svc.RequestNonce(ctx, "42", "")
	require.NoError(t, err)
	_, err = svc.SubmitLink(ctx, "42", w.address, w.sign(t, "42", nonce))
	assert.ErrorIs(t, err, core.ErrStorageFailure)
	assert.Empty(t, f.pub.events)
}

func TestSubmitLink_StorageFailureKeepsNonce(t *testing.T) {
	f := newFixture(t, time.Minute)
	broken := NewLinkService(f.nonces, verifier.NewEthVerifier(), brokenLinks{}, f.pub, nil)
	ctx := context.Background()
	w := newWallet(t)

	nonce, err := f.links.RequestNonce(ctx, "42", "")
	require.NoError(t, err)
	sig := w.sign(t, "42", nonce)

	_, err = broken.SubmitLink(ctx, "42", w.address, sig)
	require.ErrorIs(t, err, core.ErrStorageFailure)

	challenge, err := f.nonces.Current(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, nonce, challenge.Nonce)
	assert.False(t, challenge.Consumed)

	// Once storage recovers the same signature links
	link, err := f.links.SubmitLink(ctx, "42", w.address, sig)
	require.NoError(t, err)
	assert.Equal(t, w.address, link.Address)
}

func TestRequestNonce_Tickets(t *testing.T) {
	f := newFixture(t, time.Minute)
	tk := tokenizer.NewJWTTicketer([]byte("secret"), time.Hour)
	svc := NewLinkService(f.nonces, verifier.NewEthVerifier(), f.store, nil, tk)
	ctx := context.Background()
	require.True(t, svc.TicketsRequired())

	_, err := svc.RequestNonce(ctx, "42", "")
	assert.ErrorIs(t, err, core.ErrInvalidTicket)

	other, err := tk.Issue("43")
	require.NoError(t, err)
	_, err = svc.RequestNonce(ctx, "42", other)
	assert.ErrorIs(t, err, core.ErrInvalidTicket)

	ticket, err := tk.Issue("42")
	require.NoError(t, err)
	nonce, err := svc.RequestNonce(ctx, "42", ticket)
	require.NoError(t, err)
	assert.NotEmpty(t, nonce)
}

func TestLookupWithTicket(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()
	w := newWallet(t)
	nonce, err := f.nonces.Issue(ctx, "42")
	require.NoError(t, err)
	_, err = f.links.SubmitLink(ctx, "42", w.address, w.sign(t, "42", nonce))
	require.NoError(t, err)

	// Without a ticketer there is nothing to authorize the read with
	_, err = f.links.LookupWithTicket(ctx, "42", "anything")
	assert.ErrorIs(t, err, core.ErrInvalidTicket)

	tk := tokenizer.NewJWTTicketer([]byte("secret"), time.Hour)
	svc := NewLinkService(f.nonces, verifier.NewEthVerifier(), f.store, nil, tk)

	_, err = svc.LookupWithTicket(ctx, "42", "")
	assert.ErrorIs(t, err, core.ErrInvalidTicket)

	other, err := tk.Issue("43")
	require.NoError(t, err)
	_, err = svc.LookupWithTicket(ctx, "42", other)
	assert.ErrorIs(t, err, core.ErrInvalidTicket)

	ticket, err := tk.Issue("42")
	require.NoError(t, err)
	link, err := svc.LookupWithTicket(ctx, "42", ticket)
	require.NoError(t, err)
	assert.Equal(t, w.address, link.Address)

	_, err = svc.LookupWithTicket(ctx, "43", other)
	assert.ErrorIs(t, err, core.ErrNotFound)
}
