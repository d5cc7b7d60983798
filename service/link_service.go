package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/turrn3r/walletlink/core"
	"github.com/turrn3r/walletlink/observability"
	"github.com/turrn3r/walletlink/ports"
)

// maxUserKeyLen bounds the opaque platform identifier
const maxUserKeyLen = 128

// LinkService ties nonce issuance, signature verification and link persistence together
type LinkService struct {
	nonces   *NonceService
	verifier ports.SignatureVerifier
	links    ports.LinkStore
	eventPub ports.EventPublisher
	ticketer ports.Ticketer
	now      func() time.Time
}

// NewLinkService creates a new link service. eventPub and ticketer may be nil.
func NewLinkService(
	nonces *NonceService,
	verifier ports.SignatureVerifier,
	links ports.LinkStore,
	eventPub ports.EventPublisher,
	ticketer ports.Ticketer,
) *LinkService {
	return &LinkService{
		nonces:   nonces,
		verifier: verifier,
		links:    links,
		eventPub: eventPub,
		ticketer: ticketer,
		now:      nonces.now,
	}
}

// TicketsRequired reports whether nonce requests must carry a deep-link ticket
func (s *LinkService) TicketsRequired() bool {
	return s.ticketer != nil
}

// RequestNonce issues a challenge for userKey. When tickets are enabled the
// ticket must have been minted for userKey.
func (s *LinkService) RequestNonce(ctx context.Context, userKey, ticket string) (string, error) {
	if err := validateUserKey(userKey); err != nil {
		return "", err
	}

	if s.ticketer != nil {
		if err := s.checkTicket(userKey, ticket); err != nil {
			return "", err
		}
	}

	return s.nonces.Issue(ctx, userKey)
}

func (s *LinkService) checkTicket(userKey, ticket string) error {
	if ticket == "" {
		return fmt.Errorf("ticket is required: %w", core.ErrInvalidTicket)
	}
	return s.ticketer.Verify(ticket, userKey)
}

// SubmitLink verifies that address signed the current challenge for userKey
// and stores the link. The nonce is taken from server state, never from the client.
func (s *LinkService) SubmitLink(ctx context.Context, userKey, address, signature string) (*core.WalletLink, error) {
	link, err := s.submitLink(ctx, userKey, address, signature)
	observability.LinkAttempts.WithLabelValues(outcome(err)).Inc()
	return link, err
}

func (s *LinkService) submitLink(ctx context.Context, userKey, address, signature string) (*core.WalletLink, error) {
	if err := validateUserKey(userKey); err != nil {
		return nil, err
	}
	if strings.TrimSpace(signature) == "" {
		return nil, fmt.Errorf("signature is required: %w", core.ErrInvalidInput)
	}
	canonical, err := core.CanonicalAddress(strings.TrimSpace(address))
	if err != nil {
		return nil, err
	}

	challenge, err := s.nonces.Current(ctx, userKey)
	if err != nil {
		return nil, err
	}

	// A mismatch leaves the nonce live so the user can retry
	if err := s.verifier.Verify(userKey, challenge.Nonce, canonical, strings.TrimSpace(signature)); err != nil {
		return nil, err
	}

	if err := s.nonces.VerifyAndConsume(ctx, userKey, challenge.Nonce); err != nil {
		return nil, err
	}

	link := &core.WalletLink{
		UserKey:  userKey,
		Address:  canonical,
		LinkedAt: s.now(),
	}
	if err := s.links.Upsert(ctx, link); err != nil {
		// Nothing was linked, so hand the nonce back for a retry
		if releaseErr := s.nonces.Release(ctx, userKey, challenge.Nonce); releaseErr != nil {
			log.Error().Err(releaseErr).Str("user_key", userKey).Msg("failed to release nonce after link write failure")
		}
		return nil, err
	}

	log.Info().Str("user_key", userKey).Str("address", canonical).Msg("wallet linked")

	if s.eventPub != nil {
		event := core.LinkedEvent{UserKey: link.UserKey, Address: link.Address, LinkedAt: link.LinkedAt}
		if err := s.eventPub.PublishLinked(ctx, event); err != nil {
			// The link is stored, the notification is best effort
			log.Warn().Err(err).Str("user_key", userKey).Msg("failed to publish link event")
		}
	}

	return link, nil
}

// Lookup returns the wallet linked to userKey or core.ErrNotFound
func (s *LinkService) Lookup(ctx context.Context, userKey string) (*core.WalletLink, error) {
	if err := validateUserKey(userKey); err != nil {
		return nil, err
	}
	return s.links.Lookup(ctx, userKey)
}

// LookupWithTicket returns the link for userKey to a caller holding a ticket
// minted for it. Without tickets there is no way to authorise the read.
func (s *LinkService) LookupWithTicket(ctx context.Context, userKey, ticket string) (*core.WalletLink, error) {
	if err := validateUserKey(userKey); err != nil {
		return nil, err
	}
	if s.ticketer == nil {
		return nil, fmt.Errorf("tickets are disabled: %w", core.ErrInvalidTicket)
	}
	if err := s.checkTicket(userKey, ticket); err != nil {
		return nil, err
	}
	return s.links.Lookup(ctx, userKey)
}

func validateUserKey(userKey string) error {
	if strings.TrimSpace(userKey) == "" {
		return fmt.Errorf("user_key is required: %w", core.ErrInvalidInput)
	}
	if len(userKey) > maxUserKeyLen {
		return fmt.Errorf("user_key longer than %d bytes: %w", maxUserKeyLen, core.ErrInvalidInput)
	}
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeLinked
	case errors.Is(err, core.ErrInvalidInput):
		return observability.OutcomeInvalidInput
	case errors.Is(err, core.ErrInvalidSignature):
		return observability.OutcomeInvalidSignature
	case errors.Is(err, core.ErrNonceExpiredOrMissing):
		return observability.OutcomeNonceMissing
	default:
		return observability.OutcomeStorageFailure
	}
}
