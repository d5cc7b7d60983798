package tokenizer

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/turrn3r/walletlink/core"
	"github.com/turrn3r/walletlink/ports"
)

const AudienceTicket = "walletlink:ticket"

// JWTTicketer implements the Ticketer interface using HS256 JWTs
type JWTTicketer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTTicketer creates a new ticketer signing with secret
func NewJWTTicketer(secret []byte, ttl time.Duration) ports.Ticketer {
	return &JWTTicketer{secret: secret, ttl: ttl, now: time.Now}
}

// Issue mints a ticket bound to userKey
func (j *JWTTicketer) Issue(userKey string) (string, error) {
	now := j.now()
	claims := TicketClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userKey,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Audience:  jwt.ClaimStrings{AudienceTicket},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign ticket: %w", err)
	}

	return signedToken, nil
}

// Verify checks the ticket signature, audience, expiry and that it was minted for userKey
func (j *JWTTicketer) Verify(ticket, userKey string) error {
	token, err := jwt.ParseWithClaims(ticket, &TicketClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	}, jwt.WithAudience(AudienceTicket), jwt.WithTimeFunc(j.now), jwt.WithExpirationRequired())
	if err != nil {
		return fmt.Errorf("failed to parse ticket: %v: %w", err, core.ErrInvalidTicket)
	}

	claims, ok := token.Claims.(*TicketClaims)
	if !ok || !token.Valid {
		return core.ErrInvalidTicket
	}

	if claims.Subject != userKey {
		return fmt.Errorf("ticket minted for another user: %w", core.ErrInvalidTicket)
	}

	return nil
}
