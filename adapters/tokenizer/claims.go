package tokenizer

import "github.com/golang-jwt/jwt/v5"

// TicketClaims are the standard claims carried by a deep-link ticket.
// Subject holds the user_key the ticket was minted for.
type TicketClaims struct {
	jwt.RegisteredClaims
}
