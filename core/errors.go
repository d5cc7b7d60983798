package core

import "errors"

var (
	// ErrInvalidInput is returned for missing or malformed request fields
	ErrInvalidInput = errors.New("invalid input")

	// ErrNonceExpiredOrMissing is returned when no live challenge exists for a user_key
	ErrNonceExpiredOrMissing = errors.New("nonce expired or missing")

	// ErrInvalidSignature is returned when the recovered signer does not match the claimed address
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrUnauthorized is returned when a webhook secret does not match
	ErrUnauthorized = errors.New("unauthorized")

	// ErrStorageFailure is returned when the persistence layer fails
	ErrStorageFailure = errors.New("storage failure")

	// ErrNotFound is returned by lookups that found nothing
	ErrNotFound = errors.New("not found")

	// ErrInvalidTicket is returned when a deep-link ticket is missing, expired or bound to another user_key
	ErrInvalidTicket = errors.New("invalid ticket")
)
