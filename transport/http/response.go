package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/turrn3r/walletlink/core"
)

// Error codes carried in the "error" field of failure responses
const (
	ErrCodeInvalidInput     = "invalid_input"
	ErrCodeInvalidSignature = "invalid_signature"
	ErrCodeNonceExpired     = "nonce_expired_or_missing"
	ErrCodeInvalidTicket    = "invalid_ticket"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"
)

// ErrorResponse is the failure envelope
type ErrorResponse struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// Fail aborts the request with the failure envelope
func Fail(c *gin.Context, status int, code, detail string) {
	c.AbortWithStatusJSON(status, ErrorResponse{OK: false, Error: code, Detail: detail})
}

// FailErr maps a domain error to its status and code. Storage failures keep
// their detail out of the response.
func FailErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		Fail(c, http.StatusBadRequest, ErrCodeInvalidInput, err.Error())
	case errors.Is(err, core.ErrInvalidSignature):
		Fail(c, http.StatusBadRequest, ErrCodeInvalidSignature, err.Error())
	case errors.Is(err, core.ErrNonceExpiredOrMissing):
		Fail(c, http.StatusBadRequest, ErrCodeNonceExpired, "request a new link with /connect")
	case errors.Is(err, core.ErrInvalidTicket):
		Fail(c, http.StatusBadRequest, ErrCodeInvalidTicket, err.Error())
	case errors.Is(err, core.ErrUnauthorized):
		Fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "")
	default:
		log.Error().Err(err).Str("request_id", requestIDFrom(c)).Str("path", c.FullPath()).Msg("request failed")
		Fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}
