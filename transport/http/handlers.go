package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/turrn3r/walletlink/bot"
	"github.com/turrn3r/walletlink/core"
	"github.com/turrn3r/walletlink/service"
)

// LinkHandlers contains HTTP handlers for the linking endpoints
type LinkHandlers struct {
	links *service.LinkService
}

// NewLinkHandlers creates new link handlers
func NewLinkHandlers(links *service.LinkService) *LinkHandlers {
	return &LinkHandlers{
		links: links,
	}
}

// RequestNonce handles the nonce request
func (h *LinkHandlers) RequestNonce(c *gin.Context) {
	var req struct {
		UserKey string `json:"user_key"`
		Ticket  string `json:"ticket"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, http.StatusBadRequest, ErrCodeInvalidInput, "invalid request body")
		return
	}

	nonce, err := h.links.RequestNonce(c.Request.Context(), req.UserKey, req.Ticket)
	if err != nil {
		FailErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "nonce": nonce})
}

// SubmitLink handles the signed link submission
func (h *LinkHandlers) SubmitLink(c *gin.Context) {
	var req struct {
		UserKey   string `json:"user_key"`
		Address   string `json:"address"`
		Signature string `json:"signature"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, http.StatusBadRequest, ErrCodeInvalidInput, "invalid request body")
		return
	}

	link, err := h.links.SubmitLink(c.Request.Context(), req.UserKey, req.Address, req.Signature)
	if err != nil {
		FailErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "address": link.Address})
}

// GetLink reports the wallet currently linked to a user_key. The caller must
// present the deep-link ticket for that user_key, so the route only exists
// when tickets are enabled.
func (h *LinkHandlers) GetLink(c *gin.Context) {
	if !h.links.TicketsRequired() {
		Fail(c, http.StatusNotFound, ErrCodeNotFound, "route not found")
		return
	}

	link, err := h.links.LookupWithTicket(c.Request.Context(), c.Param("user_key"), c.Query("ticket"))
	if errors.Is(err, core.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "linked": false})
		return
	}
	if err != nil {
		FailErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"linked":    true,
		"address":   link.Address,
		"linked_at": link.LinkedAt.UTC().Format(time.RFC3339),
	})
}

// WebhookHandler receives pushed bot updates
type WebhookHandler struct {
	dispatcher *bot.Dispatcher
	secret     string
}

// NewWebhookHandler creates a webhook handler checking secret on every call
func NewWebhookHandler(dispatcher *bot.Dispatcher, secret string) *WebhookHandler {
	return &WebhookHandler{
		dispatcher: dispatcher,
		secret:     secret,
	}
}

// Handle authenticates and dispatches one update. Once authenticated the
// platform always gets a 200, even for a body that does not decode.
func (h *WebhookHandler) Handle(c *gin.Context) {
	if err := bot.CheckSecret(c.GetHeader(bot.SecretHeader), h.secret); err != nil {
		FailErr(c, err)
		return
	}

	update, err := bot.DecodeUpdate(c.Request.Body)
	if err != nil {
		// A non-2xx makes the platform redeliver the same bad body
		log.Warn().Err(err).Str("request_id", requestIDFrom(c)).Msg("dropping undecodable webhook update")
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	if err := h.dispatcher.Dispatch(c.Request.Context(), update); err != nil {
		log.Error().Err(err).Str("request_id", requestIDFrom(c)).Int("update_id", update.UpdateID).Msg("webhook dispatch failed")
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Health reports liveness with the active store, bot mode and ticket setting
func Health(storeBackend, botMode string, tickets bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"store":    storeBackend,
			"bot_mode": botMode,
			"tickets":  tickets,
		})
	}
}
