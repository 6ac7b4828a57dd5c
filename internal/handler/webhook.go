package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/qrforge/qrforge/internal/webhook"
	"github.com/rs/zerolog/log"
)

type WebhookHandler struct {
	receiver *webhook.Receiver
}

func NewWebhookHandler(receiver *webhook.Receiver) *WebhookHandler {
	return &WebhookHandler{receiver: receiver}
}

// Handles POST /webhook/account. The signature header is the only
// authentication; a rejected payload is never partially applied, and the
// backend may safely retry deliveries.
func (h *WebhookHandler) Handle(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read payload"})
		return
	}

	signature := c.GetHeader(webhook.HeaderSignature)

	result, err := h.receiver.Handle(c.Request.Context(), payload, signature)
	if err != nil {
		log.Warn().
			Str("request_id", c.GetString("request_id")).
			Err(err).
			Msg("webhook rejected")

		switch {
		case errors.Is(err, webhook.ErrBadSignature):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "bad signature"})
		case errors.Is(err, webhook.ErrInvalidTier), errors.Is(err, webhook.ErrMalformedPayload):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to apply mutation"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "applied",
		"identity": result.Identity,
		"action":   result.Action,
	})
}
