package handler

import (
	"io"
	"net/http"

	"orphancare/internal/webhook"
	pkgerrors "orphancare/pkg/errors"
)

// maxWebhookBody bounds the request body; Stripe event payloads stay well
// under this.
const maxWebhookBody = 1 << 16

type WebhookHandler struct {
	processor *webhook.Processor
	logger    Logger
}

func NewWebhookHandler(processor *webhook.Processor, log Logger) *WebhookHandler {
	return &WebhookHandler{processor: processor, logger: log}
}

// HandleEvent receives gateway webhook deliveries.
//
// Status codes drive the gateway's retry behavior: 2xx acknowledges, 400
// tells it the payload is bad and must not be retried, 500 asks for
// redelivery after a store failure.
func (h *WebhookHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if err := h.processor.Process(r.Context(), payload, signature); err != nil {
		if pkgerrors.Is(err, pkgerrors.ErrInvalidSignature) {
			respondError(w, http.StatusBadRequest, "Invalid signature")
			return
		}
		h.logger.Error("Webhook processing failed", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Webhook processing failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}
