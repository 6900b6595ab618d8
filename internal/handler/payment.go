package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/plutoshop/shop-api/internal/payment"
)

type checkoutResponse struct {
	URL string `json:"url"`
}

func (h *Handler) createCheckoutSession(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	url, err := h.payments.CreateCheckoutSession(r.Context(), orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.invalidateStatus(r, orderID)
	writeJSON(w, http.StatusOK, checkoutResponse{URL: url})
}

// Stripe caps event payloads well below this; anything larger is garbage.
const maxWebhookBody = 64 << 10

// stripeWebhook verifies the signature, parses the event and applies it.
// Unprocessable but authentic events get a 200 so the provider stops
// redelivering; storage failures get a 5xx so it retries.
func (h *Handler) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "cannot read request body")
		return
	}

	ev, err := payment.ParseEvent(payload, r.Header.Get("Stripe-Signature"), h.payments.WebhookSecret())
	if err != nil {
		var sigErr *payment.SignatureError
		if errors.As(err, &sigErr) {
			zctx.From(r.Context()).Warn("webhook signature rejected", zap.Error(err))
			writeErrorMessage(w, http.StatusBadRequest, "invalid signature")
			return
		}
		writeErrorMessage(w, http.StatusBadRequest, "malformed event payload")
		return
	}

	orderID, err := h.payments.HandleEvent(r.Context(), ev)
	if err != nil {
		zctx.From(r.Context()).Error("webhook event processing failed",
			zap.String("event_id", ev.ID),
			zap.String("type", ev.Type),
			zap.Error(err),
		)
		writeErrorMessage(w, http.StatusInternalServerError, "event processing failed")
		return
	}

	// HandleEvent resolves the order itself (metadata or intent fallback), so
	// the invalidation covers both paths.
	if orderID != "" {
		h.invalidateStatus(r, orderID)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}
