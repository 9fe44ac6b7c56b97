package handlers

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/sevasetu/seva-gobackend/internal/services"
)

// signatureHeader carries the gateway's HMAC of the raw request body.
const signatureHeader = "X-Razorpay-Signature"

// WebhookHandler receives gateway webhook deliveries.
type WebhookHandler struct {
	orch   *services.Orchestrator
	logger *zap.Logger
}

func NewWebhookHandler(orch *services.Orchestrator, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{orch: orch, logger: logger}
}

// Handle verifies and processes one delivery. A 2xx acknowledges the event;
// anything else keeps the gateway's retries alive, so invariant violations
// return 500 on purpose.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	// The signature covers the raw bytes, so the body is read before any
	// JSON parsing touches it.
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unable to read request body")
		return
	}

	donation, err := h.orch.HandleWebhook(r.Context(), body, r.Header.Get(signatureHeader))
	if err != nil {
		if errors.Is(err, services.ErrSignatureMismatch) || services.IsValidation(err) {
			writeError(w, http.StatusBadRequest, "webhook rejected")
			return
		}
		serviceError(w, err)
		return
	}

	resp := map[string]string{"status": "ok"}
	if donation != nil {
		resp["donation_id"] = donation.ID.Hex()
	}
	writeJSON(w, http.StatusOK, resp)
}
