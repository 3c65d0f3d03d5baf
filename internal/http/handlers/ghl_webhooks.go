// Package handlers holds the inbound HTTP surface: GHL webhook
// endpoints and the health check.
package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/harborhomes/leadrouter/internal/events"
	"github.com/harborhomes/leadrouter/internal/router"
	"github.com/harborhomes/leadrouter/pkg/logging"
)

const webhookProvider = "ghl"

type eventRouter interface {
	HandleEvent(ctx context.Context, event events.InboundEvent) (*router.Outcome, error)
}

type processedTracker interface {
	AlreadyProcessed(ctx context.Context, provider, deliveryID string) (bool, error)
	MarkProcessed(ctx context.Context, provider, deliveryID string) (bool, error)
}

type signatureVerifier interface {
	VerifyWebhookSignature(signature string, payload []byte) error
}

// GHLWebhookHandler terminates GoHighLevel webhook deliveries. It owns
// transport concerns only: signature, delivery dedup and response
// codes. Event semantics live in the router.
type GHLWebhookHandler struct {
	router    eventRouter
	processed processedTracker
	verifier  signatureVerifier
	logger    *logging.Logger
}

type GHLWebhookConfig struct {
	Router    eventRouter
	Processed processedTracker
	Verifier  signatureVerifier
	Logger    *logging.Logger
}

func NewGHLWebhookHandler(cfg GHLWebhookConfig) *GHLWebhookHandler {
	if cfg.Router == nil {
		panic("handlers: event router cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &GHLWebhookHandler{
		router:    cfg.Router,
		processed: cfg.Processed,
		verifier:  cfg.Verifier,
		logger:    cfg.Logger,
	}
}

// HandleMessage terminates inbound-message webhooks.
func (h *GHLWebhookHandler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r)
}

// HandleTag terminates tag-applied webhooks.
func (h *GHLWebhookHandler) HandleTag(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r)
}

// HealthCheck reports liveness.
func (h *GHLWebhookHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

func (h *GHLWebhookHandler) serve(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	if h.verifier != nil {
		if err := h.verifier.VerifyWebhookSignature(r.Header.Get("X-Webhook-Signature"), body); err != nil {
			h.logger.Warn("invalid webhook signature", "error", err)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
			return
		}
	}

	deliveryID := deliveryID(r, body)
	if h.processed != nil {
		seen, err := h.processed.AlreadyProcessed(r.Context(), webhookProvider, deliveryID)
		if err != nil {
			h.logger.Error("processed lookup failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
			return
		}
		if seen {
			writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
			return
		}
	}

	event, err := events.ParseWebhook(body)
	if err != nil {
		if errors.Is(err, events.ErrUnknownType) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.logger.Warn("webhook rejected", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	outcome, err := h.router.HandleEvent(r.Context(), event)
	if err != nil {
		// The correlation id lets support trace the failure without
		// exposing contact details in the response.
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":          "processing failed",
			"correlation_id": outcome.CorrelationID,
		})
		return
	}

	if h.processed != nil {
		if _, markErr := h.processed.MarkProcessed(r.Context(), webhookProvider, deliveryID); markErr != nil {
			h.logger.Error("failed to mark delivery processed", "error", markErr, "delivery_id", deliveryID)
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":         string(outcome.Status),
		"correlation_id": outcome.CorrelationID,
	})
}

// deliveryID prefers the provider's delivery header and falls back to a
// digest of the body, so retried deliveries dedupe either way.
func deliveryID(r *http.Request, body []byte) string {
	if id := r.Header.Get("X-Webhook-Id"); id != "" {
		return id
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
