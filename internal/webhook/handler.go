// Package webhook provides the HTTP surface for Telegram webhook updates.
//
// Telegram delivers updates as a POST with an optional
// X-Telegram-Bot-Api-Secret-Token header, set when the webhook was
// registered with a secret_token. The handler validates that header,
// decodes the update, and hands it off for processing.
//
// Reference: https://core.telegram.org/bots/api#setwebhook
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// maxBodySize is the maximum allowed request body size (1 MB). A single
// Telegram update stays well under this limit even with a full media group.
const maxBodySize = 1 << 20 // 1 MB

const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

// UpdateHandler processes a decoded Telegram update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update)
}

// Handler validates and decodes incoming Telegram webhook requests.
type Handler struct {
	secretToken string
	updates     UpdateHandler
}

// NewHandler creates a webhook handler.
//
// secretToken must match the secret_token passed to setWebhook. When empty,
// header validation is skipped (local development with a tunnel).
func NewHandler(secretToken string, updates UpdateHandler) *Handler {
	return &Handler{
		secretToken: secretToken,
		updates:     updates,
	}
}

// Mux returns an http.Handler with the webhook and health routes mounted.
func (h *Handler) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.Handle("/webhooks/telegram", h)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// ServeHTTP handles a Telegram webhook delivery.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.verifySecret(r.Header.Get(secretHeader)) {
		log.Warn().Msg("Webhook update: invalid secret token")
		http.Error(w, "invalid secret token", http.StatusForbidden)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		log.Error().Err(err).Msg("Webhook update: failed to read body")
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if len(body) == 0 {
		log.Warn().Msg("Webhook update: empty body")
		http.Error(w, "empty body", http.StatusBadRequest)
		return
	}

	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		log.Warn().Err(err).Msg("Webhook update: malformed payload")
		// 200 so Telegram does not redeliver a payload we can never parse.
		w.WriteHeader(http.StatusOK)
		return
	}

	log.Debug().
		Int("updateID", update.UpdateID).
		Int("bodySize", len(body)).
		Msg("Webhook update received")

	h.updates.HandleUpdate(r.Context(), update)
	w.WriteHeader(http.StatusOK)
}

// verifySecret compares the header value against the configured secret
// token in constant time. An empty configured token disables the check.
func (h *Handler) verifySecret(header string) bool {
	if h.secretToken == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(header), []byte(h.secretToken)) == 1
}
