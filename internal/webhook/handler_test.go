package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type recordingUpdates struct {
	updates []tgbotapi.Update
}

func (r *recordingUpdates) HandleUpdate(_ context.Context, update tgbotapi.Update) {
	r.updates = append(r.updates, update)
}

func newTestHandler(secret string) (*Handler, *recordingUpdates) {
	rec := &recordingUpdates{}
	return NewHandler(secret, rec), rec
}

func postUpdate(h *Handler, secret, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/telegram", strings.NewReader(body))
	if secret != "" {
		req.Header.Set(secretHeader, secret)
	}
	w := httptest.NewRecorder()
	h.Mux().ServeHTTP(w, req)
	return w
}

const sampleUpdate = `{"update_id":42,"message":{"message_id":7,"chat":{"id":100},"text":"hello"}}`

func TestHealth(t *testing.T) {
	h, _ := newTestHandler("secret")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.Mux().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Body.String(); !strings.Contains(got, `"ok"`) {
		t.Errorf("body = %q, want ok status", got)
	}
}

func TestUpdate_ValidSecret(t *testing.T) {
	h, rec := newTestHandler("secret")
	w := postUpdate(h, "secret", sampleUpdate)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(rec.updates) != 1 {
		t.Fatalf("dispatched %d updates, want 1", len(rec.updates))
	}
	if rec.updates[0].UpdateID != 42 {
		t.Errorf("UpdateID = %d, want 42", rec.updates[0].UpdateID)
	}
}

func TestUpdate_InvalidSecret(t *testing.T) {
	h, rec := newTestHandler("secret")
	w := postUpdate(h, "wrong", sampleUpdate)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if len(rec.updates) != 0 {
		t.Errorf("dispatched %d updates, want 0", len(rec.updates))
	}
}

func TestUpdate_MissingSecret(t *testing.T) {
	h, rec := newTestHandler("secret")
	w := postUpdate(h, "", sampleUpdate)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if len(rec.updates) != 0 {
		t.Errorf("dispatched %d updates, want 0", len(rec.updates))
	}
}

func TestUpdate_NoSecretConfigured(t *testing.T) {
	h, rec := newTestHandler("")
	w := postUpdate(h, "", sampleUpdate)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(rec.updates) != 1 {
		t.Errorf("dispatched %d updates, want 1", len(rec.updates))
	}
}

func TestUpdate_MalformedPayload(t *testing.T) {
	h, rec := newTestHandler("secret")
	w := postUpdate(h, "secret", "{not json")

	// Telegram redelivers on non-200; a payload we cannot parse should
	// not be retried forever.
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(rec.updates) != 0 {
		t.Errorf("dispatched %d updates, want 0", len(rec.updates))
	}
}

func TestUpdate_EmptyBody(t *testing.T) {
	h, rec := newTestHandler("secret")
	w := postUpdate(h, "secret", "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if len(rec.updates) != 0 {
		t.Errorf("dispatched %d updates, want 0", len(rec.updates))
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h, _ := newTestHandler("secret")
	req := httptest.NewRequest(http.MethodGet, "/webhooks/telegram", nil)
	w := httptest.NewRecorder()
	h.Mux().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", w.Code)
	}
}
