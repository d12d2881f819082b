package chatwoot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/Vovarama1992/support-relay/internal/logger"
	"github.com/Vovarama1992/support-relay/internal/models"
	"github.com/Vovarama1992/support-relay/internal/tasks"
)

type recordingDispatcher struct {
	msgs []models.InboundMessage
}

func (d *recordingDispatcher) Handle(ctx context.Context, msg models.InboundMessage) {
	d.msgs = append(d.msgs, msg)
}

type inlineTasks struct{}

func (inlineTasks) Submit(name string, fn tasks.Func) bool {
	fn(context.Background())
	return true
}

func post(t *testing.T, header, body string) (*httptest.ResponseRecorder, *recordingDispatcher) {
	t.Helper()
	d := &recordingDispatcher{}
	r := chi.NewRouter()
	RegisterRoutes(r, NewHandler(d, inlineTasks{}, logger.Nop()))
	req := httptest.NewRequest(http.MethodPost, "/webhooks/chatwoot", strings.NewReader(body))
	if header != "" {
		req.Header.Set("X-Chatwoot-Event", header)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec, d
}

func TestWebhook_EventFromHeaderOrBody(t *testing.T) {
	msg := `{"content":"hello","message_type":"incoming","conversation":{"id":1,"account_id":2}}`

	rec, d := post(t, "message_created", msg)
	if rec.Code != http.StatusOK || len(d.msgs) != 1 {
		t.Fatalf("header event: code=%d routed=%d", rec.Code, len(d.msgs))
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	_, d = post(t, "", `{"event":"message_created","content":"hello","message_type":"incoming"}`)
	if len(d.msgs) != 1 {
		t.Errorf("body event should be routed")
	}

	rec, d = post(t, "conversation_updated", msg)
	if rec.Code != http.StatusOK || len(d.msgs) != 0 {
		t.Errorf("other events are acknowledged but not routed")
	}
}

func TestWebhook_InvalidJSON(t *testing.T) {
	rec, _ := post(t, "message_created", "{")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
