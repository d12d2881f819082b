package chatwoot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Vovarama1992/support-relay/internal/config"
	"github.com/Vovarama1992/support-relay/internal/logger"
	"github.com/Vovarama1992/support-relay/internal/models"
)

func ptr(v int64) *int64 { return &v }

func TestClient_Send(t *testing.T) {
	var (
		path  string
		token string
		body  map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		token = r.Header.Get("api_access_token")
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{"id":1}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", nil, logger.Nop())
	addr := models.Address{AccountID: ptr(1), ConversationID: ptr(42)}
	if err := c.Send(context.Background(), addr, "hello"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if path != "/api/v1/accounts/1/conversations/42/messages" || token != "secret" {
		t.Errorf("unexpected request path=%s token=%s", path, token)
	}
	if body["content"] != "hello" || body["message_type"] != "outgoing" || body["private"] != false {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestClient_AllowList(t *testing.T) {
	c := NewClient("http://unused", "t", []config.AccountInbox{{AccountID: 1, InboxID: 3}}, logger.Nop())

	cases := []struct {
		account int64
		inbox   *int64
		want    bool
	}{
		{1, ptr(3), true},
		{1, ptr(4), false},
		{1, nil, true},
		{2, nil, false},
	}
	for _, tc := range cases {
		if got := c.Allowed(tc.account, tc.inbox); got != tc.want {
			t.Errorf("Allowed(%d, %v) = %v, want %v", tc.account, tc.inbox, got, tc.want)
		}
	}

	err := c.Send(context.Background(), models.Address{AccountID: ptr(2), ConversationID: ptr(1)}, "x")
	if err != ErrNotAllowed {
		t.Errorf("expected ErrNotAllowed, got %v", err)
	}
	if err := c.Send(context.Background(), models.Address{AccountID: ptr(1)}, "x"); err != ErrNoConversation {
		t.Errorf("expected ErrNoConversation, got %v", err)
	}
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bad", nil, logger.Nop())
	if err := c.Send(context.Background(), models.Address{AccountID: ptr(1), ConversationID: ptr(2)}, "x"); err == nil {
		t.Error("expected an error for 401")
	}
	if err := NewClient("", "", nil, logger.Nop()).Send(context.Background(), models.Address{}, "x"); err != ErrNotConfigured {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}
