package chatwoot

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/Vovarama1992/support-relay/internal/logger"
)

const maxBody = 1 << 20

type Handler struct {
	router Dispatcher
	tasks  Submitter
	log    *logger.Logger
}

func NewHandler(router Dispatcher, tasks Submitter, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{router: router, tasks: tasks, log: log.With("component", "chatwoot_webhook")}
}

// HandleWebhook acknowledges every event immediately; message_created
// events are routed in the background.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil || !gjson.ValidBytes(body) {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	event := r.Header.Get("X-Chatwoot-Event")
	if event == "" {
		event = gjson.GetBytes(body, "event").String()
	}

	if event == EventMessageCreated {
		msg := ParseMessage(body)
		h.log.Debug("webhook message",
			"type", msg.MessageType,
			"conversation_id", msg.ConversationID,
			"account_id", msg.AccountID,
			"chatroom_id", msg.ChatHandle,
		)
		if msg.IsIncoming && (msg.ConversationID == nil || msg.AccountID == nil) {
			h.log.Warn("webhook missing conversation_id/account_id", "message_id", msg.MessageID)
		}
		if !h.tasks.Submit("chatwoot_message", func(ctx context.Context) {
			h.router.Handle(ctx, msg)
		}) {
			h.log.Warn("message dropped", "message_id", msg.MessageID)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
