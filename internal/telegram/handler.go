package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/Vovarama1992/support-relay/internal/logger"
	"github.com/Vovarama1992/support-relay/internal/models"
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
	return &Handler{router: router, tasks: tasks, log: log.With("component", "telegram_webhook")}
}

// HandleWebhook accepts a Bot API update, acknowledges it at once and
// routes it in the background.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil || !gjson.ValidBytes(body) {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if msg, ok := ParseUpdate(body); ok {
		if !h.tasks.Submit("telegram_update", func(ctx context.Context) {
			h.router.Handle(ctx, msg)
		}) {
			h.log.Warn("update dropped", "chatroom_id", msg.ChatHandle)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// ParseUpdate normalizes a message or callback_query update. Other update
// kinds are reported as not ok.
func ParseUpdate(body []byte) (models.InboundMessage, bool) {
	doc := gjson.ParseBytes(body)

	if m := doc.Get("message"); m.IsObject() {
		chat := m.Get("chat.id")
		if !chat.Exists() {
			return models.InboundMessage{}, false
		}
		return models.InboundMessage{
			Platform:       models.PlatformTelegram,
			Text:           m.Get("text").String(),
			PlatformUserID: m.Get("from.id").String(),
			DisplayName:    displayName(m.Get("from")),
			ChatHandle:     chat.String(),
			MessageID:      m.Get("message_id").String(),
			MessageType:    "incoming",
			IsIncoming:     !m.Get("from.is_bot").Bool(),
		}, true
	}

	if cb := doc.Get("callback_query"); cb.IsObject() {
		chat := cb.Get("message.chat.id").String()
		if chat == "" {
			chat = cb.Get("from.id").String()
		}
		return models.InboundMessage{
			Platform:       models.PlatformTelegram,
			Text:           cb.Get("data").String(),
			PlatformUserID: cb.Get("from.id").String(),
			DisplayName:    displayName(cb.Get("from")),
			ChatHandle:     chat,
			CallbackID:     cb.Get("id").String(),
			MessageType:    "callback_query",
			IsIncoming:     true,
		}, true
	}

	return models.InboundMessage{}, false
}

func displayName(from gjson.Result) string {
	if n := from.Get("first_name").String(); n != "" {
		return n
	}
	return from.Get("username").String()
}
