package chatwoot

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/Vovarama1992/support-relay/internal/models"
)

const EventMessageCreated = "message_created"

var intRegex = regexp.MustCompile(`-?\d+`)

// first returns the first of paths that resolves to a non-empty value.
func first(paths ...gjson.Result) gjson.Result {
	for _, p := range paths {
		if p.Exists() && p.Type != gjson.Null && p.String() != "" {
			return p
		}
	}
	return gjson.Result{}
}

// intOf reads a JSON number or the first integer inside a string.
func intOf(r gjson.Result) *int64 {
	switch r.Type {
	case gjson.Number:
		v := r.Int()
		return &v
	case gjson.String:
		m := intRegex.FindString(r.String())
		if m == "" {
			return nil
		}
		v, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil
		}
		return &v
	}
	return nil
}

// messageType accepts both the string and the numeric enum form.
func messageType(r gjson.Result) string {
	if r.Type == gjson.Number {
		switch r.Int() {
		case 0:
			return "incoming"
		case 1:
			return "outgoing"
		case 2:
			return "activity"
		case 3:
			return "template"
		}
		return r.String()
	}
	return strings.ToLower(r.String())
}

// ParseMessage normalizes a message_created payload. Every field is looked
// up defensively across the flat, data and payload envelopes.
func ParseMessage(body []byte) models.InboundMessage {
	doc := gjson.ParseBytes(body)
	data := doc
	if d := doc.Get("data"); d.IsObject() {
		data = d
	} else if p := doc.Get("payload"); p.IsObject() {
		data = p
	}

	message := data.Get("message")
	if !message.IsObject() {
		if arr := data.Get("messages"); arr.IsArray() {
			all := arr.Array()
			if len(all) > 0 {
				message = all[len(all)-1]
			}
		}
	}
	conversation := data.Get("conversation")
	if !conversation.IsObject() {
		conversation = doc.Get("conversation")
	}
	sender := data.Get("sender")
	if !sender.IsObject() {
		sender = data.Get("contact")
	}

	msg := models.InboundMessage{
		Platform: models.PlatformChatwoot,
		Text:     first(data.Get("content"), message.Get("content"), doc.Get("content")).String(),
		MessageType: messageType(first(
			data.Get("message_type"), message.Get("message_type"), doc.Get("message_type"),
		)),
		PlatformUserID: first(sender.Get("id"), data.Get("sender_id"), message.Get("sender_id")).String(),
		DisplayName:    first(sender.Get("name"), data.Get("name"), doc.Get("name")).String(),
		MessageID:      first(data.Get("id"), message.Get("id")).String(),
		ContactID:      data.Get("contact.id").String(),
		SourceID: first(
			data.Get("source_id"), message.Get("source_id"), conversation.Get("source_id"),
			conversation.Get("additional_attributes.source_id"), message.Get("additional_attributes.source_id"),
		).String(),
		ConversationID: intOf(first(
			data.Get("conversation_id"), message.Get("conversation_id"), conversation.Get("id"), doc.Get("conversation_id"),
		)),
		AccountID: intOf(first(
			data.Get("account_id"), conversation.Get("account_id"), message.Get("account_id"),
			doc.Get("account_id"), doc.Get("account.id"),
		)),
		InboxID: intOf(first(
			data.Get("inbox_id"), message.Get("inbox_id"), conversation.Get("inbox_id"), doc.Get("inbox.id"),
		)),
	}
	msg.ChatHandle = chatroomID(data, message, conversation)
	msg.IsIncoming = msg.MessageType == "incoming"
	return msg
}

// chatroomID is the bot-side chat id bridged into the conversation. A
// string conversation id is the last resort.
func chatroomID(data, message, conversation gjson.Result) string {
	if v := first(
		conversation.Get("additional_attributes.chat_id"),
		message.Get("additional_attributes.chat_id"),
		conversation.Get("additional_attributes.source_id"),
		message.Get("additional_attributes.source_id"),
		data.Get("chat_id"),
		data.Get("source_id"),
		message.Get("source_id"),
	); v.Exists() {
		return v.String()
	}
	if cid := first(data.Get("conversation_id"), message.Get("conversation_id")); cid.Type == gjson.String {
		return cid.String()
	}
	return ""
}
