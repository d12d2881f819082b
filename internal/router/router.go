// Package router decides what to do with a normalized inbound message:
// register a country, answer a digest command, greet, escalate, or forward
// free-form text to the agent.
package router

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Vovarama1992/support-relay/internal/agent"
	"github.com/Vovarama1992/support-relay/internal/intent"
	"github.com/Vovarama1992/support-relay/internal/logger"
	"github.com/Vovarama1992/support-relay/internal/models"
	"github.com/Vovarama1992/support-relay/internal/prediction"
)

type Deps struct {
	Sinks     map[models.Platform]MessageSink
	Users     Users
	Digests   prediction.Service
	Threads   Threads
	Agent     agent.Agent
	Escalator Escalator
	Tasks     Submitter
	AgentName string
	Now       func() time.Time
}

type Router struct {
	sinks     map[models.Platform]MessageSink
	users     Users
	digests   prediction.Service
	threads   Threads
	agent     agent.Agent
	escalator Escalator
	tasks     Submitter
	agentName string
	now       func() time.Time
	log       *logger.Logger
}

func New(d Deps, log *logger.Logger) *Router {
	if d.Now == nil {
		d.Now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Router{
		sinks:     d.Sinks,
		users:     d.Users,
		digests:   d.Digests,
		threads:   d.Threads,
		agent:     d.Agent,
		escalator: d.Escalator,
		tasks:     d.Tasks,
		agentName: d.AgentName,
		now:       d.Now,
		log:       log.With("component", "router"),
	}
}

// Handle processes one inbound message. Any fixed intent suppresses agent
// forwarding.
func (r *Router) Handle(ctx context.Context, msg models.InboundMessage) {
	if !msg.IsIncoming {
		return
	}
	log := r.log.With("platform", msg.Platform, "chatroom_id", msg.ChatHandle, "message_id", msg.MessageID)

	r.submit("log_message", func(ctx context.Context) { r.logMessage(ctx, msg) })

	it := intent.Classify(msg.Text)
	handled := false

	if it == intent.Help {
		r.submit("help_escalation", func(ctx context.Context) { r.escalate(ctx, msg) })
		handled = true
	}

	if country := intent.CountryChoice(msg.Text); country != models.CountryUnset {
		r.registerCountry(ctx, msg, country, it == intent.Start)
		handled = true
	} else if it.IsDigest() {
		r.replyDigest(ctx, msg, it)
		handled = true
	} else if it == intent.Start {
		r.welcome(ctx, msg)
		handled = true
	}

	// Unrecognized button data is never free-form text.
	if msg.CallbackID != "" {
		handled = true
	}

	if handled {
		log.Debug("handled as command", "intent", it)
		return
	}
	switch err := r.forward(ctx, msg); {
	case errors.Is(err, agent.ErrDisabled):
		log.Debug("free text not forwarded", "error", err)
	case err != nil:
		log.Warn("agent forward failed", "error", err)
	}
}

func (r *Router) submit(name string, fn func(context.Context)) {
	if r.tasks == nil {
		fn(context.Background())
		return
	}
	if !r.tasks.Submit(name, fn) {
		r.log.Warn("task dropped", "task", name)
	}
}

func (r *Router) externalID(msg models.InboundMessage) string {
	if msg.PlatformUserID != "" {
		return msg.PlatformUserID
	}
	return msg.ChatHandle
}

func (r *Router) baseUser(msg models.InboundMessage) models.User {
	u := models.User{ExternalID: r.externalID(msg), UpdatedAt: r.now()}
	if msg.DisplayName != "" {
		name := msg.DisplayName
		u.Username = &name
	}
	if msg.ChatHandle != "" {
		handle := msg.ChatHandle
		u.ChatroomID = &handle
	}
	return u
}

func (r *Router) logMessage(ctx context.Context, msg models.InboundMessage) {
	if r.users == nil {
		return
	}
	var userID *int64
	if u := r.baseUser(msg); u.ExternalID != "" {
		id, err := r.users.UpsertUser(ctx, u)
		if err != nil {
			r.log.Error("user upsert failed", "external_id", u.ExternalID, "error", err)
		} else {
			userID = &id
		}
	}
	entry := models.LoggedMessage{
		ChatroomID:     msg.ChatHandle,
		AccountID:      msg.AccountID,
		ConversationID: msg.ConversationID,
		UserID:         userID,
		Content:        msg.Text,
		MessageType:    msg.MessageType,
		SenderID:       msg.PlatformUserID,
		ContactID:      msg.ContactID,
		InboxID:        msg.InboxID,
		SourceID:       msg.SourceID,
	}
	if id, err := strconv.ParseInt(msg.MessageID, 10, 64); err == nil {
		entry.MessageID = &id
	}
	if err := r.users.LogMessage(ctx, entry); err != nil {
		r.log.Error("message log failed", "chatroom_id", msg.ChatHandle, "error", err)
	}
}

func (r *Router) escalate(ctx context.Context, msg models.InboundMessage) {
	if r.escalator == nil {
		return
	}
	if err := r.escalator.Escalate(ctx, msg); err != nil {
		r.log.Error("help escalation failed", "chatroom_id", msg.ChatHandle, "error", err)
	}
}

func (r *Router) registerCountry(ctx context.Context, msg models.InboundMessage, country models.Country, fromStart bool) {
	log := r.log.With("chatroom_id", msg.ChatHandle, "country", country)
	if r.users != nil {
		u := r.baseUser(msg)
		u.Country = country
		if u.ExternalID == "" {
			log.Warn("country choice without user identity")
		} else if _, err := r.users.UpsertUser(ctx, u); err != nil {
			log.Error("country upsert failed", "error", err)
		}
	}

	if msg.CallbackID != "" {
		if answerer, ok := r.sinks[msg.Platform].(CallbackAnswerer); ok {
			if err := answerer.AnswerCallback(ctx, msg.CallbackID, CallbackAckText); err != nil {
				log.Warn("callback answer failed", "error", err)
			}
		}
	}

	if msg.Platform == models.PlatformChatwoot {
		r.deliver(ctx, msg.Platform, msg.Address(), CountryAck(country))
	}
	if fromStart {
		r.sendKeyboard(ctx, msg)
	}
}

func (r *Router) country(ctx context.Context, msg models.InboundMessage) models.Country {
	if r.users == nil {
		return models.CountryUnset
	}
	c, err := r.users.CountryForChat(ctx, msg.ChatHandle, msg.PlatformUserID)
	if err != nil {
		r.log.Warn("country lookup failed, using UTC", "chatroom_id", msg.ChatHandle, "error", err)
		return models.CountryUnset
	}
	return c
}

func (r *Router) replyDigest(ctx context.Context, msg models.InboundMessage, it intent.Intent) {
	if r.digests == nil {
		return
	}
	country := r.country(ctx, msg)
	addr := msg.Address()
	switch it {
	case intent.AIHistory:
		r.deliver(ctx, msg.Platform, addr, r.digests.HistoryDigest(ctx, country))
	case intent.AIYesterday:
		r.deliver(ctx, msg.Platform, addr, r.digests.YesterdayDigest(ctx, country))
	case intent.AIPick:
		for _, block := range r.digests.PickDigest(ctx, country) {
			r.deliver(ctx, msg.Platform, addr, block)
		}
	}
}

func (r *Router) welcome(ctx context.Context, msg models.InboundMessage) {
	r.deliver(ctx, msg.Platform, msg.Address(), WelcomeText)
	r.sendKeyboard(ctx, msg)
}

// sendKeyboard always goes through the bot platform; helpdesk chats carry
// the bot chat id as their handle.
func (r *Router) sendKeyboard(ctx context.Context, msg models.InboundMessage) {
	sink := r.sinks[models.PlatformTelegram]
	if sink == nil || msg.ChatHandle == "" {
		return
	}
	addr := models.Address{Platform: models.PlatformTelegram, ChatHandle: msg.ChatHandle}
	if err := sink.SendKeyboard(ctx, addr, KeyboardPrompt, CountryOptions); err != nil {
		r.log.Warn("country keyboard failed", "chatroom_id", msg.ChatHandle, "error", err)
	}
}

// forward relays free text to the agent and delivers its reply. Failures of
// the agent call are answered with BusyReply and returned.
func (r *Router) forward(ctx context.Context, msg models.InboundMessage) error {
	if r.agent == nil {
		return agent.ErrDisabled
	}
	log := r.log.With("platform", msg.Platform, "chatroom_id", msg.ChatHandle)
	addr := msg.Address()
	r.deliver(ctx, msg.Platform, addr, PlaceholderText)

	meta := r.metadata(msg)
	threadID := ""
	if r.threads != nil {
		threadID = r.threads.EnsureThread(ctx, msg.Platform, msg.ChatHandle, meta)
	}
	if threadID != "" {
		meta["thread_id"] = threadID
	}

	req := agent.Request{
		Messages: []agent.Message{{Role: "user", Content: msg.Text}},
		Metadata: meta,
		ThreadID: threadID,
	}
	if msg.MessageID != "" {
		req.IdempotencyKey = string(msg.Platform) + ":" + msg.MessageID
	}

	res, err := r.agent.Call(ctx, req)
	if err != nil {
		r.deliver(ctx, msg.Platform, addr, agent.BusyReply)
		return fmt.Errorf("thread %q: %w", threadID, err)
	}
	texts := res.Texts()
	if len(texts) == 0 {
		log.Warn("agent returned no text", "thread_id", threadID)
		return nil
	}
	for _, t := range texts {
		r.deliver(ctx, msg.Platform, addr, t)
	}
	return nil
}

func (r *Router) metadata(msg models.InboundMessage) map[string]any {
	name := r.agentName
	if name == "" {
		name = "query_agent"
	}
	meta := map[string]any{
		"platform":    string(msg.Platform),
		"agent":       name,
		"chatroom_id": msg.ChatHandle,
		"thread_id":   nil,
		"message_id":  msg.MessageID,
		"sender_id":   msg.PlatformUserID,
		"username":    msg.DisplayName,
		"timestamp":   r.now().UTC().Format(time.RFC3339),
	}
	if msg.ConversationID != nil {
		meta["conversation_id"] = *msg.ConversationID
	}
	if msg.AccountID != nil {
		meta["account_id"] = *msg.AccountID
	}
	if msg.InboxID != nil {
		meta["inbox_id"] = *msg.InboxID
	}
	return meta
}

// deliver sends text in chunks, in order, stopping at the first failure.
func (r *Router) deliver(ctx context.Context, platform models.Platform, addr models.Address, text string) {
	sink := r.sinks[platform]
	if sink == nil {
		r.log.Warn("no sink for platform", "platform", platform)
		return
	}
	for _, part := range Chunk(text, MaxChunk) {
		if err := sink.Send(ctx, addr, part); err != nil {
			r.log.Warn("send failed", "platform", platform, "chatroom_id", addr.ChatHandle, "error", err)
			return
		}
	}
}
