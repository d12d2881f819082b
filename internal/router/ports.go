package router

import (
	"context"

	"github.com/Vovarama1992/support-relay/internal/models"
	"github.com/Vovarama1992/support-relay/internal/tasks"
)

// MessageSink delivers text to one platform. Delivery is fire-and-forget;
// the error is only logged by the router.
type MessageSink interface {
	Send(ctx context.Context, addr models.Address, text string) error
	SendWithButton(ctx context.Context, addr models.Address, text, label, url string) error
	SendKeyboard(ctx context.Context, addr models.Address, prompt string, options []models.KeyboardOption) error
}

// CallbackAnswerer is implemented by sinks that must acknowledge button
// presses.
type CallbackAnswerer interface {
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

type Users interface {
	UpsertUser(ctx context.Context, u models.User) (int64, error)
	LogMessage(ctx context.Context, m models.LoggedMessage) error
	CountryForChat(ctx context.Context, chatroomID, externalID string) (models.Country, error)
}

// Escalator notifies human operators.
type Escalator interface {
	Escalate(ctx context.Context, msg models.InboundMessage) error
}

type Submitter interface {
	Submit(name string, fn tasks.Func) bool
}

type Threads interface {
	EnsureThread(ctx context.Context, platform models.Platform, handle string, meta map[string]any) string
}
