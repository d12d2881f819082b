package agent

import (
	"context"
	"errors"
	"strings"
)

// BusyReply is what users see when the agent path fails.
const BusyReply = "系统繁忙，请稍后再试。"

var ErrDisabled = errors.New("agent: not configured")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Messages       []Message
	Metadata       map[string]any
	IdempotencyKey string
	ThreadID       string
}

// LastUserText is the content of the final message, the one being forwarded.
func (r Request) LastUserText() string {
	if len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[len(r.Messages)-1].Content
}

// Result is the agent response in any of its three shapes.
type Result struct {
	ThreadID string
	Reply    string
	Segments []string
	Messages []Message
}

// Texts picks what to deliver: segments, else the reply, else the text of
// assistant and tool messages.
func (r Result) Texts() []string {
	var out []string
	for _, s := range r.Segments {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	if len(out) > 0 {
		return out
	}
	if strings.TrimSpace(r.Reply) != "" {
		return []string{r.Reply}
	}
	for _, m := range r.Messages {
		switch strings.ToLower(m.Role) {
		case "assistant", "tool", "ai":
			if strings.TrimSpace(m.Content) != "" {
				out = append(out, m.Content)
			}
		}
	}
	return out
}

// Agent forwards a user message to the conversational backend.
type Agent interface {
	Call(ctx context.Context, req Request) (Result, error)
}

// ThreadCreator opens a remote conversation session.
type ThreadCreator interface {
	CreateThread(ctx context.Context, meta map[string]any) (string, error)
}
