package telegram

import (
	"context"

	"github.com/Vovarama1992/support-relay/internal/models"
	"github.com/Vovarama1992/support-relay/internal/tasks"
)

// Dispatcher consumes normalized inbound messages.
type Dispatcher interface {
	Handle(ctx context.Context, msg models.InboundMessage)
}

type Submitter interface {
	Submit(name string, fn tasks.Func) bool
}
