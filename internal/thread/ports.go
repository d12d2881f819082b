package thread

import (
	"context"
	"time"

	"github.com/Vovarama1992/support-relay/internal/models"
)

// Repo — persistence for agent_threads.
type Repo interface {
	LatestActiveThread(ctx context.Context, platform models.Platform, chatroomID string) (*models.Thread, error)
	InsertThread(ctx context.Context, t models.Thread) (int64, error)
	TouchThread(ctx context.Context, platform models.Platform, chatroomID, agentThreadID string, now, expiresAt time.Time) error
	ExpireThread(ctx context.Context, id int64) error
}

// Creator opens a session on the remote agent and returns its id.
type Creator interface {
	CreateThread(ctx context.Context, meta map[string]any) (string, error)
}
