// Package thread owns the lifecycle of conversation threads binding a
// (platform, chat handle) pair to a remote agent session.
package thread

import (
	"context"
	"errors"
	"time"

	"github.com/Vovarama1992/support-relay/internal/logger"
	"github.com/Vovarama1992/support-relay/internal/models"
	"github.com/Vovarama1992/support-relay/internal/store"
)

const DefaultTTL = 30 * time.Minute

type Options struct {
	TTLs   map[models.Platform]time.Duration
	MaxAge time.Duration
	Now    func() time.Time
}

type Manager struct {
	repo    Repo
	creator Creator
	ttls    map[models.Platform]time.Duration
	maxAge  time.Duration
	now     func() time.Time
	log     *logger.Logger
}

func NewManager(repo Repo, creator Creator, opts Options, log *logger.Logger) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		repo:    repo,
		creator: creator,
		ttls:    opts.TTLs,
		maxAge:  opts.MaxAge,
		now:     opts.Now,
		log:     log.With("component", "thread"),
	}
}

func (m *Manager) ttl(platform models.Platform) time.Duration {
	if d, ok := m.ttls[platform]; ok && d > 0 {
		return d
	}
	return DefaultTTL
}

// usable reports whether the row is still current at now. Renewal never
// lifts the max-age ceiling.
func (m *Manager) usable(t *models.Thread, now time.Time) bool {
	if m.maxAge > 0 && now.Sub(t.StartedAt) > m.maxAge {
		return false
	}
	if t.ExpiresAt != nil && !t.ExpiresAt.After(now) {
		return false
	}
	return true
}

// FindActive returns the current thread for the pair, or nil. It never writes.
func (m *Manager) FindActive(ctx context.Context, platform models.Platform, handle string) (*models.Thread, error) {
	t, err := m.repo.LatestActiveThread(ctx, platform, handle)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !m.usable(t, m.now().UTC()) {
		return nil, nil
	}
	return t, nil
}

// EnsureThread returns the remote thread id to use for the pair, creating a
// thread when none is current. It returns "" when no thread could be
// obtained; callers forward without one.
func (m *Manager) EnsureThread(ctx context.Context, platform models.Platform, handle string, meta map[string]any) string {
	if handle == "" {
		return ""
	}
	log := m.log.With("platform", platform, "chatroom_id", handle)

	latest, err := m.repo.LatestActiveThread(ctx, platform, handle)
	switch {
	case errors.Is(err, store.ErrNotFound):
		latest = nil
	case err != nil:
		log.Error("thread lookup failed", "error", err)
		return ""
	}

	now := m.now().UTC()
	if latest != nil {
		if m.usable(latest, now) {
			m.Touch(ctx, platform, handle, latest.AgentThreadID)
			return latest.AgentThreadID
		}
		if err := m.repo.ExpireThread(ctx, latest.ID); err != nil {
			log.Warn("expire stale thread failed", "thread_id", latest.AgentThreadID, "error", err)
		}
	}

	if m.creator == nil {
		return ""
	}
	remoteID, err := m.creator.CreateThread(ctx, meta)
	if err != nil || remoteID == "" {
		log.Warn("remote thread creation failed", "error", err)
		return ""
	}

	expires := now.Add(m.ttl(platform))
	if _, err := m.repo.InsertThread(ctx, models.Thread{
		Platform:       platform,
		ChatroomID:     handle,
		AgentThreadID:  remoteID,
		StartedAt:      now,
		LastActivityAt: &now,
		ExpiresAt:      &expires,
		Status:         models.ThreadActive,
	}); err != nil {
		log.Error("thread insert failed", "thread_id", remoteID, "error", err)
		return ""
	}
	log.Info("thread created", "thread_id", remoteID, "expires_at", expires)
	return remoteID
}

// Touch renews the TTL of the active row. Failures are logged only.
func (m *Manager) Touch(ctx context.Context, platform models.Platform, handle, threadID string) {
	now := m.now().UTC()
	if err := m.repo.TouchThread(ctx, platform, handle, threadID, now, now.Add(m.ttl(platform))); err != nil {
		m.log.Warn("thread touch failed", "platform", platform, "chatroom_id", handle, "thread_id", threadID, "error", err)
	}
}
