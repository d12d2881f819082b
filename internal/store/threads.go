package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Vovarama1992/support-relay/internal/models"
)

// LatestActiveThread returns the most recently started active row for the
// pair, without judging whether it has expired.
func (s *Store) LatestActiveThread(ctx context.Context, platform models.Platform, chatroomID string) (*models.Thread, error) {
	var (
		t        models.Thread
		subject  sql.NullString
		lastSeen sql.NullTime
		expires  sql.NullTime
		plat     string
		status   string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, platform, chatroom_id, agent_thread_id, subject, started_at, last_activity_at, expires_at, status
		FROM agent_threads
		WHERE platform = $1 AND chatroom_id = $2 AND status = $3
		ORDER BY started_at DESC, id DESC
		LIMIT 1
	`, string(platform), chatroomID, string(models.ThreadActive)).Scan(
		&t.ID, &plat, &t.ChatroomID, &t.AgentThreadID, &subject, &t.StartedAt, &lastSeen, &expires, &status,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest active thread %s/%s: %w", platform, chatroomID, err)
	}
	t.Platform = models.Platform(plat)
	t.Status = models.ThreadStatus(status)
	t.Subject = nullStringPtr(subject)
	t.StartedAt = t.StartedAt.UTC()
	t.LastActivityAt = nullTimePtr(lastSeen)
	t.ExpiresAt = nullTimePtr(expires)
	return &t, nil
}

func (s *Store) InsertThread(ctx context.Context, t models.Thread) (int64, error) {
	status := t.Status
	if status == "" {
		status = models.ThreadActive
	}
	var (
		lastSeen any
		expires  any
	)
	if t.LastActivityAt != nil {
		lastSeen = utc(*t.LastActivityAt)
	}
	if t.ExpiresAt != nil {
		expires = utc(*t.ExpiresAt)
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO agent_threads (platform, chatroom_id, agent_thread_id, subject, started_at, last_activity_at, expires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`,
		string(t.Platform),
		t.ChatroomID,
		t.AgentThreadID,
		t.Subject,
		utc(t.StartedAt),
		lastSeen,
		expires,
		string(status),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert thread %s: %w", t.AgentThreadID, err)
	}
	return id, nil
}

// TouchThread renews the active row holding agentThreadID for the pair.
func (s *Store) TouchThread(ctx context.Context, platform models.Platform, chatroomID, agentThreadID string, now, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE agent_threads
		SET last_activity_at = $1, expires_at = $2
		WHERE platform = $3 AND chatroom_id = $4 AND agent_thread_id = $5 AND status = $6
	`, utc(now), utc(expiresAt), string(platform), chatroomID, agentThreadID, string(models.ThreadActive))
	if err != nil {
		return fmt.Errorf("touch thread %s: %w", agentThreadID, err)
	}
	return nil
}

func (s *Store) ExpireThread(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE agent_threads SET status = $1 WHERE id = $2 AND status = $3
	`, string(models.ThreadExpired), id, string(models.ThreadActive))
	if err != nil {
		return fmt.Errorf("expire thread %d: %w", id, err)
	}
	return nil
}

func (s *Store) CountThreads(ctx context.Context, platform models.Platform, chatroomID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM agent_threads WHERE platform = $1 AND chatroom_id = $2
	`, string(platform), chatroomID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count threads: %w", err)
	}
	return n, nil
}
