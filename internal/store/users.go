package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Vovarama1992/support-relay/internal/models"
)

// UpsertUser inserts or merges a user keyed by external id in one statement.
// The merge follows models.MergeUser: unset username, chatroom id or country
// never erase stored values.
func (s *Store) UpsertUser(ctx context.Context, u models.User) (int64, error) {
	if u.ExternalID == "" {
		return 0, fmt.Errorf("upsert user: external id is required")
	}
	now := u.UpdatedAt
	if now.IsZero() {
		now = time.Now()
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (external_id, username, chatroom_id, country, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (external_id) DO UPDATE SET
			username = COALESCE(EXCLUDED.username, users.username),
			chatroom_id = COALESCE(EXCLUDED.chatroom_id, users.chatroom_id),
			country = COALESCE(EXCLUDED.country, users.country),
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`,
		u.ExternalID,
		u.Username,
		u.ChatroomID,
		nilIfEmpty(string(u.Country)),
		utc(now),
		utc(now),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert user %s: %w", u.ExternalID, err)
	}
	return id, nil
}

func (s *Store) GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	var (
		u        models.User
		username sql.NullString
		chatroom sql.NullString
		country  sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, external_id, username, chatroom_id, country, updated_at
		FROM users
		WHERE external_id = $1
	`, externalID).Scan(&u.ID, &u.ExternalID, &username, &chatroom, &country, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", externalID, err)
	}
	u.Username = nullStringPtr(username)
	u.ChatroomID = nullStringPtr(chatroom)
	u.Country = models.ParseCountry(country.String)
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

// CountryForChat resolves the stored country, by chatroom id first and then
// by external id. An unknown user yields CountryUnset with no error.
func (s *Store) CountryForChat(ctx context.Context, chatroomID, externalID string) (models.Country, error) {
	if chatroomID != "" {
		c, err := s.lookupCountry(ctx, `
			SELECT country FROM users
			WHERE chatroom_id = $1 AND country IS NOT NULL AND country <> ''
			ORDER BY updated_at DESC, id DESC
			LIMIT 1
		`, chatroomID)
		if err != nil || c != models.CountryUnset {
			return c, err
		}
	}
	if externalID != "" {
		return s.lookupCountry(ctx, `
			SELECT country FROM users
			WHERE external_id = $1 AND country IS NOT NULL AND country <> ''
			LIMIT 1
		`, externalID)
	}
	return models.CountryUnset, nil
}

func (s *Store) lookupCountry(ctx context.Context, query, arg string) (models.Country, error) {
	var country sql.NullString
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&country)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CountryUnset, nil
	}
	if err != nil {
		return models.CountryUnset, fmt.Errorf("lookup country: %w", err)
	}
	return models.ParseCountry(country.String), nil
}

func (s *Store) LogMessage(ctx context.Context, m models.LoggedMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (chatroom_id, account_id, conversation_id, user_id, content, message_type, message_id, sender_id, contact_id, inbox_id, source_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		nilIfEmpty(m.ChatroomID),
		m.AccountID,
		m.ConversationID,
		m.UserID,
		m.Content,
		nilIfEmpty(m.MessageType),
		m.MessageID,
		nilIfEmpty(m.SenderID),
		nilIfEmpty(m.ContactID),
		m.InboxID,
		nilIfEmpty(m.SourceID),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("log message for %s: %w", m.ChatroomID, err)
	}
	return nil
}

func (s *Store) CountMessages(ctx context.Context, chatroomID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_messages WHERE chatroom_id = $1`, chatroomID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}
