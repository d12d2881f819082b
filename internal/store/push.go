package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Vovarama1992/support-relay/internal/models"
)

// ClaimPush records (user, date, type) in the ledger. It reports true only for
// the caller whose insert created the row; the unique index makes concurrent
// claims race-free.
func (s *Store) ClaimPush(ctx context.Context, userID int64, pushDate string, pushType models.PushType) (bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO push_log (user_id, push_date, push_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, push_date, push_type) DO NOTHING
		RETURNING id
	`, userID, pushDate, string(pushType)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claim push user=%d date=%s type=%s: %w", userID, pushDate, pushType, err)
	}
	return true, nil
}

func (s *Store) CountPushes(ctx context.Context, userID int64, pushDate string, pushType models.PushType) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM push_log
		WHERE user_id = $1 AND push_date = $2 AND push_type = $3
	`, userID, pushDate, string(pushType)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pushes: %w", err)
	}
	return n, nil
}

// ListPushTargets returns, per chatroom id, the most recently updated user
// that has both a chatroom id and a country.
func (s *Store) ListPushTargets(ctx context.Context) ([]models.PushTarget, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.chatroom_id, u.country
		FROM users u
		WHERE u.chatroom_id IS NOT NULL AND u.chatroom_id <> ''
		  AND u.country IS NOT NULL AND u.country <> ''
		  AND NOT EXISTS (
			SELECT 1 FROM users o
			WHERE o.chatroom_id = u.chatroom_id
			  AND o.country IS NOT NULL AND o.country <> ''
			  AND (o.updated_at > u.updated_at OR (o.updated_at = u.updated_at AND o.id > u.id))
		  )
		ORDER BY u.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list push targets: %w", err)
	}
	defer rows.Close()

	var out []models.PushTarget
	for rows.Next() {
		var (
			t       models.PushTarget
			country string
		)
		if err := rows.Scan(&t.UserID, &t.ChatroomID, &country); err != nil {
			return nil, fmt.Errorf("scan push target: %w", err)
		}
		t.Country = models.ParseCountry(country)
		if t.Country == models.CountryUnset {
			continue
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate push targets: %w", err)
	}
	return out, nil
}
