package pgstore

import (
	"context"
	"fmt"

	"career_support_bot/internal/domain"
)

// TotalUsers counts rows in telegram_users.
func (s *Store) TotalUsers(ctx context.Context) (int64, error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = conn.Close(ctx) }()

	var n int64
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM telegram_users;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// TotalInteractions sums interaction_count across all users.
func (s *Store) TotalInteractions(ctx context.Context) (int64, error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = conn.Close(ctx) }()

	var n int64
	if err := conn.QueryRow(ctx, `SELECT COALESCE(SUM(interaction_count), 0) FROM telegram_users;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sum interactions: %w", err)
	}
	return n, nil
}

// UserSummary fetches the stored record for one user.
func (s *Store) UserSummary(ctx context.Context, userID int64) (domain.UserRecord, error) {
	conn, err := s.acquire(ctx)
	if err != nil {
		return domain.UserRecord{}, err
	}
	defer func() { _ = conn.Close(ctx) }()

	q := `
SELECT user_id, name, username, mobile, email, challenge_response,
       clicked_button, gender, location, language, referral_source,
       first_interaction, last_interaction, interaction_count
  FROM telegram_users WHERE user_id = $1;`

	var r domain.UserRecord
	err = conn.QueryRow(ctx, q, userID).Scan(
		&r.UserID, &r.Name, &r.Username, &r.Mobile, &r.Email, &r.ChallengeResponse,
		&r.ClickedButton, &r.Gender, &r.Location, &r.Language, &r.ReferralSource,
		&r.FirstInteraction, &r.LastInteraction, &r.InteractionCount,
	)
	if err != nil {
		return domain.UserRecord{}, fmt.Errorf("fetch user %d: %w", userID, err)
	}

	return r, nil
}
