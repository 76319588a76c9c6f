package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"

	"career_support_bot/internal/domain"
	"career_support_bot/internal/logging"
)

// Record performs the upsert: look up the existing row, then apply a single
// atomic update or insert inside a transaction. Any failure rolls back and
// surfaces as ErrWriteFailed; the dispatcher replies regardless.
func (s *Store) Record(ctx context.Context, userID int64, snap domain.Snapshot, update *domain.FieldUpdate) error {
	if userID == 0 {
		return errors.New("user id is required")
	}

	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close(ctx) }()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert for user %d: %w", userID, errors.Join(domain.ErrWriteFailed, err))
	}

	if err := s.recordInTx(ctx, tx, userID, snap, update); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert for user %d: %w", userID, errors.Join(domain.ErrWriteFailed, err))
	}

	s.logger.WithFields(logging.Fields{
		"event":   "interaction_recorded",
		"user_id": userID,
	}).Debug("stored interaction data")

	return nil
}

func (s *Store) recordInTx(ctx context.Context, tx pgTx, userID int64, snap domain.Snapshot, update *domain.FieldUpdate) error {
	now := domain.RecordTime(time.Now())

	var count int64
	err := tx.QueryRow(ctx,
		`SELECT interaction_count FROM telegram_users WHERE user_id = $1;`,
		userID,
	).Scan(&count)

	switch {
	case err == nil:
		if update != nil {
			// The column name comes from the closed Field enum, never from
			// caller input.
			q := fmt.Sprintf(`
UPDATE telegram_users
   SET name = $1, username = $2, %s = $3, last_interaction = $4, interaction_count = $5
 WHERE user_id = $6;`, update.Field.Column())
			if _, err := tx.Exec(ctx, q, snap.Name, snap.Username, update.Value, now, count+1, userID); err != nil {
				return fmt.Errorf("update user %d: %w", userID, errors.Join(domain.ErrWriteFailed, err))
			}
			return nil
		}

		q := `
UPDATE telegram_users
   SET name = $1, username = $2, last_interaction = $3, interaction_count = $4
 WHERE user_id = $5;`
		if _, err := tx.Exec(ctx, q, snap.Name, snap.Username, now, count+1, userID); err != nil {
			return fmt.Errorf("update user %d: %w", userID, errors.Join(domain.ErrWriteFailed, err))
		}
		return nil

	case errors.Is(err, pgx.ErrNoRows):
		record := domain.UserRecord{
			UserID:            userID,
			Name:              snap.Name,
			Username:          snap.Username,
			Mobile:            domain.ValueUnknown,
			Email:             domain.ValueUnknown,
			ChallengeResponse: domain.ValueUnknown,
			ClickedButton:     domain.ValueUnknown,
			Gender:            domain.ValueUnknown,
			Location:          domain.ValueUnknown,
			Language:          domain.ValueUnknown,
			ReferralSource:    domain.ValueUnknown,
		}
		if update != nil {
			applyField(&record, update)
		}

		q := `
INSERT INTO telegram_users (
  user_id, name, username, mobile, email, challenge_response,
  clicked_button, gender, location, language, referral_source,
  first_interaction, last_interaction, interaction_count
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14);`
		_, err := tx.Exec(ctx, q,
			record.UserID, record.Name, record.Username, record.Mobile, record.Email,
			record.ChallengeResponse, record.ClickedButton, record.Gender,
			record.Location, record.Language, record.ReferralSource,
			now, now, int64(1),
		)
		if err != nil {
			return fmt.Errorf("insert user %d: %w", userID, errors.Join(domain.ErrWriteFailed, err))
		}
		return nil

	default:
		return fmt.Errorf("look up user %d: %w", userID, errors.Join(domain.ErrWriteFailed, err))
	}
}

func applyField(record *domain.UserRecord, update *domain.FieldUpdate) {
	switch update.Field {
	case domain.FieldChallengeResponse:
		record.ChallengeResponse = update.Value
	case domain.FieldClickedButton:
		record.ClickedButton = update.Value
	case domain.FieldGender:
		record.Gender = update.Value
	case domain.FieldLocation:
		record.Location = update.Value
	case domain.FieldLanguage:
		record.Language = update.Value
	case domain.FieldReferralSource:
		record.ReferralSource = update.Value
	}
}

// LogEvent appends one row to the append-only interaction log.
func (s *Store) LogEvent(ctx context.Context, ev domain.Event) error {
	if ev.UserID == 0 {
		return errors.New("user id is required")
	}

	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close(ctx) }()

	if ev.At.IsZero() {
		ev.At = domain.RecordTime(time.Now())
	}

	q := `
INSERT INTO telegram_interaction_logs (
  user_id, name, username, message_text, bot_response, interaction_type, interaction_data, ts
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`
	_, err = conn.Exec(ctx, q,
		ev.UserID, ev.Name, ev.Username, ev.MessageText, ev.BotResponse, ev.Type, ev.Data, ev.At,
	)
	if err != nil {
		return fmt.Errorf("log interaction for user %d: %w", ev.UserID, errors.Join(domain.ErrWriteFailed, err))
	}

	return nil
}
