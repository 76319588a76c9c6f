package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"career_support_bot/internal/domain"
)

// TotalUsers counts distinct user records.
func (s *Store) TotalUsers(ctx context.Context) (int64, error) {
	if s == nil || s.users == nil {
		return 0, errors.New("mongo store is not initialized")
	}

	count, err := s.users.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}

	return count, nil
}

// TotalInteractions counts rows in the append-only interaction log.
func (s *Store) TotalInteractions(ctx context.Context) (int64, error) {
	if s == nil || s.logs == nil {
		return 0, errors.New("mongo store is not initialized")
	}

	count, err := s.logs.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count interactions: %w", err)
	}

	return count, nil
}

// UserSummary fetches the stored record for one user.
func (s *Store) UserSummary(ctx context.Context, userID int64) (domain.UserRecord, error) {
	if s == nil || s.users == nil {
		return domain.UserRecord{}, errors.New("mongo store is not initialized")
	}
	if userID == 0 {
		return domain.UserRecord{}, errors.New("user id is required")
	}

	result := s.users.FindOne(ctx, bson.M{"user_id": userID})
	if result == nil {
		return domain.UserRecord{}, errors.New("find user returned no result")
	}
	if err := result.Err(); err != nil {
		return domain.UserRecord{}, fmt.Errorf("find user %d: %w", userID, err)
	}

	var record domain.UserRecord
	if err := result.Decode(&record); err != nil {
		return domain.UserRecord{}, fmt.Errorf("decode user %d: %w", userID, err)
	}

	return record, nil
}
