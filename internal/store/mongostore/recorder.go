package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"career_support_bot/internal/domain"
	"career_support_bot/internal/logging"
)

var recordableFields = []domain.Field{
	domain.FieldChallengeResponse,
	domain.FieldClickedButton,
	domain.FieldGender,
	domain.FieldLocation,
	domain.FieldLanguage,
	domain.FieldReferralSource,
}

// Record upserts the user document: profile snapshot and last_interaction
// are overwritten, interaction_count is incremented, defaults are seeded
// only on insert. A single atomic UpdateOne carries the whole change.
func (s *Store) Record(ctx context.Context, userID int64, snap domain.Snapshot, update *domain.FieldUpdate) error {
	if s == nil || s.users == nil {
		return errors.New("mongo store is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if userID == 0 {
		return errors.New("user id is required")
	}

	now := domain.RecordTime(time.Now())

	set := bson.M{
		"name":             snap.Name,
		"username":         snap.Username,
		"last_interaction": now,
	}

	insertDefaults := bson.M{
		"user_id":           userID,
		"first_interaction": now,
		"mobile":            domain.ValueUnknown,
		"email":             domain.ValueUnknown,
	}

	// A column set by this interaction goes through $set; the rest of the
	// enumerated fields get their default only when the document is new.
	for _, f := range recordableFields {
		if update != nil && update.Field == f {
			set[f.Column()] = update.Value
			continue
		}
		insertDefaults[f.Column()] = domain.ValueUnknown
	}

	change := bson.M{
		"$set":         set,
		"$setOnInsert": insertDefaults,
		"$inc":         bson.M{"interaction_count": int64(1)},
	}

	result, err := s.users.UpdateOne(ctx,
		bson.M{"user_id": userID},
		change,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert user %d: %w", userID, errors.Join(domain.ErrWriteFailed, err))
	}

	if result != nil && result.UpsertedCount > 0 {
		s.logger.WithFields(logging.Fields{
			"event":   "user_recorded",
			"user_id": userID,
		}).Info("created user record")
		return nil
	}

	s.logger.WithFields(logging.Fields{
		"event":   "user_updated",
		"user_id": userID,
	}).Debug("updated user record")

	return nil
}

// LogEvent appends one immutable interaction-log document.
func (s *Store) LogEvent(ctx context.Context, ev domain.Event) error {
	if s == nil || s.logs == nil {
		return errors.New("mongo store is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if ev.UserID == 0 {
		return errors.New("user id is required")
	}

	if ev.At.IsZero() {
		ev.At = domain.RecordTime(time.Now())
	}

	if _, err := s.logs.InsertOne(ctx, ev); err != nil {
		return fmt.Errorf("log interaction for user %d: %w", ev.UserID, errors.Join(domain.ErrWriteFailed, err))
	}

	return nil
}
