package mongostore

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"career_support_bot/internal/domain"
)

func TestRecordCreatesNewDocumentWithDefaults(t *testing.T) {
	users := newFakeUserCollection(t)
	s := &Store{users: users, logger: testLogger(t)}

	snap := domain.Snapshot{Name: "Asha K", Username: "asha_k"}
	if err := s.Record(context.Background(), 12345, snap, nil); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}

	doc := users.docFor(t, 12345)

	assertFieldEquals(t, doc, "user_id", int64(12345))
	assertFieldEquals(t, doc, "name", "Asha K")
	assertFieldEquals(t, doc, "username", "asha_k")
	assertFieldEquals(t, doc, "clicked_button", domain.ValueUnknown)
	assertFieldEquals(t, doc, "challenge_response", domain.ValueUnknown)
	assertFieldEquals(t, doc, "mobile", domain.ValueUnknown)
	assertFieldEquals(t, doc, "interaction_count", int64(1))

	first := assertTimeField(t, doc, "first_interaction")
	last := assertTimeField(t, doc, "last_interaction")
	if last.Before(first) {
		t.Fatalf("expected first_interaction <= last_interaction, got %v > %v", first, last)
	}
}

func TestRecordTwiceIncrementsCounterAndKeepsOneDocument(t *testing.T) {
	users := newFakeUserCollection(t)
	s := &Store{users: users, logger: testLogger(t)}

	snap := domain.Snapshot{Name: "Asha K", Username: "asha_k"}
	ctx := context.Background()

	if err := s.Record(ctx, 12345, snap, nil); err != nil {
		t.Fatalf("first Record returned error: %v", err)
	}
	if err := s.Record(ctx, 12345, snap, &domain.FieldUpdate{Field: domain.FieldClickedButton, Value: "Get free PDF"}); err != nil {
		t.Fatalf("second Record returned error: %v", err)
	}

	if len(users.docs) != 1 {
		t.Fatalf("expected exactly one document, got %d", len(users.docs))
	}

	doc := users.docFor(t, 12345)
	assertFieldEquals(t, doc, "interaction_count", int64(2))
	assertFieldEquals(t, doc, "clicked_button", "Get free PDF")
	assertFieldEquals(t, doc, "challenge_response", domain.ValueUnknown)

	first := assertTimeField(t, doc, "first_interaction")
	last := assertTimeField(t, doc, "last_interaction")
	if last.Before(first) {
		t.Fatalf("expected last_interaction >= first_interaction, got %v < %v", last, first)
	}
}

func TestRecordUpdatesOnlyNamedFieldAndBookkeeping(t *testing.T) {
	users := newFakeUserCollection(t)
	s := &Store{users: users, logger: testLogger(t)}

	users.seed(t, bson.M{
		"user_id":            int64(777),
		"name":               "Old Name",
		"username":           "old",
		"challenge_response": "🔹 Other",
		"clicked_button":     domain.ValueUnknown,
		"interaction_count":  int64(3),
		"first_interaction":  time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC),
		"last_interaction":   time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC),
	})

	snap := domain.Snapshot{Name: "New Name", Username: "new"}
	err := s.Record(context.Background(), 777, snap, &domain.FieldUpdate{Field: domain.FieldClickedButton, Value: "Contact Us"})
	if err != nil {
		t.Fatalf("Record returned error: %v", err)
	}

	doc := users.docFor(t, 777)
	assertFieldEquals(t, doc, "name", "New Name")
	assertFieldEquals(t, doc, "username", "new")
	assertFieldEquals(t, doc, "clicked_button", "Contact Us")
	assertFieldEquals(t, doc, "challenge_response", "🔹 Other")
	assertFieldEquals(t, doc, "interaction_count", int64(4))
}

func TestRecordRequiresUserID(t *testing.T) {
	s := &Store{users: newFakeUserCollection(t), logger: testLogger(t)}

	if err := s.Record(context.Background(), 0, domain.Snapshot{}, nil); err == nil {
		t.Fatalf("expected error for zero user id")
	}
}

func TestRecordWrapsWriteFailures(t *testing.T) {
	users := newFakeUserCollection(t)
	users.updateErr = mongo.CommandError{Message: "boom"}
	s := &Store{users: users, logger: testLogger(t)}

	err := s.Record(context.Background(), 12345, domain.Snapshot{Name: "x"}, nil)
	if err == nil {
		t.Fatalf("expected write failure")
	}
	if !errors.Is(err, domain.ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed in chain, got %v", err)
	}
}

func TestLogEventAppendsDocument(t *testing.T) {
	logs := &fakeLogCollection{}
	s := &Store{logs: logs, logger: testLogger(t)}

	ev := domain.Event{
		UserID:   12345,
		Name:     "Asha K",
		Username: "asha_k",
		Type:     domain.InteractionClickedButton,
		Data:     "Get free PDF",
	}

	if err := s.LogEvent(context.Background(), ev); err != nil {
		t.Fatalf("LogEvent returned error: %v", err)
	}
	if err := s.LogEvent(context.Background(), ev); err != nil {
		t.Fatalf("second LogEvent returned error: %v", err)
	}

	if len(logs.inserted) != 2 {
		t.Fatalf("expected 2 appended events, got %d", len(logs.inserted))
	}

	stored, ok := logs.inserted[0].(domain.Event)
	if !ok {
		t.Fatalf("expected domain.Event document, got %T", logs.inserted[0])
	}
	if stored.At.IsZero() {
		t.Fatalf("expected timestamp to be populated")
	}
	if stored.Data != "Get free PDF" {
		t.Fatalf("expected interaction data preserved, got %q", stored.Data)
	}
}

func TestStatsCountsAndSummary(t *testing.T) {
	users := newFakeUserCollection(t)
	users.seed(t, bson.M{"user_id": int64(1), "interaction_count": int64(2)})
	users.seed(t, bson.M{"user_id": int64(2), "interaction_count": int64(5)})
	logs := &fakeLogCollection{inserted: []interface{}{domain.Event{}, domain.Event{}, domain.Event{}}}

	s := &Store{users: users, logs: logs, logger: testLogger(t)}

	totalUsers, err := s.TotalUsers(context.Background())
	if err != nil {
		t.Fatalf("TotalUsers returned error: %v", err)
	}
	if totalUsers != 2 {
		t.Fatalf("expected 2 users, got %d", totalUsers)
	}

	totalInteractions, err := s.TotalInteractions(context.Background())
	if err != nil {
		t.Fatalf("TotalInteractions returned error: %v", err)
	}
	if totalInteractions != 3 {
		t.Fatalf("expected 3 interactions, got %d", totalInteractions)
	}
}

type fakeUserCollection struct {
	t         *testing.T
	docs      map[int64]bson.M
	updateErr error
}

func newFakeUserCollection(t *testing.T) *fakeUserCollection {
	t.Helper()
	return &fakeUserCollection{
		t:    t,
		docs: make(map[int64]bson.M),
	}
}

func (f *fakeUserCollection) UpdateOne(_ context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}

	filterDoc, ok := filter.(bson.M)
	if !ok {
		return nil, f.Errorf("unexpected filter type %T", filter)
	}

	userID := readInt64(f.t, filterDoc["user_id"])

	updateDoc, ok := update.(bson.M)
	if !ok {
		return nil, f.Errorf("unexpected update type %T", update)
	}

	setDoc, _ := updateDoc["$set"].(bson.M)
	setOnInsertDoc, _ := updateDoc["$setOnInsert"].(bson.M)
	incDoc, _ := updateDoc["$inc"].(bson.M)

	upsert := len(opts) > 0 && opts[0] != nil && opts[0].Upsert != nil && *opts[0].Upsert

	doc, found := f.docs[userID]
	if !found && !upsert {
		return &mongo.UpdateResult{}, nil
	}
	if !found {
		doc = bson.M{}
		merge(doc, setOnInsertDoc)
	}

	merge(doc, setDoc)
	for k, v := range incDoc {
		current, _ := doc[k].(int64)
		doc[k] = current + readInt64(f.t, v)
	}
	f.docs[userID] = doc

	result := &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}
	if !found && upsert {
		result.MatchedCount = 0
		result.UpsertedCount = 1
		result.UpsertedID = userID
	}

	return result, nil
}

func (f *fakeUserCollection) FindOne(context.Context, interface{}, ...*options.FindOneOptions) *mongo.SingleResult {
	// UserSummary's decode path needs a live server; covered elsewhere.
	return &mongo.SingleResult{}
}

func (f *fakeUserCollection) CountDocuments(context.Context, interface{}, ...*options.CountOptions) (int64, error) {
	return int64(len(f.docs)), nil
}

func (f *fakeUserCollection) docFor(t *testing.T, userID int64) bson.M {
	t.Helper()

	doc, ok := f.docs[userID]
	if !ok {
		t.Fatalf("no document stored for user_id=%d", userID)
	}

	return doc
}

func (f *fakeUserCollection) seed(t *testing.T, doc bson.M) {
	t.Helper()
	idVal, ok := doc["user_id"]
	if !ok {
		t.Fatalf("seed document missing user_id: %v", doc)
	}

	f.docs[readInt64(t, idVal)] = doc
}

func (f *fakeUserCollection) Errorf(format string, args ...interface{}) error {
	f.t.Helper()
	f.t.Fatalf(format, args...)
	return nil
}

type fakeLogCollection struct {
	inserted  []interface{}
	insertErr error
}

func (f *fakeLogCollection) InsertOne(_ context.Context, document interface{}, _ ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	f.inserted = append(f.inserted, document)
	return &mongo.InsertOneResult{}, nil
}

func (f *fakeLogCollection) CountDocuments(context.Context, interface{}, ...*options.CountOptions) (int64, error) {
	return int64(len(f.inserted)), nil
}

func merge(dst bson.M, updates bson.M) {
	for k, v := range updates {
		dst[k] = v
	}
}

func readInt64(t *testing.T, value interface{}) int64 {
	t.Helper()

	switch v := value.(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	default:
		t.Fatalf("expected int64-compatible value, got %T", value)
		return 0
	}
}

func assertFieldEquals(t *testing.T, doc bson.M, field string, expected interface{}) {
	t.Helper()

	val, ok := doc[field]
	if !ok {
		t.Fatalf("expected field %s to be set", field)
	}

	if val != expected {
		t.Fatalf("expected %s=%v, got %v", field, expected, val)
	}
}

func assertTimeField(t *testing.T, doc bson.M, field string) time.Time {
	t.Helper()

	val, ok := doc[field]
	if !ok {
		t.Fatalf("expected field %s to be set", field)
	}

	ts, ok := val.(time.Time)
	if !ok {
		t.Fatalf("expected field %s to be time.Time, got %T", field, val)
	}

	return ts
}
