package filestore

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"career_support_bot/internal/domain"
	"career_support_bot/internal/store"
)

func newTestStore(t *testing.T) (*Store, string, *logtest.Hook) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.csv")
	hookLogger, hook := logtest.NewNullLogger()
	return New(path, logrus.NewEntry(hookLogger)), path, hook
}

func readRecords(t *testing.T, path string) [][]string {
	t.Helper()

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open store file: %v", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("read store file: %v", err)
	}
	return records
}

func TestEnsureSchemaCreatesFileWithBaselineHeader(t *testing.T) {
	s, path, _ := newTestStore(t)

	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema returned error: %v", err)
	}

	records := readRecords(t, path)
	if len(records) != 1 {
		t.Fatalf("expected header only, got %d rows", len(records))
	}
	if !reflect.DeepEqual(records[0], store.BaselineHeader) {
		t.Fatalf("expected baseline header, got %v", records[0])
	}
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	s, path, _ := newTestStore(t)

	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("first EnsureSchema failed: %v", err)
	}
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("second EnsureSchema failed: %v", err)
	}

	records := readRecords(t, path)
	if len(records) != 1 || len(records[0]) != len(store.BaselineHeader) {
		t.Fatalf("expected unchanged header, got %v", records)
	}
}

func TestEnsureSchemaAppendsMissingColumnsWithoutReordering(t *testing.T) {
	s, path, _ := newTestStore(t)

	// Legacy file predating the Gender..Referral Source columns.
	legacy := [][]string{
		{"User ID", "Name", "Username", "Timestamp", "Mobile", "Email", "Challenge Response", "Clicked Button"},
		{"12345", "Asha K", "asha_k", "2025-01-01 00:00:00", "N/A", "N/A", "N/A", "Get free PDF"},
	}
	writeCSV(t, path, legacy)

	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema returned error: %v", err)
	}

	records := readRecords(t, path)
	header := records[0]

	if !reflect.DeepEqual(header[:8], legacy[0]) {
		t.Fatalf("expected existing columns preserved in order, got %v", header)
	}
	if !reflect.DeepEqual(header[8:], []string{"Gender", "Location", "Language", "Referral Source"}) {
		t.Fatalf("expected missing baseline columns appended, got %v", header[8:])
	}
	if len(records[1]) != len(header) {
		t.Fatalf("expected existing rows padded to header width, got %d vs %d", len(records[1]), len(header))
	}
	if records[1][7] != "Get free PDF" {
		t.Fatalf("expected existing data untouched, got %v", records[1])
	}
}

func TestEnsureSchemaRecoversCorruptFileDestructively(t *testing.T) {
	s, path, hook := newTestStore(t)

	if err := os.WriteFile(path, []byte("\"unterminated quote\nnot,csv"), 0o644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}

	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("expected destructive recovery, got error: %v", err)
	}

	records := readRecords(t, path)
	if len(records) != 1 || !reflect.DeepEqual(records[0], store.BaselineHeader) {
		t.Fatalf("expected fresh store with baseline header, got %v", records)
	}

	var loggedError bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel && entry.Data["event"] == "store_corrupt_recovery" {
			loggedError = true
		}
	}
	if !loggedError {
		t.Fatalf("expected recovery to be logged at error level")
	}
}

func TestRecordAndLogEventStoreOneRowPerInteraction(t *testing.T) {
	s, path, _ := newTestStore(t)

	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema returned error: %v", err)
	}

	ctx := context.Background()
	snap := domain.Snapshot{Name: "Asha K", Username: "asha_k"}
	update := &domain.FieldUpdate{Field: domain.FieldClickedButton, Value: "Get free PDF"}

	// The store receives both writes for one interaction; only LogEvent may
	// append, or the log ends up with duplicate rows.
	if err := s.Record(ctx, 12345, snap, update); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if err := s.LogEvent(ctx, domain.Event{
		UserID:   12345,
		Name:     snap.Name,
		Username: snap.Username,
		Type:     domain.InteractionClickedButton,
		Data:     "Get free PDF",
	}); err != nil {
		t.Fatalf("LogEvent returned error: %v", err)
	}

	records := readRecords(t, path)
	if len(records) != 2 {
		t.Fatalf("expected header plus exactly 1 row per interaction, got %d rows", len(records)-1)
	}

	row := records[1]
	if row[0] != "12345" || row[7] != "Get free PDF" {
		t.Fatalf("expected clicked button in the event row, got %v", row)
	}
	if row[6] != domain.ValueUnknown {
		t.Fatalf("expected challenge response default, got %v", row)
	}
}

func TestLogEventResolvesKnownTypeAndWarnsOnUnknown(t *testing.T) {
	s, path, hook := newTestStore(t)

	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema returned error: %v", err)
	}

	ctx := context.Background()

	known := domain.Event{
		UserID:   7,
		Name:     "A",
		Username: "a",
		Type:     domain.InteractionClickedButton,
		Data:     "Contact Us",
	}
	if err := s.LogEvent(ctx, known); err != nil {
		t.Fatalf("LogEvent returned error: %v", err)
	}

	unknown := domain.Event{
		UserID:   7,
		Name:     "A",
		Username: "a",
		Type:     "Mystery Type",
		Data:     "whatever",
	}
	if err := s.LogEvent(ctx, unknown); err != nil {
		t.Fatalf("LogEvent with unknown type must proceed, got error: %v", err)
	}

	records := readRecords(t, path)
	if len(records) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(records))
	}
	if records[1][7] != "Contact Us" {
		t.Fatalf("expected clicked button column set, got %v", records[1])
	}
	if records[2][7] != domain.ValueUnknown {
		t.Fatalf("expected unknown type to set no extra field, got %v", records[2])
	}

	var warned bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel && entry.Data["event"] == "unrecognized_interaction_type" {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("expected warning for unrecognized interaction type")
	}
}

func TestLogEventFailsWhenFileMissing(t *testing.T) {
	s, _, _ := newTestStore(t)

	err := s.LogEvent(context.Background(), domain.Event{UserID: 1, Name: "A", Username: "a"})
	if err == nil {
		t.Fatalf("expected error when store file does not exist")
	}
}

func TestPingReflectsFilePresence(t *testing.T) {
	s, _, _ := newTestStore(t)

	if err := s.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping to fail before EnsureSchema")
	}

	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema returned error: %v", err)
	}

	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("expected ping to succeed, got %v", err)
	}
}

func writeCSV(t *testing.T, path string, records [][]string) {
	t.Helper()

	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.WriteAll(records); err != nil {
		t.Fatalf("write csv: %v", err)
	}
}
