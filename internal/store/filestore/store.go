// Package filestore implements the interaction store as a delimited text
// file with a header row. The file is an append-only event log: every
// recorded interaction is one new row.
package filestore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"career_support_bot/internal/domain"
	"career_support_bot/internal/logging"
	"career_support_bot/internal/store"
)

// Store appends interaction rows to a CSV file at path. Each operation
// opens and closes its own file handle.
type Store struct {
	path   string
	logger *logrus.Entry
}

// New builds a file store; the file itself is created by EnsureSchema.
func New(path string, logger *logrus.Entry) *Store {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Store{path: path, logger: logger}
}

// EnsureSchema creates the file with the baseline header when absent, and
// appends any baseline column missing from an existing header (never
// removing or reordering existing columns). An unreadable file is discarded
// and recreated with only the baseline header: a destructive last resort,
// logged at error level, since it drops all prior rows.
func (s *Store) EnsureSchema(context.Context) error {
	records, err := s.readAll()
	if errors.Is(err, os.ErrNotExist) {
		return s.writeAll([][]string{store.BaselineHeader})
	}
	if err != nil {
		s.logger.WithFields(logging.Fields{
			"event": "store_corrupt_recovery",
			"path":  s.path,
		}).WithError(err).Error("existing store file is unreadable, recreating with baseline header; prior records are lost")

		if writeErr := s.writeAll([][]string{store.BaselineHeader}); writeErr != nil {
			return fmt.Errorf("recreate store file: %w", errors.Join(domain.ErrStoreCorrupt, writeErr))
		}
		return nil
	}
	if len(records) == 0 {
		return s.writeAll([][]string{store.BaselineHeader})
	}

	header := records[0]
	existing := make(map[string]bool, len(header))
	for _, col := range header {
		existing[col] = true
	}

	added := false
	for _, col := range store.BaselineHeader {
		if !existing[col] {
			header = append(header, col)
			added = true
			s.logger.WithFields(logging.Fields{
				"event":  "store_header_migrated",
				"column": col,
			}).Info("added missing baseline column")
		}
	}
	if !added {
		return nil
	}

	records[0] = header
	for i := 1; i < len(records); i++ {
		for len(records[i]) < len(header) {
			records[i] = append(records[i], "")
		}
	}

	return s.writeAll(records)
}

// Record is a no-op. The file is a single append-only log with no user table
// to update in place; the complete row for each interaction is written by
// LogEvent, and writing here too would duplicate it.
func (s *Store) Record(context.Context, int64, domain.Snapshot, *domain.FieldUpdate) error {
	return nil
}

// LogEvent appends one row per event, resolving its symbolic interaction
// type to a column when one matches. An unrecognized type is logged and the
// row is written without any extra field set.
func (s *Store) LogEvent(_ context.Context, ev domain.Event) error {
	if ev.UserID == 0 {
		return errors.New("user id is required")
	}

	var update *domain.FieldUpdate
	if field, ok := domain.ParseField(ev.Type); ok {
		update = &domain.FieldUpdate{Field: field, Value: ev.Data}
	} else if ev.Type != "" && ev.Type != domain.InteractionCommand {
		s.logger.WithFields(logging.Fields{
			"event":            "unrecognized_interaction_type",
			"interaction_type": ev.Type,
			"user_id":          ev.UserID,
		}).Warn("interaction type has no matching column, row written without it")
	}

	if ev.At.IsZero() {
		ev.At = domain.RecordTime(time.Now())
	}

	snap := domain.Snapshot{Name: ev.Name, Username: ev.Username}
	return s.appendRow(ev.UserID, snap, domain.FormatTimestamp(ev.At), update)
}

// Ping reports whether the store file is accessible.
func (s *Store) Ping(context.Context) error {
	if _, err := os.Stat(s.path); err != nil {
		return fmt.Errorf("stat store file: %w", err)
	}
	return nil
}

// Close is a no-op: no handle survives an operation.
func (s *Store) Close(context.Context) error {
	return nil
}

func (s *Store) appendRow(userID int64, snap domain.Snapshot, at string, update *domain.FieldUpdate) error {
	header, err := s.header()
	if err != nil {
		return fmt.Errorf("read header: %w", errors.Join(domain.ErrWriteFailed, err))
	}

	row := store.FileRow(header, userID, snap, at, update)

	file, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open store file: %w", errors.Join(domain.ErrWriteFailed, err))
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(row); err != nil {
		return fmt.Errorf("append row: %w", errors.Join(domain.ErrWriteFailed, err))
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush row: %w", errors.Join(domain.ErrWriteFailed, err))
	}

	return nil
}

func (s *Store) header() ([]string, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, err
	}

	return header, nil
}

func (s *Store) readAll() ([][]string, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	return reader.ReadAll()
}

func (s *Store) writeAll(records [][]string) error {
	file, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create store file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.WriteAll(records); err != nil {
		return fmt.Errorf("write store file: %w", err)
	}

	return writer.Error()
}
