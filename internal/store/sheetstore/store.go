// Package sheetstore implements the interaction store as an xlsx workbook
// with a single "User Info" sheet, mirroring the delimited-file layout:
// append-only event rows under a migratable header.
package sheetstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"career_support_bot/internal/domain"
	"career_support_bot/internal/logging"
	"career_support_bot/internal/store"
)

// SheetName is the one sheet holding interaction rows.
const SheetName = "User Info"

// Store appends interaction rows to the workbook at path. Each operation
// loads and saves the workbook; nothing stays open between calls.
type Store struct {
	path   string
	logger *logrus.Entry
}

// New builds a workbook store; the file itself is created by EnsureSchema.
func New(path string, logger *logrus.Entry) *Store {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Store{path: path, logger: logger}
}

// EnsureSchema creates the workbook with the baseline header when absent,
// adds the sheet or header in place when a loadable workbook lacks them, and
// appends any baseline column missing from an existing header. Only a
// workbook that cannot be loaded at all is discarded and recreated:
// destructive, logged at error level, prior rows are lost.
func (s *Store) EnsureSchema(context.Context) error {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return s.createFresh()
	}

	book, err := excelize.OpenFile(s.path)
	if err != nil {
		s.logger.WithFields(logging.Fields{
			"event": "store_corrupt_recovery",
			"path":  s.path,
		}).WithError(err).Error("existing workbook is unreadable, recreating with baseline header; prior records are lost")

		if createErr := s.createFresh(); createErr != nil {
			return fmt.Errorf("recreate workbook: %w", errors.Join(domain.ErrStoreCorrupt, createErr))
		}
		return nil
	}
	defer book.Close()

	rows, err := book.GetRows(SheetName)
	if err != nil {
		// Only a missing sheet is repaired in place; any other read failure
		// must not discard a loadable workbook.
		var notExist excelize.ErrSheetNotExist
		if !errors.As(err, &notExist) {
			return fmt.Errorf("read sheet: %w", errors.Join(domain.ErrSchemaInitFailed, err))
		}
		if _, err := book.NewSheet(SheetName); err != nil {
			return fmt.Errorf("create sheet: %w", errors.Join(domain.ErrSchemaInitFailed, err))
		}
	}

	if len(rows) == 0 {
		if err := writeHeader(book); err != nil {
			return err
		}
		if err := book.Save(); err != nil {
			return fmt.Errorf("save workbook: %w", err)
		}
		s.logger.WithFields(logging.Fields{
			"event": "store_sheet_added",
			"sheet": SheetName,
		}).Info("added interaction sheet header to existing workbook")
		return nil
	}

	header := rows[0]
	existing := make(map[string]bool, len(header))
	for _, col := range header {
		existing[col] = true
	}

	added := false
	for _, col := range store.BaselineHeader {
		if existing[col] {
			continue
		}

		cell, cellErr := excelize.CoordinatesToCellName(len(header)+1, 1)
		if cellErr != nil {
			return fmt.Errorf("compute header cell: %w", cellErr)
		}
		if setErr := book.SetCellValue(SheetName, cell, col); setErr != nil {
			return fmt.Errorf("append header column %s: %w", col, setErr)
		}

		header = append(header, col)
		added = true
		s.logger.WithFields(logging.Fields{
			"event":  "store_header_migrated",
			"column": col,
		}).Info("added missing baseline column")
	}

	if !added {
		return nil
	}

	if err := book.Save(); err != nil {
		return fmt.Errorf("save migrated workbook: %w", err)
	}

	return nil
}

// Record is a no-op, same as the delimited-file store: the workbook is a
// single append-only log and the complete row for each interaction is
// written by LogEvent.
func (s *Store) Record(context.Context, int64, domain.Snapshot, *domain.FieldUpdate) error {
	return nil
}

// LogEvent appends one row per event, resolving its symbolic interaction
// type to a column when one matches; an unrecognized type is logged and the
// row is written without any extra field.
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

// Ping reports whether the workbook file is accessible.
func (s *Store) Ping(context.Context) error {
	if _, err := os.Stat(s.path); err != nil {
		return fmt.Errorf("stat workbook: %w", err)
	}
	return nil
}

// Close is a no-op: nothing stays open between operations.
func (s *Store) Close(context.Context) error {
	return nil
}

func (s *Store) createFresh() error {
	book := excelize.NewFile()
	defer book.Close()

	if err := book.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	if err := writeHeader(book); err != nil {
		return err
	}

	if err := book.SaveAs(s.path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}

	return nil
}

func writeHeader(book *excelize.File) error {
	header := make([]interface{}, len(store.BaselineHeader))
	for i, col := range store.BaselineHeader {
		header[i] = col
	}

	if err := book.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	return nil
}

func (s *Store) appendRow(userID int64, snap domain.Snapshot, at string, update *domain.FieldUpdate) error {
	book, err := excelize.OpenFile(s.path)
	if err != nil {
		return fmt.Errorf("open workbook: %w", errors.Join(domain.ErrWriteFailed, err))
	}
	defer book.Close()

	rows, err := book.GetRows(SheetName)
	if err != nil || len(rows) == 0 {
		return fmt.Errorf("read header: %w", errors.Join(domain.ErrWriteFailed, err))
	}

	values := store.FileRow(rows[0], userID, snap, at, update)
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}

	if err := book.SetSheetRow(SheetName, fmt.Sprintf("A%d", len(rows)+1), &row); err != nil {
		return fmt.Errorf("append row: %w", errors.Join(domain.ErrWriteFailed, err))
	}

	if err := book.Save(); err != nil {
		return fmt.Errorf("save workbook: %w", errors.Join(domain.ErrWriteFailed, err))
	}

	return nil
}
