// Package store defines the interaction-persistence contract shared by the
// Mongo, Postgres, CSV, and workbook backends, plus the no-op and fan-out
// recorders used for wiring.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"career_support_bot/internal/domain"
)

// Recorder upserts the per-user record for one interaction. Backends without
// a user table (the append-only file and workbook stores) implement this as
// a no-op; their single row per interaction comes from LogEvent.
type Recorder interface {
	Record(ctx context.Context, userID int64, snap domain.Snapshot, update *domain.FieldUpdate) error
}

// EventLogger appends one immutable row to the interaction log.
type EventLogger interface {
	LogEvent(ctx context.Context, ev domain.Event) error
}

// Interactions is what the dispatcher needs from a store.
type Interactions interface {
	Recorder
	EventLogger
}

// Store is a full persistence backend.
type Store interface {
	Interactions

	// EnsureSchema idempotently creates the destination schema. Safe to call
	// on every process start.
	EnsureSchema(ctx context.Context) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	Close(ctx context.Context) error
}

// StatsReader exposes aggregate counts for the owner /stats command.
// Backends that cannot aggregate (append-only files) simply don't implement
// it.
type StatsReader interface {
	TotalUsers(ctx context.Context) (int64, error)
	TotalInteractions(ctx context.Context) (int64, error)
	UserSummary(ctx context.Context, userID int64) (domain.UserRecord, error)
}

// Disabled is the recorder used when store credentials are absent: every
// write fails with ErrConfigurationMissing, is logged by the caller, and the
// bot keeps replying.
type Disabled struct{}

func (Disabled) Record(context.Context, int64, domain.Snapshot, *domain.FieldUpdate) error {
	return fmt.Errorf("persistence disabled: %w", domain.ErrConfigurationMissing)
}

func (Disabled) LogEvent(context.Context, domain.Event) error {
	return fmt.Errorf("persistence disabled: %w", domain.ErrConfigurationMissing)
}

func (Disabled) EnsureSchema(context.Context) error { return nil }

func (Disabled) Ping(context.Context) error {
	return fmt.Errorf("persistence disabled: %w", domain.ErrConfigurationMissing)
}

func (Disabled) Close(context.Context) error { return nil }

// Composite fans every operation out to all member stores. All members are
// attempted even when an earlier one fails; the joined error is returned.
type Composite struct {
	stores []Store
}

// NewComposite builds a Composite over the given stores.
func NewComposite(stores ...Store) *Composite {
	return &Composite{stores: stores}
}

func (c *Composite) Record(ctx context.Context, userID int64, snap domain.Snapshot, update *domain.FieldUpdate) error {
	var errs []error
	for _, s := range c.stores {
		if err := s.Record(ctx, userID, snap, update); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Composite) LogEvent(ctx context.Context, ev domain.Event) error {
	var errs []error
	for _, s := range c.stores {
		if err := s.LogEvent(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Composite) EnsureSchema(ctx context.Context) error {
	var errs []error
	for _, s := range c.stores {
		if err := s.EnsureSchema(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Composite) Ping(ctx context.Context) error {
	var errs []error
	for _, s := range c.stores {
		if err := s.Ping(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Composite) Close(ctx context.Context) error {
	var errs []error
	for _, s := range c.stores {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BaselineHeader is the minimum column set for file and workbook stores.
// New optional columns may be appended after these, never removed or
// reordered.
var BaselineHeader = []string{
	"User ID",
	"Name",
	"Username",
	"Timestamp",
	"Mobile",
	"Email",
	"Challenge Response",
	"Clicked Button",
	"Gender",
	"Location",
	"Language",
	"Referral Source",
}

// FileRow builds one event row aligned to the given header. Baseline columns
// default to ValueUnknown; columns beyond the baseline that the row does not
// populate stay empty.
func FileRow(header []string, userID int64, snap domain.Snapshot, at string, update *domain.FieldUpdate) []string {
	values := map[string]string{
		"User ID":   strconv.FormatInt(userID, 10),
		"Name":      snap.Name,
		"Username":  snap.Username,
		"Timestamp": at,
	}
	for _, col := range BaselineHeader {
		if _, ok := values[col]; !ok {
			values[col] = domain.ValueUnknown
		}
	}
	if update != nil {
		values[update.Field.Header()] = update.Value
	}

	row := make([]string, len(header))
	for i, col := range header {
		row[i] = values[col]
	}
	return row
}
