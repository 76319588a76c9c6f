// Package pgstore implements the interaction store on Postgres. Each logical
// operation acquires its own connection with bounded retry and releases it
// before returning; there is no pooling or reuse across calls.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/sirupsen/logrus"

	"career_support_bot/internal/config"
	"career_support_bot/internal/domain"
	"career_support_bot/internal/logging"
)

const (
	TableUsers = "telegram_users"
	TableLogs  = "telegram_interaction_logs"

	connectAttempts = 3
)

// retryBase is the delay unit between connection attempts, scaled linearly
// by the attempt number. Variable so tests can shrink it.
var retryBase = 2 * time.Second

// pgTx is the slice of pgx.Tx behavior the recorder uses.
type pgTx interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// pgConnection is the slice of pgx.Conn behavior the store uses, narrowed so
// tests can stub the connect seam without a live server.
type pgConnection interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Begin(ctx context.Context) (pgTx, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type liveConn struct {
	*pgx.Conn
}

func (c liveConn) Begin(ctx context.Context) (pgTx, error) {
	return c.Conn.Begin(ctx)
}

// connectPg is overridable for tests.
var connectPg = func(ctx context.Context, dsn string) (pgConnection, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return liveConn{conn}, nil
}

// Store carries the connection string and retry policy; it holds no open
// connection between operations.
type Store struct {
	dsn    string
	logger *logrus.Entry
}

// New validates that all credentials are present and builds the store. A
// missing credential fails immediately with ErrConfigurationMissing and no
// network attempt is made.
func New(cfg config.Config, logger *logrus.Entry) (*Store, error) {
	if logger == nil {
		logger = logging.Logger()
	}

	if missing := cfg.MissingPostgresKeys(); len(missing) > 0 {
		return nil, fmt.Errorf("postgres credentials %s: %w",
			strings.Join(missing, ", "), domain.ErrConfigurationMissing)
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		url.QueryEscape(cfg.DBUser),
		url.QueryEscape(cfg.DBPassword),
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
	)

	return &Store{dsn: dsn, logger: logger}, nil
}

// acquire opens a dedicated connection, retrying transient failures with a
// linearly increasing delay. The caller must close the returned connection.
func (s *Store) acquire(ctx context.Context) (pgConnection, error) {
	var lastErr error

	for attempt := 1; attempt <= connectAttempts; attempt++ {
		conn, err := connectPg(ctx, s.dsn)
		if err == nil {
			return conn, nil
		}
		lastErr = err

		s.logger.WithFields(logging.Fields{
			"event":   "pg_connect_retry",
			"attempt": attempt,
		}).WithError(err).Warn("postgres connection attempt failed")

		if attempt < connectAttempts {
			if waitErr := wait(ctx, retryBase*time.Duration(attempt)); waitErr != nil {
				return nil, waitErr
			}
		}
	}

	return nil, fmt.Errorf("connect postgres after %d attempts: %w",
		connectAttempts, errors.Join(domain.ErrConnectionUnavailable, lastErr))
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

const createUsersSQL = `
CREATE TABLE IF NOT EXISTS telegram_users (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL UNIQUE,
  name TEXT NOT NULL DEFAULT 'N/A',
  username TEXT NOT NULL DEFAULT 'N/A',
  mobile TEXT NOT NULL DEFAULT 'N/A',
  email TEXT NOT NULL DEFAULT 'N/A',
  challenge_response TEXT NOT NULL DEFAULT 'N/A',
  clicked_button TEXT NOT NULL DEFAULT 'N/A',
  gender TEXT NOT NULL DEFAULT 'N/A',
  location TEXT NOT NULL DEFAULT 'N/A',
  language TEXT NOT NULL DEFAULT 'N/A',
  referral_source TEXT NOT NULL DEFAULT 'N/A',
  first_interaction TIMESTAMPTZ NOT NULL DEFAULT now(),
  last_interaction TIMESTAMPTZ NOT NULL DEFAULT now(),
  interaction_count BIGINT NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS telegram_users_last_interaction_idx
  ON telegram_users (last_interaction);
`

const createLogsSQL = `
CREATE TABLE IF NOT EXISTS telegram_interaction_logs (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL,
  name TEXT NOT NULL DEFAULT 'N/A',
  username TEXT NOT NULL DEFAULT 'N/A',
  message_text TEXT,
  bot_response TEXT,
  interaction_type TEXT,
  interaction_data TEXT,
  ts TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS telegram_interaction_logs_user_id_idx
  ON telegram_interaction_logs (user_id);
CREATE INDEX IF NOT EXISTS telegram_interaction_logs_ts_idx
  ON telegram_interaction_logs (ts);
`

// EnsureSchema creates both tables if absent and verifies their presence
// with a follow-up existence check.
func (s *Store) EnsureSchema(ctx context.Context) error {
	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close(ctx) }()

	for _, ddl := range []string{createUsersSQL, createLogsSQL} {
		if _, err := conn.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("create tables: %w", errors.Join(domain.ErrSchemaInitFailed, err))
		}
	}

	for _, table := range []string{TableUsers, TableLogs} {
		var regclass *string
		if err := conn.QueryRow(ctx, `SELECT to_regclass($1);`, table).Scan(&regclass); err != nil {
			return fmt.Errorf("verify table %s: %w", table, errors.Join(domain.ErrSchemaInitFailed, err))
		}
		if regclass == nil {
			return fmt.Errorf("table %s missing after create: %w", table, domain.ErrSchemaInitFailed)
		}
	}

	s.logger.WithField("event", "pg_schema_ready").Info("postgres tables created/verified")

	return nil
}

// Ping opens a connection, pings, and releases it.
func (s *Store) Ping(ctx context.Context) error {
	conn, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close(ctx) }()

	return conn.Ping(ctx)
}

// Close is a no-op: no connection survives an operation.
func (s *Store) Close(context.Context) error {
	return nil
}
