package domain

import "errors"

// Persistence error taxonomy. Recoverable outcomes (everything except a
// missing bot token) are logged and converted to results at the recorder
// boundary; they never interrupt message handling.
var (
	// ErrConfigurationMissing indicates a required credential is absent.
	// Fatal for the bot token, non-fatal for store credentials.
	ErrConfigurationMissing = errors.New("required configuration is missing")

	// ErrConnectionUnavailable indicates the store stayed unreachable after
	// bounded retries.
	ErrConnectionUnavailable = errors.New("store connection unavailable")

	// ErrSchemaInitFailed indicates the destination schema could not be
	// created or verified.
	ErrSchemaInitFailed = errors.New("schema initialization failed")

	// ErrWriteFailed indicates an insert/update/append did not complete.
	ErrWriteFailed = errors.New("interaction write failed")

	// ErrStoreCorrupt indicates an existing file-backed store could not be
	// read and was recreated, dropping prior records.
	ErrStoreCorrupt = errors.New("store file is corrupt")
)
