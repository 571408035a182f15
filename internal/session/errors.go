package session

import "errors"

var (
	// ErrInvalidState is returned for a lifecycle operation attempted in the
	// wrong state: start while recording, stop/ingest/resync while idle.
	ErrInvalidState = errors.New("invalid session state")
	// ErrNotFound is returned when a record id is not (or no longer) in history.
	ErrNotFound = errors.New("session record not found")
	// ErrPersistence wraps a failed history write. The in-memory history
	// stays authoritative until the next successful write.
	ErrPersistence = errors.New("failed to persist session history")
	// ErrInvalidSpeed is returned for a negative or non-finite speed observation.
	ErrInvalidSpeed = errors.New("invalid speed observation")
)
