package session

import "errors"

var (
	// ErrInvalidConfig indicates a rejected creation request or manager config
	ErrInvalidConfig = errors.New("session.invalid_config")

	// ErrCapacityExhausted indicates no slot could be freed for a new session
	ErrCapacityExhausted = errors.New("session.capacity_exhausted")

	// ErrSessionNotFound indicates no live session has the given id
	ErrSessionNotFound = errors.New("session.not_found")

	// ErrSessionClosed indicates the session was torn down
	ErrSessionClosed = errors.New("session.closed")

	// ErrStorageInit indicates the storage backend failed to initialize
	ErrStorageInit = errors.New("session.storage_init_failed")

	// ErrSyncFailed indicates a write succeeded but could not be synced to storage
	ErrSyncFailed = errors.New("session.sync_failed")
)
