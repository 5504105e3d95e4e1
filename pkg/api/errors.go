package api

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/sqlbridge/pkg/server"
	"github.com/dmitrymomot/sqlbridge/pkg/session"
	"github.com/dmitrymomot/sqlbridge/pkg/storage"
)

// Error codes returned in the "error" field of failed responses.
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeSessionNotFound    = "SESSION_NOT_FOUND"
	CodeSQLExecution       = "SQL_EXECUTION_ERROR"
	CodeCapacityExhausted  = "SESSION_CAPACITY_EXHAUSTED"
	CodeInternalError      = "INTERNAL_SERVER_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

var ErrInvalidRequest = errors.New("api.invalid_request")

// statusFor maps a domain error onto an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, session.ErrInvalidConfig),
		errors.Is(err, storage.ErrUnknownBackend),
		errors.Is(err, storage.ErrInvalidConfig),
		errors.Is(err, storage.ErrMissingPath),
		errors.Is(err, storage.ErrOutsideRoot):
		return http.StatusBadRequest, CodeInvalidRequest
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound, CodeSessionNotFound
	case errors.Is(err, session.ErrCapacityExhausted):
		return http.StatusServiceUnavailable, CodeCapacityExhausted
	case errors.Is(err, server.ErrClosed), errors.Is(err, server.ErrNotReady):
		return http.StatusServiceUnavailable, CodeServiceUnavailable
	default:
		return http.StatusInternalServerError, CodeInternalError
	}
}
