// Package api serves the session manager over HTTP with chi.
//
// Every failed request is answered with an ErrorBody whose "error" field is
// one of the Code constants:
//
//	INVALID_REQUEST             400
//	SESSION_NOT_FOUND           404
//	SQL_EXECUTION_ERROR         400
//	SESSION_CAPACITY_EXHAUSTED  503
//	SERVICE_UNAVAILABLE         503
//	INTERNAL_SERVER_ERROR       500
//
// POST /query creates a memory session when session_id is empty or unknown,
// so a client can start with a bare statement and reuse the returned ID.
package api
