package executor

import (
	"context"
	"log/slog"
	"time"
)

// Executor runs SQL against one embedded database connection.
// Implementations are used by a single session at a time and need no
// internal locking.
type Executor interface {
	// Connect opens the database at path. An empty path means an in-memory
	// database. Connecting an already connected executor is a no-op.
	Connect(ctx context.Context, path string) error

	// Disconnect releases the connection. Safe to call more than once.
	Disconnect() error

	// Execute runs one statement. Failures are reported in the Result.
	Execute(ctx context.Context, sql string) Result
}

// Factory builds a fresh, unconnected executor.
type Factory func(log *slog.Logger) Executor

// Result is the outcome of a single statement.
type Result struct {
	Success       bool
	Data          []map[string]any
	Columns       []string
	RowCount      int64
	TranslatedSQL string
	ExecutionTime time.Duration
	SessionID     string
	// Error is the message of Err, kept for transport layers.
	Error string
	Err   error
}

// Failure builds a failed Result from err.
func Failure(err error) Result {
	r := Result{Success: false, Err: err}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}
