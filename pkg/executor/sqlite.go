package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	driverName = "sqlite"
	memoryDSN  = "file::memory:"

	defaultBusyTimeout = 5 * time.Second
)

var rowReturningPrefixes = []string{"SELECT", "WITH", "PRAGMA", "VALUES", "EXPLAIN"}

var returningClause = regexp.MustCompile(`(?i)\bRETURNING\b`)

// SQLite executes statements on an embedded modernc.org/sqlite database.
type SQLite struct {
	translator  Translator
	logger      *slog.Logger
	busyTimeout time.Duration
	maxRows     int

	db   *sql.DB
	path string
}

// Option configures SQLite.
type Option func(*SQLite)

// WithTranslator sets the dialect translator. A nil translator disables
// translation.
func WithTranslator(t Translator) Option {
	return func(s *SQLite) {
		s.translator = t
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *SQLite) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBusyTimeout sets how long a file database waits on a lock held by
// another process.
func WithBusyTimeout(d time.Duration) Option {
	return func(s *SQLite) {
		if d > 0 {
			s.busyTimeout = d
		}
	}
}

// WithMaxRows caps the rows returned by a query. Zero means no cap.
func WithMaxRows(n int) Option {
	return func(s *SQLite) {
		if n >= 0 {
			s.maxRows = n
		}
	}
}

// NewSQLite returns an unconnected executor using the default rule translator.
func NewSQLite(opts ...Option) *SQLite {
	s := &SQLite{
		translator:  NewRuleTranslator(),
		logger:      slog.New(slog.DiscardHandler),
		busyTimeout: defaultBusyTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSQLiteFactory returns a Factory producing SQLite executors.
// The logger passed to the factory overrides WithLogger.
func NewSQLiteFactory(opts ...Option) Factory {
	return func(log *slog.Logger) Executor {
		return NewSQLite(append(opts, WithLogger(log))...)
	}
}

// Connect implements Executor.
func (s *SQLite) Connect(ctx context.Context, path string) error {
	if s.db != nil {
		return nil
	}

	dsn := memoryDSN
	if path != "" {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", path, s.busyTimeout.Milliseconds())
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}
	// One connection keeps an in-memory database alive and serializes access.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	s.db, s.path = db, path
	s.logger.DebugContext(ctx, "executor connected",
		slog.String("path", displayPath(path)))
	return nil
}

// Disconnect implements Executor.
func (s *SQLite) Disconnect() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Connected reports whether Connect succeeded and Disconnect has not run.
func (s *SQLite) Connected() bool { return s.db != nil }

// Execute implements Executor.
func (s *SQLite) Execute(ctx context.Context, query string) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = Failure(fmt.Errorf("%w: %v", ErrPanic, r))
		}
		res.ExecutionTime = time.Since(start)
	}()

	if s.db == nil {
		return Failure(ErrNotConnected)
	}

	translated := query
	if s.translator != nil {
		var err error
		translated, err = s.translator.Translate(query)
		if err != nil {
			if errors.Is(err, ErrEmptyStatement) {
				return Failure(err)
			}
			return Failure(fmt.Errorf("%w: %v", ErrTranslateFailed, err))
		}
	} else if strings.TrimSpace(query) == "" {
		return Failure(ErrEmptyStatement)
	}

	if returnsRows(translated) {
		res = s.query(ctx, translated)
	} else {
		res = s.exec(ctx, translated)
	}
	res.TranslatedSQL = translated
	return res
}

func (s *SQLite) query(ctx context.Context, query string) Result {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return Failure(fmt.Errorf("%w: %v", ErrExecutionFailed, err))
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Failure(fmt.Errorf("%w: %v", ErrExecutionFailed, err))
	}

	data := make([]map[string]any, 0)
	for rows.Next() {
		if s.maxRows > 0 && len(data) >= s.maxRows {
			break
		}
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Failure(fmt.Errorf("%w: %v", ErrExecutionFailed, err))
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalize(values[i])
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return Failure(fmt.Errorf("%w: %v", ErrExecutionFailed, err))
	}

	return Result{
		Success:  true,
		Data:     data,
		Columns:  columns,
		RowCount: int64(len(data)),
	}
}

func (s *SQLite) exec(ctx context.Context, query string) Result {
	out, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return Failure(fmt.Errorf("%w: %v", ErrExecutionFailed, err))
	}
	affected, err := out.RowsAffected()
	if err != nil {
		affected = 0
	}
	return Result{
		Success:  true,
		Data:     []map[string]any{},
		RowCount: affected,
	}
}

func returnsRows(query string) bool {
	s := strings.ToUpper(strings.TrimSpace(query))
	for _, p := range rowReturningPrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return returningClause.MatchString(s)
}

func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func displayPath(path string) string {
	if path == "" {
		return ":memory:"
	}
	return path
}
