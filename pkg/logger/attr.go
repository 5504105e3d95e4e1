package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error records err under the key "error". A nil error yields an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// RequestID records the request identifier under "request_id".
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

// SessionID records the session identifier under "session_id".
func SessionID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("session_id", id)
}

// SessionType records the session durability class under "session_type".
func SessionType[T ~string](t T) slog.Attr {
	return slog.String("session_type", string(t))
}

// StorageType records the storage backend tag under "storage_type".
func StorageType(tag string) slog.Attr {
	if tag == "" {
		return slog.Attr{}
	}
	return slog.String("storage_type", tag)
}

// Path records a filesystem path or object key under "path".
func Path(p string) slog.Attr {
	return slog.String("path", p)
}

// Count records a number of affected items under "count".
func Count(n int) slog.Attr {
	return slog.Int("count", n)
}

// SQL records a statement under "sql", truncated to keep records small.
func SQL(stmt string) slog.Attr {
	const limit = 256
	if len(stmt) > limit {
		stmt = stmt[:limit] + "..."
	}
	return slog.String("sql", stmt)
}

// Duration records d under "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Component records the component name under "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
