package api

import (
	"fmt"
	"time"

	"github.com/dmitrymomot/sqlbridge/pkg/executor"
	"github.com/dmitrymomot/sqlbridge/pkg/session"
	"github.com/dmitrymomot/sqlbridge/pkg/storage"
)

// StorageRequest selects the backend of a persistent session. Option values
// may be any JSON scalar and are passed to the backend as strings.
type StorageRequest struct {
	Type        string            `json:"type"`
	Path        string            `json:"path"`
	Credentials map[string]string `json:"credentials,omitempty"`
	Options     map[string]any    `json:"options,omitempty"`
}

func (s StorageRequest) config() storage.Config {
	cfg := storage.Config{Type: s.Type, Path: s.Path, Credentials: s.Credentials}
	if len(s.Options) > 0 {
		cfg.Options = make(map[string]string, len(s.Options))
		for k, v := range s.Options {
			if v != nil {
				cfg.Options[k] = fmt.Sprint(v)
			}
		}
	}
	return cfg
}

// CreateSessionRequest is the body of POST /sessions. Every field is
// optional. A nil TTLSeconds applies the manager default, zero disables
// expiry.
type CreateSessionRequest struct {
	SessionID  string          `json:"session_id,omitempty"`
	Type       string          `json:"type,omitempty"`
	TTLSeconds *int            `json:"ttl_seconds,omitempty"`
	Storage    *StorageRequest `json:"storage,omitempty"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
}

func (req CreateSessionRequest) options() ([]session.CreateOption, error) {
	typ, err := session.ParseType(req.Type)
	if err != nil {
		return nil, err
	}
	opts := []session.CreateOption{session.WithType(typ)}
	if req.SessionID != "" {
		opts = append(opts, session.WithSessionID(req.SessionID))
	}
	if req.TTLSeconds != nil {
		switch ttl := *req.TTLSeconds; {
		case ttl < 0:
			return nil, fmt.Errorf("%w: ttl_seconds must not be negative", ErrInvalidRequest)
		case ttl == 0:
			opts = append(opts, session.WithoutExpiry())
		default:
			opts = append(opts, session.WithTTL(time.Duration(ttl)*time.Second))
		}
	}
	if req.Storage != nil {
		opts = append(opts, session.WithStorage(req.Storage.config()))
	}
	if len(req.Metadata) > 0 {
		opts = append(opts, session.WithMetadata(req.Metadata))
	}
	return opts, nil
}

type SessionResponse struct {
	Success bool         `json:"success"`
	Session session.Info `json:"session"`
	Message string       `json:"message,omitempty"`
}

type Limits struct {
	MaxSessions     int     `json:"max_sessions"`
	ActiveSessions  int     `json:"active_sessions"`
	AvailableSlots  int     `json:"available_slots"`
	UsagePercentage float64 `json:"usage_percentage"`
	EvictionPolicy  string  `json:"eviction_policy"`
}

type ListSessionsResponse struct {
	Success        bool                    `json:"success"`
	Sessions       map[string]session.Info `json:"sessions"`
	SessionDetails []session.Detail        `json:"session_details"`
	Statistics     session.Stats           `json:"statistics"`
	Limits         Limits                  `json:"limits"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type CleanupResponse struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	SessionsCleaned int    `json:"sessions_cleaned"`
}

// QueryRequest is the body of POST /query. Without a session ID a new
// memory session is created and its ID returned.
type QueryRequest struct {
	SQL       string `json:"sql"`
	SessionID string `json:"session_id,omitempty"`
}

type QueryResponse struct {
	Success         bool             `json:"success"`
	Data            []map[string]any `json:"data"`
	Columns         []string         `json:"columns"`
	RowCount        int64            `json:"row_count"`
	ExecutionTimeMS float64          `json:"execution_time_ms"`
	TranslatedSQL   string           `json:"translated_sql,omitempty"`
	SessionID       string           `json:"session_id"`
}

// NewQueryResponse converts a successful Result.
func NewQueryResponse(res executor.Result) QueryResponse {
	data := res.Data
	if data == nil {
		data = []map[string]any{}
	}
	cols := res.Columns
	if cols == nil {
		cols = []string{}
	}
	return QueryResponse{
		Success:         true,
		Data:            data,
		Columns:         cols,
		RowCount:        res.RowCount,
		ExecutionTimeMS: float64(res.ExecutionTime.Microseconds()) / 1000,
		TranslatedSQL:   res.TranslatedSQL,
		SessionID:       res.SessionID,
	}
}

type HealthResponse struct {
	Status  string  `json:"status"`
	Version string  `json:"version"`
	Uptime  float64 `json:"uptime"`
}
