package session

import (
	"log/slog"
	"maps"
	"time"

	"github.com/dmitrymomot/sqlbridge/pkg/executor"
	"github.com/dmitrymomot/sqlbridge/pkg/storage"
)

// Option is a functional option for configuring the Manager
type Option func(*Manager)

// WithConfig applies cfg. Non-positive values keep the current setting.
func WithConfig(cfg Config) Option {
	return func(m *Manager) {
		WithMaxSessions(cfg.MaxSessions)(m)
		WithDefaultTTL(cfg.DefaultTTL())(m)
		WithCleanupInterval(cfg.CleanupEvery())(m)
		WithShutdownWait(cfg.ShutdownTimeout())(m)
		WithStorageRoot(cfg.StorageRoot)(m)
	}
}

// WithStorageRoot confines caller-chosen local paths to dir. Ignored when
// WithRegistry supplies the registry.
func WithStorageRoot(dir string) Option {
	return func(m *Manager) {
		m.storageRoot = dir
	}
}

// WithMaxSessions sets the hard capacity.
func WithMaxSessions(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxSessions = n
		}
	}
}

// WithDefaultTTL sets the idle lifetime used when a caller does not pick one.
// Zero means sessions never expire by default.
func WithDefaultTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.defaultTTL = d
		}
	}
}

// WithCleanupInterval sets the period of the background sweep.
func WithCleanupInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.cleanupInterval = d
		}
	}
}

// WithShutdownWait bounds how long Shutdown waits for the sweep to stop.
func WithShutdownWait(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.shutdownWait = d
		}
	}
}

// WithLogger sets the logger for the manager and every session it creates.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock replaces time.Now. Used by tests to simulate the passage of time.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithRegistry sets the storage backend registry.
func WithRegistry(r *storage.Registry) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// WithExecutorFactory sets how session executors are built.
func WithExecutorFactory(f executor.Factory) Option {
	return func(m *Manager) {
		if f != nil {
			m.newExecutor = f
		}
	}
}

// WithIDGenerator replaces the session id generator.
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) {
		if gen != nil {
			m.newID = gen
		}
	}
}

// CreateOption describes the session requested from GetOrCreate.
type CreateOption func(*createParams)

type createParams struct {
	id       string
	ttl      time.Duration
	ttlSet   bool
	typ      Type
	storage  *storage.Config
	metadata map[string]any
}

// WithSessionID reuses the session with this id or creates it under this id.
func WithSessionID(id string) CreateOption {
	return func(p *createParams) {
		p.id = id
	}
}

// WithTTL sets the idle lifetime. Non-positive values fall back to the
// manager default.
func WithTTL(d time.Duration) CreateOption {
	return func(p *createParams) {
		if d > 0 {
			p.ttl, p.ttlSet = d, true
		}
	}
}

// WithoutExpiry creates a session that never expires by time.
func WithoutExpiry() CreateOption {
	return func(p *createParams) {
		p.ttl, p.ttlSet = 0, true
	}
}

// WithType sets the durability class. Defaults to TypeMemory.
func WithType(t Type) CreateOption {
	return func(p *createParams) {
		p.typ = t
	}
}

// WithStorage sets the storage backend config. Required for TypePersistent.
func WithStorage(cfg storage.Config) CreateOption {
	return func(p *createParams) {
		p.storage = &cfg
	}
}

// WithMetadata attaches opaque caller data to the session.
func WithMetadata(md map[string]any) CreateOption {
	return func(p *createParams) {
		if len(md) > 0 {
			p.metadata = maps.Clone(md)
		}
	}
}
