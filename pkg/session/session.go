package session

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dmitrymomot/sqlbridge/pkg/executor"
	"github.com/dmitrymomot/sqlbridge/pkg/logger"
	"github.com/dmitrymomot/sqlbridge/pkg/storage"
)

// Session is one isolated database plus its connection and lock.
//
// The executor is created lazily on first use and only ever touched while
// the session lock is held. A session moves from created to connected to
// closed and never back.
type Session struct {
	id          string
	typ         Type
	createdAt   time.Time
	ttl         time.Duration
	storageType string
	metadata    map[string]any

	now    func() time.Time
	logger *slog.Logger

	lastAccessed atomic.Int64
	active       atomic.Bool
	closePending atomic.Bool
	locked       atomic.Bool

	sem *semaphore.Weighted

	// Guarded by sem.
	newExecutor executor.Factory
	exec        executor.Executor
	closed      bool

	// Set at construction, never replaced.
	backend storage.Backend
}

type sessionParams struct {
	id          string
	typ         Type
	ttl         time.Duration
	storageType string
	metadata    map[string]any
	backend     storage.Backend
	newExecutor executor.Factory
	now         func() time.Time
	logger      *slog.Logger
}

func newSession(p sessionParams) *Session {
	created := p.now()
	s := &Session{
		id:          p.id,
		typ:         p.typ,
		createdAt:   created,
		ttl:         p.ttl,
		storageType: p.storageType,
		metadata:    p.metadata,
		now:         p.now,
		logger:      p.logger.With(logger.SessionID(p.id)),
		sem:         semaphore.NewWeighted(1),
		newExecutor: p.newExecutor,
		backend:     p.backend,
	}
	s.lastAccessed.Store(created.UnixNano())
	s.active.Store(true)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Type returns whether the session is in-memory or persistent.
func (s *Session) Type() Type { return s.typ }

// TTL returns the idle lifetime. Zero means the session never expires.
func (s *Session) TTL() time.Duration { return s.ttl }

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// LastAccessed returns when the session was last used.
func (s *Session) LastAccessed() time.Time {
	return time.Unix(0, s.lastAccessed.Load())
}

// Metadata returns a copy of the caller-supplied metadata.
func (s *Session) Metadata() map[string]any { return maps.Clone(s.metadata) }

func (s *Session) touch() {
	s.lastAccessed.Store(s.now().UnixNano())
}

// IsExpired reports whether the session sat idle for longer than its TTL.
func (s *Session) IsExpired() bool {
	if s.ttl <= 0 {
		return false
	}
	return s.now().Sub(s.LastAccessed()) > s.ttl
}

// IsActive reports whether the session is open and not expired.
func (s *Session) IsActive() bool {
	return s.active.Load() && !s.IsExpired()
}

// Busy reports whether the session lock is currently held.
func (s *Session) Busy() bool { return s.locked.Load() }

func (s *Session) lock(ctx context.Context) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	s.locked.Store(true)
	return nil
}

func (s *Session) tryLock() bool {
	if !s.sem.TryAcquire(1) {
		return false
	}
	s.locked.Store(true)
	return true
}

func (s *Session) unlock() {
	s.locked.Store(false)
	s.sem.Release(1)
	s.finishPendingClose(context.Background())
}

// finishPendingClose tears the session down if a forced close was requested
// while someone else held the lock. Whoever releases the lock last runs it.
func (s *Session) finishPendingClose(ctx context.Context) {
	if !s.closePending.Load() || !s.tryLock() {
		return
	}
	s.closeLocked(ctx)
	s.locked.Store(false)
	s.sem.Release(1)
}

// Executor returns the session executor, connecting it on first call.
// It is the only path that creates the executor.
func (s *Session) Executor(ctx context.Context) (executor.Executor, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	if s.closed || s.closePending.Load() {
		return nil, ErrSessionClosed
	}
	return s.executorLocked(ctx)
}

func (s *Session) executorLocked(ctx context.Context) (executor.Executor, error) {
	if s.exec != nil {
		return s.exec, nil
	}

	var path string
	if s.typ == TypePersistent {
		p, err := s.backend.DatabasePath(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStorageInit, err)
		}
		path = p
	}

	ex := s.newExecutor(s.logger)
	if err := ex.Connect(ctx, path); err != nil {
		return nil, err
	}
	s.exec = ex
	s.logger.DebugContext(ctx, "session connected", logger.SessionType(s.typ))
	return ex, nil
}

// Execute runs sql exclusively on this session. Concurrent calls on the same
// session are serialized. Failures, including panics inside the executor,
// are reported in the Result and leave the session usable.
//
// For persistent sessions a successful write is followed by a storage sync.
func (s *Session) Execute(ctx context.Context, sql string) executor.Result {
	if err := s.lock(ctx); err != nil {
		return s.failure(err)
	}
	defer s.unlock()
	return s.executeLocked(ctx, sql)
}

func (s *Session) executeLocked(ctx context.Context, sql string) (res executor.Result) {
	if s.closed || s.closePending.Load() {
		return s.failure(ErrSessionClosed)
	}
	s.touch()

	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "executor panicked", slog.Any("panic", r), logger.SQL(sql))
			res = s.failure(fmt.Errorf("%w: %v", executor.ErrPanic, r))
		}
	}()

	ex, err := s.executorLocked(ctx)
	if err != nil {
		return s.failure(err)
	}

	res = ex.Execute(ctx, sql)
	res.SessionID = s.id
	if !res.Success {
		s.logger.DebugContext(ctx, "statement failed", logger.SQL(sql), logger.Error(res.Err))
		return res
	}

	if s.typ == TypePersistent && executor.IsWrite(sql) {
		if err := s.backend.Sync(ctx); err != nil {
			s.logger.WarnContext(ctx, "storage sync failed after write",
				logger.StorageType(s.storageType), logger.Error(err))
			res.Success = false
			res.Err = fmt.Errorf("%w: %w", ErrSyncFailed, err)
			res.Error = res.Err.Error()
		}
	}
	return res
}

func (s *Session) failure(err error) executor.Result {
	res := executor.Failure(err)
	res.SessionID = s.id
	return res
}

// Lease is exclusive use of a session for several statements in a row.
type Lease struct {
	s        *Session
	released atomic.Bool
	once     sync.Once
}

// Acquire blocks until the session lock is free or ctx is done. The caller
// must call Release.
func (s *Session) Acquire(ctx context.Context) (*Lease, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	if s.closed || s.closePending.Load() {
		s.unlock()
		return nil, ErrSessionClosed
	}
	s.touch()
	return &Lease{s: s}, nil
}

// Execute runs sql under the held lease.
func (l *Lease) Execute(ctx context.Context, sql string) executor.Result {
	if l.released.Load() {
		return l.s.failure(ErrSessionClosed)
	}
	return l.s.executeLocked(ctx, sql)
}

// Release returns the session lock. Safe to call more than once.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.released.Store(true)
		l.s.unlock()
	})
}

// Close waits for the session lock and releases every resource: a final
// storage sync for persistent sessions, executor disconnect, backend
// cleanup. Teardown failures are logged, never returned. If ctx ends before
// the lock is free, teardown is left to the current holder. Safe to call
// more than once.
func (s *Session) Close(ctx context.Context) {
	s.active.Store(false)
	if err := s.lock(ctx); err != nil {
		s.forceClose(ctx)
		return
	}
	s.closeLocked(ctx)
	s.unlock()
}

// forceClose marks the session closed without waiting for its lock. If the
// lock is free teardown runs now, otherwise on the holder's release.
func (s *Session) forceClose(ctx context.Context) {
	s.active.Store(false)
	s.closePending.Store(true)
	s.finishPendingClose(ctx)
}

func (s *Session) closeLocked(ctx context.Context) {
	if s.closed {
		return
	}
	s.closed = true
	s.active.Store(false)

	if s.typ == TypePersistent && s.backend != nil && s.exec != nil {
		if err := safely(func() error { return s.backend.Sync(ctx) }); err != nil {
			s.logger.WarnContext(ctx, "final storage sync failed", logger.Error(err))
		}
	}
	if s.exec != nil {
		if err := safely(s.exec.Disconnect); err != nil {
			s.logger.DebugContext(ctx, "executor disconnect failed", logger.Error(err))
		}
		s.exec = nil
	}
	if s.backend != nil {
		if err := safely(func() error { return s.backend.Cleanup(ctx) }); err != nil {
			s.logger.WarnContext(ctx, "storage cleanup failed", logger.Error(err))
		}
	}
	s.logger.DebugContext(ctx, "session closed")
}

func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// Info is a point-in-time snapshot of a session.
type Info struct {
	ID           string         `json:"session_id"`
	Type         Type           `json:"type"`
	CreatedAt    time.Time      `json:"created_at"`
	LastAccessed time.Time      `json:"last_accessed"`
	TTLSeconds   *int64         `json:"ttl_seconds"`
	IsActive     bool           `json:"is_active"`
	IsExpired    bool           `json:"is_expired"`
	StorageType  string         `json:"storage_type,omitempty"`
	Storage      *storage.Info  `json:"storage_info,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Info returns a snapshot of the session. It does not take the session lock.
func (s *Session) Info() Info {
	info := Info{
		ID:           s.id,
		Type:         s.typ,
		CreatedAt:    s.createdAt,
		LastAccessed: s.LastAccessed(),
		IsActive:     s.IsActive(),
		IsExpired:    s.IsExpired(),
		StorageType:  s.storageType,
		Metadata:     s.Metadata(),
	}
	if s.ttl > 0 {
		secs := int64(s.ttl / time.Second)
		info.TTLSeconds = &secs
	}
	if s.backend != nil {
		st := s.backend.Info()
		info.Storage = &st
	}
	return info
}
