package session

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/sqlbridge/pkg/executor"
	"github.com/dmitrymomot/sqlbridge/pkg/logger"
	"github.com/dmitrymomot/sqlbridge/pkg/storage"
)

// EvictionPolicy names the strategy used when the manager is full.
const EvictionPolicy = "LRU"

// Manager owns a bounded set of sessions.
//
// The map lock guards only the id to session mapping and is never held
// while a statement runs. Sessions removed from the map are torn down after
// the map lock is released.
type Manager struct {
	maxSessions     int
	defaultTTL      time.Duration
	cleanupInterval time.Duration
	shutdownWait    time.Duration

	registry    *storage.Registry
	storageRoot string
	newExecutor executor.Factory
	newID       func() string
	now         func() time.Time
	logger      *slog.Logger

	mu        sync.Mutex
	sessions  map[string]*Session
	started   bool
	stopSweep context.CancelFunc
	sweepDone chan struct{}
}

// New creates a manager. Unset options fall back to DefaultConfig, the
// default storage registry and the SQLite executor.
func New(opts ...Option) *Manager {
	def := DefaultConfig()
	m := &Manager{
		maxSessions:     def.MaxSessions,
		defaultTTL:      def.DefaultTTL(),
		cleanupInterval: def.CleanupEvery(),
		shutdownWait:    def.ShutdownTimeout(),
		newExecutor:     executor.NewSQLiteFactory(),
		newID:           uuid.NewString,
		now:             time.Now,
		logger:          slog.Default(),
		sessions:        make(map[string]*Session),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.logger = m.logger.With(logger.Component("session_manager"))
	if m.registry == nil {
		m.registry = storage.DefaultRegistry(
			storage.WithRegistryLogger(m.logger),
			storage.WithRoot(m.storageRoot))
	}

	return m
}

// GetOrCreate returns the live session named by WithSessionID or creates a
// new one.
//
// When the manager is full, expired sessions are dropped first and then the
// least recently used idle session is evicted. Busy sessions are never
// evicted; if nothing can be freed ErrCapacityExhausted is returned.
// Storage is built and initialized before anything is evicted, without
// holding the map lock.
func (m *Manager) GetOrCreate(ctx context.Context, opts ...CreateOption) (*Session, error) {
	p := createParams{typ: TypeMemory}
	for _, opt := range opts {
		opt(&p)
	}

	if s := m.lookup(ctx, p.id); s != nil {
		return s, nil
	}

	backend, storageType, err := m.prepareStorage(ctx, p)
	if err != nil {
		return nil, err
	}

	s, created, doomed, victim, err := m.insert(ctx, p, backend, storageType)

	m.retire(ctx, doomed)
	if victim != nil {
		m.logger.InfoContext(ctx, "evicted least recently used session", logger.SessionID(victim.id))
		victim.closeLocked(ctx)
		victim.unlock()
	}
	if backend != nil && !created {
		_ = backend.Cleanup(ctx)
	}
	return s, err
}

// lookup returns the active session with id, touching it. An inactive
// session under id is removed and torn down.
func (m *Manager) lookup(ctx context.Context, id string) *Session {
	if id == "" {
		return nil
	}
	m.mu.Lock()
	existing, ok := m.sessions[id]
	if ok && existing.IsActive() {
		existing.touch()
		m.mu.Unlock()
		return existing
	}
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if ok {
		m.retire(ctx, []*Session{existing})
	}
	return nil
}

// prepareStorage validates the session type and builds and initializes the
// backend of a persistent session.
func (m *Manager) prepareStorage(ctx context.Context, p createParams) (storage.Backend, string, error) {
	switch p.typ {
	case TypeMemory:
		return nil, "", nil
	case TypePersistent:
	default:
		return nil, "", fmt.Errorf("%w: unknown session type %q", ErrInvalidConfig, p.typ)
	}

	if p.storage == nil {
		return nil, "", fmt.Errorf("%w: persistent session requires storage config", ErrInvalidConfig)
	}
	backend, err := m.registry.New(ctx, *p.storage)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := backend.Initialize(ctx); err != nil {
		_ = backend.Cleanup(ctx)
		return nil, "", fmt.Errorf("%w: %w", ErrStorageInit, err)
	}
	return backend, backend.Info().Type, nil
}

// insert adds a new session, making room when the manager is full. If
// another caller created a session under the same id in the meantime, that
// session is returned and created is false.
func (m *Manager) insert(ctx context.Context, p createParams, backend storage.Backend, storageType string) (s *Session, created bool, doomed []*Session, victim *Session, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.id != "" {
		if existing, ok := m.sessions[p.id]; ok {
			if existing.IsActive() {
				existing.touch()
				return existing, false, nil, nil, nil
			}
			delete(m.sessions, p.id)
			doomed = append(doomed, existing)
		}
	}

	if len(m.sessions) >= m.maxSessions {
		doomed = append(doomed, m.removeInactiveLocked()...)
		if len(m.sessions) >= m.maxSessions {
			victim = m.evictLRULocked()
			if victim == nil {
				return nil, false, doomed, nil, fmt.Errorf("%w: %d sessions in use", ErrCapacityExhausted, len(m.sessions))
			}
		}
	}

	if p.id == "" {
		p.id = m.newID()
	}

	ttl := m.defaultTTL
	if p.ttlSet {
		ttl = p.ttl
	}

	s = newSession(sessionParams{
		id:          p.id,
		typ:         p.typ,
		ttl:         ttl,
		storageType: storageType,
		metadata:    p.metadata,
		backend:     backend,
		newExecutor: m.newExecutor,
		now:         m.now,
		logger:      m.logger,
	})
	m.sessions[s.id] = s

	m.logger.InfoContext(ctx, "session created",
		logger.SessionID(s.id),
		logger.SessionType(s.typ),
		logger.StorageType(storageType),
		logger.Count(len(m.sessions)))
	return s, true, doomed, victim, nil
}

// removeInactiveLocked drops every inactive session from the map and
// returns them for teardown.
func (m *Manager) removeInactiveLocked() []*Session {
	var removed []*Session
	for id, s := range m.sessions {
		if !s.IsActive() {
			delete(m.sessions, id)
			removed = append(removed, s)
		}
	}
	return removed
}

// evictLRULocked removes the least recently used session whose lock is free
// and returns it with its lock held. Returns nil when every session is busy.
func (m *Manager) evictLRULocked() *Session {
	candidates := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if !s.Busy() {
			candidates = append(candidates, s)
		}
	}
	slices.SortFunc(candidates, func(a, b *Session) int {
		return a.LastAccessed().Compare(b.LastAccessed())
	})

	for _, s := range candidates {
		if !s.tryLock() {
			continue
		}
		s.active.Store(false)
		delete(m.sessions, s.id)
		return s
	}
	return nil
}

// retire tears down sessions already removed from the map without waiting
// on busy ones.
func (m *Manager) retire(ctx context.Context, sessions []*Session) {
	for _, s := range sessions {
		s.forceClose(ctx)
	}
}

// Get returns the live session with id. Expired sessions are removed and
// reported as ErrSessionNotFound.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok && !s.IsActive() {
		delete(m.sessions, id)
		m.mu.Unlock()
		m.retire(ctx, []*Session{s})
		return nil, ErrSessionNotFound
	}
	m.mu.Unlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Terminate removes and closes the session, waiting for an in-flight
// statement to finish. Reports whether the session existed.
func (m *Manager) Terminate(ctx context.Context, id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	s.Close(ctx)
	m.logger.InfoContext(ctx, "session terminated", logger.SessionID(id))
	return true
}

// List returns info for every active session. Inactive sessions found along
// the way are removed.
func (m *Manager) List(ctx context.Context) map[string]Info {
	m.mu.Lock()
	doomed := m.removeInactiveLocked()
	live := m.snapshotLocked()
	m.mu.Unlock()

	m.retire(ctx, doomed)
	out := make(map[string]Info, len(live))
	for _, s := range live {
		out[s.id] = s.Info()
	}
	return out
}

// CleanupExpired removes every inactive session and returns how many were
// removed.
func (m *Manager) CleanupExpired(ctx context.Context) int {
	m.mu.Lock()
	doomed := m.removeInactiveLocked()
	m.mu.Unlock()

	m.retire(ctx, doomed)
	if len(doomed) > 0 {
		m.logger.InfoContext(ctx, "removed expired sessions", logger.Count(len(doomed)))
	}
	return len(doomed)
}

// snapshotLocked copies the session pointers so backend state can be read
// after the map lock is released.
func (m *Manager) snapshotLocked() []*Session {
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Len returns the number of sessions in the map.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Start launches the background sweep. Calling it again while running is a
// no-op. The sweep stops on Shutdown or when ctx is canceled.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.stopSweep, m.sweepDone, m.started = cancel, done, true

	go m.sweepLoop(sweepCtx, done)
	m.logger.InfoContext(ctx, "session manager started",
		slog.Int("max_sessions", m.maxSessions),
		slog.Duration("default_ttl", m.defaultTTL),
		slog.Duration("cleanup_interval", m.cleanupInterval))
}

func (m *Manager) sweepLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepOnce(ctx)
		}
	}
}

// sweepOnce runs one cleanup pass. A panic is logged and does not stop the
// loop.
func (m *Manager) sweepOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.ErrorContext(ctx, "session sweep failed", slog.Any("panic", r))
		}
	}()
	m.CleanupExpired(ctx)
}

// Shutdown stops the sweep, waiting at most the configured shutdown wait,
// then removes and closes every session. Busy sessions are not waited for:
// they are marked closed and torn down when their current statement
// finishes. Safe to call more than once.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	stop, done := m.stopSweep, m.sweepDone
	m.stopSweep, m.sweepDone, m.started = nil, nil, false
	m.mu.Unlock()

	if stop != nil {
		stop()
		timer := time.NewTimer(m.shutdownWait)
		select {
		case <-done:
		case <-timer.C:
			m.logger.WarnContext(ctx, "session sweep did not stop in time", slog.Duration("wait", m.shutdownWait))
		case <-ctx.Done():
		}
		timer.Stop()
	}

	m.mu.Lock()
	all := m.snapshotLocked()
	clear(m.sessions)
	m.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(8)
	for _, s := range all {
		g.Go(func() error {
			s.forceClose(context.WithoutCancel(ctx))
			return nil
		})
	}
	_ = g.Wait()

	if stop != nil || len(all) > 0 {
		m.logger.InfoContext(ctx, "session manager stopped", logger.Count(len(all)))
	}
}

// Stats summarizes manager state.
type Stats struct {
	ActiveSessions    int     `json:"active_sessions"`
	MaxSessions       int     `json:"max_sessions"`
	UsagePercentage   float64 `json:"usage_percentage"`
	DefaultTTL        int64   `json:"default_ttl"`
	CleanupInterval   int64   `json:"cleanup_interval"`
	BackgroundRunning bool    `json:"background_cleanup_running"`
	Started           bool    `json:"started"`
	EvictionPolicy    string  `json:"eviction_policy"`
}

// Stats returns current counters. DefaultTTL and CleanupInterval are in
// seconds.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	running := false
	if m.sweepDone != nil {
		select {
		case <-m.sweepDone:
		default:
			running = true
		}
	}

	n := len(m.sessions)
	return Stats{
		ActiveSessions:    n,
		MaxSessions:       m.maxSessions,
		UsagePercentage:   math.Round(float64(n)/float64(m.maxSessions)*10000) / 100,
		DefaultTTL:        int64(m.defaultTTL / time.Second),
		CleanupInterval:   int64(m.cleanupInterval / time.Second),
		BackgroundRunning: running,
		Started:           m.started,
		EvictionPolicy:    EvictionPolicy,
	}
}

// Detail is session info plus whether the session is executing right now.
type Detail struct {
	Info
	Locked bool `json:"locked"`
}

// Details returns every session, most recently used first.
func (m *Manager) Details() []Detail {
	m.mu.Lock()
	live := m.snapshotLocked()
	m.mu.Unlock()

	out := make([]Detail, 0, len(live))
	for _, s := range live {
		out = append(out, Detail{Info: s.Info(), Locked: s.Busy()})
	}

	slices.SortFunc(out, func(a, b Detail) int {
		return b.LastAccessed.Compare(a.LastAccessed)
	})
	return out
}

// MaxSessions returns the configured capacity.
func (m *Manager) MaxSessions() int { return m.maxSessions }
