package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/sqlbridge/pkg/config"
	"github.com/dmitrymomot/sqlbridge/pkg/logger"
	"github.com/dmitrymomot/sqlbridge/pkg/session"
)

// State is the composition root of a running process. It builds one
// session manager on first use and owns its lifetime.
type State struct {
	version    string
	now        func() time.Time
	startedAt  time.Time
	logger     *slog.Logger
	sessionCfg *session.Config
	managerOpt []session.Option

	mu      sync.Mutex
	manager *session.Manager
	closed  bool
}

// Option configures State.
type Option func(*State)

// WithVersion sets the version reported by the health endpoint.
func WithVersion(v string) Option {
	return func(s *State) {
		if v != "" {
			s.version = v
		}
	}
}

// WithLogger sets the logger for the state and the session manager.
// A nil logger is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(s *State) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSessionConfig uses cfg instead of reading SQLBRIDGE_* variables.
func WithSessionConfig(cfg session.Config) Option {
	return func(s *State) { s.sessionCfg = &cfg }
}

// WithManagerOptions appends options applied after the configuration.
func WithManagerOptions(opts ...session.Option) Option {
	return func(s *State) { s.managerOpt = append(s.managerOpt, opts...) }
}

// WithClock overrides the clock used for uptime.
func WithClock(now func() time.Time) Option {
	return func(s *State) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns an idle State. Nothing is allocated until Manager is called.
func New(opts ...Option) *State {
	s := &State{
		version: "dev",
		now:     time.Now,
		logger:  logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startedAt = s.now()
	return s
}

// Manager returns the session manager, constructing and starting it on the
// first call. A failed construction is retried on the next call.
func (s *State) Manager(ctx context.Context) (*session.Manager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if s.manager != nil {
		return s.manager, nil
	}

	var cfg session.Config
	if s.sessionCfg != nil {
		cfg = *s.sessionCfg
	} else if err := config.Load(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	opts := append([]session.Option{session.WithLogger(s.logger)}, s.managerOpt...)
	m, err := session.NewFromConfig(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	m.Start(context.WithoutCancel(ctx))
	s.manager = m
	return m, nil
}

// Ready reports ErrNotReady until the manager has been built and its sweep
// is running, and ErrClosed after Shutdown.
func (s *State) Ready(context.Context) error {
	s.mu.Lock()
	m, closed := s.manager, s.closed
	s.mu.Unlock()

	switch {
	case closed:
		return ErrClosed
	case m == nil || !m.Stats().Started:
		return ErrNotReady
	}
	return nil
}

// Version returns the configured build version.
func (s *State) Version() string { return s.version }

// Uptime is the time since New.
func (s *State) Uptime() time.Duration { return s.now().Sub(s.startedAt) }

// Shutdown closes every session. Later calls to Manager fail with
// ErrClosed. Safe to call more than once.
func (s *State) Shutdown(ctx context.Context) {
	s.mu.Lock()
	m := s.manager
	s.manager, s.closed = nil, true
	s.mu.Unlock()

	if m != nil {
		m.Shutdown(ctx)
	}
}
