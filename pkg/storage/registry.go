package storage

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

// Factory builds an uninitialized backend from its configuration.
type Factory func(ctx context.Context, cfg Config, log *slog.Logger) (Backend, error)

// Registry maps backend tags to factories.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	logger    *slog.Logger
	root      string
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger passed to every factory.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRoot confines local database files and temp base directories chosen by
// callers to dir. It only affects the factories DefaultRegistry installs.
func WithRoot(dir string) RegistryOption {
	return func(r *Registry) {
		r.root = dir
	}
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultRegistry returns a registry with the local, temp and s3 backends.
func DefaultRegistry(opts ...RegistryOption) *Registry {
	r := NewRegistry(opts...)
	var local []LocalOption
	if r.root != "" {
		local = append(local, WithLocalRoot(r.root))
	}
	r.Register(TypeLocal, NewLocalFileFactory(local...))
	r.Register(TypeTemp, NewTempFileFactory(r.root))
	r.Register(TypeS3, NewS3Factory())
	return r
}

// Register adds or replaces the factory for tag. Tags are case-insensitive.
func (r *Registry) Register(tag string, f Factory) {
	if tag == "" || f == nil {
		panic("storage: Register requires a tag and a factory")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(tag)] = f
}

// Has reports whether tag is registered.
func (r *Registry) Has(tag string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[strings.ToLower(tag)]
	return ok
}

// Types returns the registered tags in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.factories))
	for tag := range r.factories {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	return tags
}

// New builds the backend matching cfg.Type. The backend is not initialized.
func (r *Registry) New(ctx context.Context, cfg Config) (Backend, error) {
	tag := strings.ToLower(strings.TrimSpace(cfg.Type))
	r.mu.RLock()
	f, ok := r.factories[tag]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownBackend, cfg.Type, strings.Join(r.Types(), ", "))
	}
	cfg.Type = tag
	return f(ctx, cfg, r.logger.With(slog.String("storage_type", tag)))
}
