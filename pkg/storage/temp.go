package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

const tempDirPrefix = "sqlbridge_session_"

// TempFileBackend keeps the database in a private temporary directory that
// is removed on Cleanup. Every instance gets its own directory.
type TempFileBackend struct {
	name    string
	baseDir string
	logger  *slog.Logger

	mu     sync.Mutex
	dir    string
	dbPath string
}

// TempOption configures a TempFileBackend.
type TempOption func(*TempFileBackend)

// WithTempBaseDir places temp directories under dir instead of os.TempDir().
func WithTempBaseDir(dir string) TempOption {
	return func(b *TempFileBackend) {
		b.baseDir = dir
	}
}

// NewTempFileFactory returns the Factory registered under "temp".
// Options "base_dir" overrides the parent of the temp directory. A non-empty
// root requires base_dir to lie inside it.
func NewTempFileFactory(root string) Factory {
	return func(_ context.Context, cfg Config, log *slog.Logger) (Backend, error) {
		baseDir := cfg.Option("base_dir", "")
		if baseDir != "" && root != "" {
			resolved, err := resolveUnder(root, baseDir)
			if err != nil {
				return nil, err
			}
			baseDir = resolved
		}
		return NewTempFileBackend(cfg.Path, log, WithTempBaseDir(baseDir)), nil
	}
}

// NewTempFileBackend returns a backend whose database file is called name
// (default "session") inside a fresh temp directory.
func NewTempFileBackend(name string, log *slog.Logger, opts ...TempOption) *TempFileBackend {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "session"
	}
	if filepath.Ext(name) != DatabaseExt {
		name += DatabaseExt
	}
	b := &TempFileBackend{name: name, logger: log}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Initialize allocates the temp directory on first call.
func (b *TempFileBackend) Initialize(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initLocked(ctx)
}

func (b *TempFileBackend) initLocked(ctx context.Context) error {
	if b.dir != "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := os.MkdirTemp(b.baseDir, tempDirPrefix)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToCreateDirectory, err)
	}
	b.dir = dir
	b.dbPath = filepath.Join(dir, b.name)
	b.logger.DebugContext(ctx, "created temp database directory", slog.String("path", b.dbPath))
	return nil
}

// DatabasePath initializes lazily and returns the file path.
func (b *TempFileBackend) DatabasePath(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.initLocked(ctx); err != nil {
		return "", err
	}
	return b.dbPath, nil
}

// Sync is a no-op for temp storage.
func (b *TempFileBackend) Sync(context.Context) error { return nil }

// Exists reports whether the temp database file exists.
func (b *TempFileBackend) Exists(context.Context) (bool, error) {
	b.mu.Lock()
	path := b.dbPath
	b.mu.Unlock()
	if path == "" {
		return false, nil
	}
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("%w: %v", ErrFailedToStatPath, err)
}

// Delete removes the whole temp directory.
func (b *TempFileBackend) Delete(ctx context.Context) error {
	return b.Cleanup(ctx)
}

// Cleanup recursively removes the temp directory. The backend can be
// initialized again afterwards.
func (b *TempFileBackend) Cleanup(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dir == "" {
		return nil
	}
	dir := b.dir
	b.dir, b.dbPath = "", ""
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToDeleteDirectory, err)
	}
	b.logger.DebugContext(ctx, "removed temp database directory", slog.String("dir", dir))
	return nil
}

// Info returns a snapshot of the temp directory state.
func (b *TempFileBackend) Info() Info {
	b.mu.Lock()
	info := Info{Type: TypeTemp, TempDir: b.dir, Path: b.dbPath}
	b.mu.Unlock()
	statInto(&info, info.Path)
	return info
}
