package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	TypeLocal = "local"
	TypeTemp  = "temp"
	TypeS3    = "s3"

	// DatabaseExt is appended to database paths that lack it.
	DatabaseExt = ".db"
)

// sidecarSuffixes are auxiliary files the engine may leave next to a database.
var sidecarSuffixes = []string{".wal", "-wal", "-shm", "-journal"}

// LocalFileBackend keeps the database in a fixed file on the local filesystem.
// The file is the durable store, so Sync and Cleanup are no-ops.
type LocalFileBackend struct {
	path   string
	logger *slog.Logger
}

// LocalOption configures NewLocalFileBackend.
type LocalOption func(*localOptions)

type localOptions struct {
	root string
}

// WithLocalRoot confines database files to dir. Relative paths resolve
// against dir and anything outside it is rejected with ErrOutsideRoot.
func WithLocalRoot(dir string) LocalOption {
	return func(o *localOptions) {
		o.root = dir
	}
}

// NewLocalFileFactory returns the Factory registered under "local".
func NewLocalFileFactory(opts ...LocalOption) Factory {
	return func(_ context.Context, cfg Config, log *slog.Logger) (Backend, error) {
		return NewLocalFileBackend(cfg.Path, log, opts...)
	}
}

// NewLocalFileBackend resolves path to an absolute location and appends
// DatabaseExt when missing.
func NewLocalFileBackend(path string, log *slog.Logger, opts ...LocalOption) (*LocalFileBackend, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: local backend requires a path", ErrMissingPath)
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	var o localOptions
	for _, opt := range opts {
		opt(&o)
	}

	resolved, err := resolveUnder(o.root, path)
	if err != nil {
		return nil, err
	}
	if filepath.Ext(resolved) != DatabaseExt {
		resolved += DatabaseExt
	}

	return &LocalFileBackend{path: resolved, logger: log}, nil
}

// Initialize creates the parent directory.
func (b *LocalFileBackend) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToCreateDirectory, err)
	}
	b.logger.DebugContext(ctx, "local storage ready", slog.String("path", b.path))
	return nil
}

// DatabasePath returns the resolved file path.
func (b *LocalFileBackend) DatabasePath(context.Context) (string, error) {
	return b.path, nil
}

// Sync is a no-op: the engine writes straight to the file.
func (b *LocalFileBackend) Sync(context.Context) error { return nil }

// Exists reports whether the database file exists.
func (b *LocalFileBackend) Exists(context.Context) (bool, error) {
	_, err := os.Stat(b.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("%w: %v", ErrFailedToStatPath, err)
}

// Delete removes the database file and any sidecar files next to it.
func (b *LocalFileBackend) Delete(ctx context.Context) error {
	if err := removeIfExists(b.path); err != nil {
		return err
	}
	for _, suffix := range sidecarSuffixes {
		if err := removeIfExists(b.path + suffix); err != nil {
			return err
		}
	}
	b.logger.InfoContext(ctx, "deleted database file", slog.String("path", b.path))
	return nil
}

// Cleanup is a no-op for local files.
func (b *LocalFileBackend) Cleanup(context.Context) error { return nil }

// Info returns a snapshot of the file state.
func (b *LocalFileBackend) Info() Info {
	info := Info{Type: TypeLocal, Path: b.path}
	statInto(&info, b.path)
	return info
}

func resolvePath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrFailedToResolvePath, err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFailedToResolvePath, err)
	}
	return abs, nil
}

// resolveUnder resolves path and, when root is set, requires the result to
// stay inside root. Relative paths are taken relative to root.
func resolveUnder(root, path string) (string, error) {
	if root == "" {
		return resolvePath(path)
	}
	absRoot, err := resolvePath(root)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(path) && path != "~" && !strings.HasPrefix(path, "~/") {
		path = filepath.Join(absRoot, path)
	}
	resolved, err := resolvePath(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(absRoot, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q is not under %q", ErrOutsideRoot, path, absRoot)
	}
	return resolved, nil
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrFailedToDeleteFile, err)
}
