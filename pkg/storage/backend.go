package storage

import (
	"context"
	"os"
	"time"
)

// Backend supplies a local database file for a persistent session and keeps
// it in step with wherever the durable copy lives.
type Backend interface {
	// Initialize prepares the backend. Calling it more than once is a no-op.
	Initialize(ctx context.Context) error

	// DatabasePath returns a local path the executor can open directly.
	// Remote backends materialize a local copy on first call.
	DatabasePath(ctx context.Context) (string, error)

	// Sync pushes local changes to the durable store.
	Sync(ctx context.Context) error

	// Exists reports whether the durable artifact exists.
	Exists(ctx context.Context) (bool, error)

	// Delete removes the durable artifact.
	Delete(ctx context.Context) error

	// Cleanup releases local resources such as temp directories.
	// It never touches the durable artifact.
	Cleanup(ctx context.Context) error

	// Info returns a read-only diagnostic snapshot.
	Info() Info
}

// Config selects and configures a backend.
type Config struct {
	// Type is the registry tag: "local", "temp", "s3".
	Type string `json:"type"`
	// Path meaning depends on Type: a file path for local, a file name for
	// temp, an object key for s3.
	Path        string            `json:"path"`
	Credentials map[string]string `json:"credentials,omitempty"`
	Options     map[string]string `json:"options,omitempty"`
}

// Option returns the named option or def when absent.
func (c Config) Option(name, def string) string {
	if v, ok := c.Options[name]; ok && v != "" {
		return v
	}
	return def
}

// Credential returns the named credential or an empty string.
func (c Config) Credential(name string) string {
	return c.Credentials[name]
}

// Info is a diagnostic snapshot of a backend.
type Info struct {
	Type      string     `json:"type"`
	Path      string     `json:"path,omitempty"`
	TempDir   string     `json:"temp_dir,omitempty"`
	Bucket    string     `json:"bucket,omitempty"`
	Key       string     `json:"key,omitempty"`
	Exists    bool       `json:"exists"`
	SizeBytes int64      `json:"size_bytes,omitempty"`
	SizeMB    float64    `json:"size_mb,omitempty"`
	Modified  *time.Time `json:"modified,omitempty"`
}

// statInto fills size and modification fields from the file at path.
func statInto(info *Info, path string) {
	if path == "" {
		return
	}
	st, err := os.Stat(path)
	if err != nil {
		return
	}
	info.Exists = true
	info.SizeBytes = st.Size()
	info.SizeMB = float64(st.Size()*100/(1024*1024)) / 100
	mod := st.ModTime()
	info.Modified = &mod
}
