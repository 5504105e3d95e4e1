package session

import (
	"fmt"
	"time"
)

// Config holds manager tunables. All values are whole seconds except
// MaxSessions.
type Config struct {
	MaxSessions int `env:"SQLBRIDGE_MAX_SESSIONS" envDefault:"100"`

	// SessionTTL is the default idle lifetime applied when a caller does not
	// choose one.
	SessionTTL int `env:"SQLBRIDGE_SESSION_TTL" envDefault:"3600"`

	CleanupInterval int `env:"SQLBRIDGE_CLEANUP_INTERVAL" envDefault:"300"`

	// ShutdownWait bounds how long Shutdown waits for the background sweep.
	ShutdownWait int `env:"SQLBRIDGE_SHUTDOWN_WAIT" envDefault:"1"`

	// StorageRoot, when set, confines local database files and temp base
	// directories requested by callers.
	StorageRoot string `env:"SQLBRIDGE_STORAGE_ROOT"`
}

// DefaultConfig returns default manager configuration
func DefaultConfig() Config {
	return Config{
		MaxSessions:     100,
		SessionTTL:      3600,
		CleanupInterval: 300,
		ShutdownWait:    1,
	}
}

// Validate requires every value to be positive.
func (c Config) Validate() error {
	switch {
	case c.MaxSessions <= 0:
		return fmt.Errorf("%w: max sessions must be positive, got %d", ErrInvalidConfig, c.MaxSessions)
	case c.SessionTTL <= 0:
		return fmt.Errorf("%w: session ttl must be positive, got %d", ErrInvalidConfig, c.SessionTTL)
	case c.CleanupInterval <= 0:
		return fmt.Errorf("%w: cleanup interval must be positive, got %d", ErrInvalidConfig, c.CleanupInterval)
	case c.ShutdownWait <= 0:
		return fmt.Errorf("%w: shutdown wait must be positive, got %d", ErrInvalidConfig, c.ShutdownWait)
	}
	return nil
}

func (c Config) DefaultTTL() time.Duration { return seconds(c.SessionTTL) }

func (c Config) CleanupEvery() time.Duration { return seconds(c.CleanupInterval) }

func (c Config) ShutdownTimeout() time.Duration { return seconds(c.ShutdownWait) }

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// NewFromConfig validates cfg and creates a Manager from it. Options are
// applied after cfg and may override it.
func NewFromConfig(cfg Config, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return New(append([]Option{WithConfig(cfg)}, opts...)...), nil
}
