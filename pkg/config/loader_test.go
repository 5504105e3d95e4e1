package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sqlbridge/pkg/config"
)

type defaultsConfig struct {
	Name    string `env:"CFGTEST_DEFAULT_NAME" envDefault:"sqlbridge"`
	Limit   int    `env:"CFGTEST_DEFAULT_LIMIT" envDefault:"100"`
	Enabled bool   `env:"CFGTEST_DEFAULT_ENABLED" envDefault:"true"`
}

type overrideConfig struct {
	Limit int `env:"CFGTEST_OVERRIDE_LIMIT" envDefault:"100"`
}

type cachedConfig struct {
	Value string `env:"CFGTEST_CACHED_VALUE" envDefault:"first"`
}

type requiredConfig struct {
	Value string `env:"CFGTEST_REQUIRED_VALUE,required"`
}

type validatedConfig struct {
	Limit int `env:"CFGTEST_VALIDATED_LIMIT" envDefault:"10"`
}

var errLimit = errors.New("limit must be positive")

func (c validatedConfig) Validate() error {
	if c.Limit <= 0 {
		return errLimit
	}
	return nil
}

type fileConfig struct {
	Value string `env:"CFGTEST_FILE_VALUE"`
}

func TestLoad_Defaults(t *testing.T) {
	config.ResetCache()

	var cfg defaultsConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "sqlbridge", cfg.Name)
	assert.Equal(t, 100, cfg.Limit)
	assert.True(t, cfg.Enabled)
}

func TestLoad_EnvironmentOverridesDefaults(t *testing.T) {
	config.ResetCache()
	t.Setenv("CFGTEST_OVERRIDE_LIMIT", "7")

	var cfg overrideConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, 7, cfg.Limit)
}

func TestLoad_CachesPerType(t *testing.T) {
	config.ResetCache()

	var first cachedConfig
	require.NoError(t, config.Load(&first))
	assert.Equal(t, "first", first.Value)

	t.Setenv("CFGTEST_CACHED_VALUE", "second")

	var second cachedConfig
	require.NoError(t, config.Load(&second))
	assert.Equal(t, "first", second.Value, "cached value is returned")

	config.ResetCache()

	var third cachedConfig
	require.NoError(t, config.Load(&third))
	assert.Equal(t, "second", third.Value)
}

func TestLoad_MissingRequired(t *testing.T) {
	config.ResetCache()

	var cfg requiredConfig
	err := config.Load(&cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrParsingConfig)

	t.Setenv("CFGTEST_REQUIRED_VALUE", "present")
	require.NoError(t, config.Load(&cfg), "failed loads are retried")
	assert.Equal(t, "present", cfg.Value)
}

func TestLoad_Validation(t *testing.T) {
	config.ResetCache()
	t.Setenv("CFGTEST_VALIDATED_LIMIT", "0")

	var cfg validatedConfig
	err := config.Load(&cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.ErrorIs(t, err, errLimit)
}

func TestLoad_NilPointer(t *testing.T) {
	var cfg *defaultsConfig
	assert.ErrorIs(t, config.Load(cfg), config.ErrNilPointer)
	assert.ErrorIs(t, config.Parse(cfg), config.ErrNilPointer)
}

func TestParse_BypassesCache(t *testing.T) {
	config.ResetCache()

	var cfg overrideConfig
	require.NoError(t, config.Load(&cfg))

	t.Setenv("CFGTEST_OVERRIDE_LIMIT", "3")
	require.NoError(t, config.Parse(&cfg))
	assert.Equal(t, 3, cfg.Limit)
}

func TestMustLoad(t *testing.T) {
	config.ResetCache()

	assert.NotPanics(t, func() {
		var cfg defaultsConfig
		config.MustLoad(&cfg)
	})
	assert.Panics(t, func() {
		var cfg requiredConfig
		config.MustLoad(&cfg)
	})
}

func TestLoadEnvFiles(t *testing.T) {
	config.ResetCache()

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("CFGTEST_FILE_VALUE=from_file\n"), 0o600))
	t.Setenv("CFGTEST_FILE_VALUE", "")
	require.NoError(t, os.Unsetenv("CFGTEST_FILE_VALUE"))

	require.NoError(t, config.LoadEnvFiles(path))

	var cfg fileConfig
	require.NoError(t, config.Parse(&cfg))
	assert.Equal(t, "from_file", cfg.Value)

	assert.NoError(t, config.LoadEnvFiles())
	assert.ErrorIs(t, config.LoadEnvFiles(filepath.Join(t.TempDir(), "missing.env")), config.ErrLoadingEnvFile)
}
