// Package config loads typed application configuration from environment
// variables.
//
// It wraps github.com/caarlos0/env/v11 for struct parsing and
// github.com/joho/godotenv for .env files. Each configuration type is parsed
// once and cached for the lifetime of the process.
//
// # Usage
//
// Describe the configuration with env tags and, optionally, a Validate
// method:
//
//	type Config struct {
//		MaxSessions int `env:"SQLBRIDGE_MAX_SESSIONS" envDefault:"100"`
//	}
//
//	func (c Config) Validate() error {
//		if c.MaxSessions <= 0 {
//			return errors.New("max sessions must be positive")
//		}
//		return nil
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil {
//		log.Fatal(err)
//	}
//
// Parse skips the cache, which is handy when the environment changes between
// calls, for example after command line flags have been applied.
//
// # Error Handling
//
// Parsing failures wrap ErrParsingConfig. Validation failures wrap
// ErrInvalidConfig. Both can be matched with errors.Is.
//
// # Testing
//
// Call ResetCache between tests that load the same type under different
// environments.
package config
