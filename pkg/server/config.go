package server

import (
	"io"
	"log/slog"

	"github.com/dmitrymomot/sqlbridge/pkg/environment"
	"github.com/dmitrymomot/sqlbridge/pkg/logger"
	"github.com/dmitrymomot/sqlbridge/pkg/requestid"
)

// AppConfig holds process-wide settings shared by every command.
type AppConfig struct {
	Env         string `env:"SQLBRIDGE_ENV" envDefault:"development"`
	LogLevel    string `env:"SQLBRIDGE_LOG_LEVEL"`
	ServiceName string `env:"SQLBRIDGE_SERVICE_NAME" envDefault:"sqlbridge"`
}

// Environment parses Env.
func (c AppConfig) Environment() environment.Environment {
	return environment.Parse(c.Env)
}

// NewLogger builds the process logger: text at debug level in development,
// JSON at info level elsewhere. LogLevel overrides the level when set.
// Request IDs are attached to records logged with a request context.
func NewLogger(cfg AppConfig, out io.Writer) *slog.Logger {
	opts := []logger.Option{
		logger.WithEnvironment(cfg.Environment(), cfg.ServiceName),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	}
	if cfg.LogLevel != "" {
		opts = append(opts, logger.WithLevelName(cfg.LogLevel))
	}
	if out != nil {
		opts = append(opts, logger.WithOutput(out))
	}
	return logger.New(opts...)
}
