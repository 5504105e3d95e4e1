package cli

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/sqlbridge/pkg/api"
	"github.com/dmitrymomot/sqlbridge/pkg/config"
	"github.com/dmitrymomot/sqlbridge/pkg/httpserver"
	"github.com/dmitrymomot/sqlbridge/pkg/logger"
	"github.com/dmitrymomot/sqlbridge/pkg/server"
	"github.com/dmitrymomot/sqlbridge/pkg/session"
)

type serveFlags struct {
	addr            string
	maxSessions     int
	sessionTTL      int
	cleanupInterval int
	storageRoot     string
	requestTimeout  time.Duration
}

func newServeCommand(info BuildInfo, _, stderr io.Writer) *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Runs the HTTP API until interrupted. On shutdown in-flight requests are
drained and every session is closed, syncing persistent sessions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, info, f, stderr)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.addr, "addr", "", "listen address (default from SQLBRIDGE_HTTP_ADDR)")
	flags.IntVar(&f.maxSessions, "max-sessions", 0, "maximum number of live sessions")
	flags.IntVar(&f.sessionTTL, "session-ttl", 0, "default session idle lifetime in seconds")
	flags.IntVar(&f.cleanupInterval, "cleanup-interval", 0, "seconds between expiry sweeps")
	flags.StringVar(&f.storageRoot, "storage-root", "", "confine local database paths to this directory")
	flags.DurationVar(&f.requestTimeout, "request-timeout", 0, "cancel requests running longer than this")
	return cmd
}

func runServe(cmd *cobra.Command, info BuildInfo, f serveFlags, stderr io.Writer) error {
	ctx := cmd.Context()

	appCfg, err := loadAppConfig()
	if err != nil {
		return err
	}
	var httpCfg httpserver.Config
	if err := config.Load(&httpCfg); err != nil {
		return err
	}
	sessCfg, err := sessionConfig(cmd, f)
	if err != nil {
		return err
	}
	if f.addr != "" {
		httpCfg.Addr = f.addr
	}

	log := server.NewLogger(appCfg, stderr)
	logger.SetAsDefault(log)

	state := server.New(
		server.WithVersion(info.Version),
		server.WithLogger(log),
		server.WithSessionConfig(sessCfg),
	)
	if _, err := state.Manager(ctx); err != nil {
		return err
	}

	srv := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log))
	routes := api.New(state, api.WithLogger(log), api.WithRequestTimeout(f.requestTimeout)).Routes()

	runErr := srv.Run(ctx, routes)

	// Sessions close only after in-flight requests have drained.
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sessCfg.ShutdownTimeout()+5*time.Second)
	defer cancel()
	state.Shutdown(shutdownCtx)
	return runErr
}

// sessionConfig loads session.Config from the environment and applies the
// flags the user set explicitly.
func sessionConfig(cmd *cobra.Command, f serveFlags) (session.Config, error) {
	var cfg session.Config
	if err := config.Load(&cfg); err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("max-sessions") {
		cfg.MaxSessions = f.maxSessions
	}
	if flags.Changed("session-ttl") {
		cfg.SessionTTL = f.sessionTTL
	}
	if flags.Changed("cleanup-interval") {
		cfg.CleanupInterval = f.cleanupInterval
	}
	if flags.Changed("storage-root") {
		cfg.StorageRoot = f.storageRoot
	}
	return cfg, cfg.Validate()
}
