package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/sqlbridge/pkg/config"
	"github.com/dmitrymomot/sqlbridge/pkg/server"
)

// BuildInfo is stamped into the binary at link time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// NewRootCommand returns the sqlbridge command tree.
func NewRootCommand(info BuildInfo, stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var envFiles []string

	rc := &cobra.Command{
		Use:   "sqlbridge",
		Short: "Session based SQL execution over embedded databases",
		Long: `sqlbridge runs SQL statements in isolated sessions, each backed by its own
embedded database. Sessions live in memory or persist to a local file or an
S3 object, and are bounded, expired and evicted by a session manager.

Settings are read from SQLBRIDGE_* environment variables and an optional
.env file. Command line flags take precedence.`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return config.LoadEnvFiles(envFiles...)
		},
	}
	rc.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "additional .env files to load")

	rc.AddCommand(newServeCommand(info, stdout, stderr))
	rc.AddCommand(newExecCommand(info, stdin, stdout, stderr))
	rc.AddCommand(newVersionCommand(info, stdout))

	rc.SetIn(stdin)
	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

func loadAppConfig() (server.AppConfig, error) {
	var cfg server.AppConfig
	err := config.Load(&cfg)
	return cfg, err
}
