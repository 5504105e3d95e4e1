package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCommand(info BuildInfo, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			_, err := fmt.Fprintf(stdout, "sqlbridge %s (commit %s, built %s, %s)\n",
				orDefault(info.Version, "dev"), orDefault(info.Commit, "none"), orDefault(info.Date, "unknown"), runtime.Version())
			return err
		},
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
