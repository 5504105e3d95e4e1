package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/sqlbridge/pkg/api"
	"github.com/dmitrymomot/sqlbridge/pkg/config"
	"github.com/dmitrymomot/sqlbridge/pkg/logger"
	"github.com/dmitrymomot/sqlbridge/pkg/server"
	"github.com/dmitrymomot/sqlbridge/pkg/session"
	"github.com/dmitrymomot/sqlbridge/pkg/storage"
)

// ErrStatementFailed is returned when at least one statement failed.
var ErrStatementFailed = errors.New("cli.statement_failed")

type execFlags struct {
	sessionID       string
	sessionType     string
	storageType     string
	storagePath     string
	storageOptions  map[string]string
	continueOnError bool
	verbose         bool
}

func newExecCommand(info BuildInfo, stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var f execFlags
	cmd := &cobra.Command{
		Use:   "exec [statement...]",
		Short: "Run statements in a single session",
		Long: `Runs each argument as one statement in a single session and prints one JSON
result per statement. Without arguments statements are read from stdin, one
per line. Blank lines and lines starting with "--" are skipped.

Persistent sessions keep their data between runs:

  sqlbridge exec --type persistent --storage-path ./data.db "CREATE TABLE t (x INTEGER)"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			stmts := args
			if len(stmts) == 0 {
				var err error
				if stmts, err = readStatements(stdin); err != nil {
					return err
				}
			}
			return runExec(cmd.Context(), info, f, stmts, stdout, stderr)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.sessionID, "session-id", "", "session identifier")
	flags.StringVar(&f.sessionType, "type", string(session.TypeMemory), "session type: memory or persistent")
	flags.StringVar(&f.storageType, "storage-type", storage.TypeLocal, "storage backend for persistent sessions: local, temp or s3")
	flags.StringVar(&f.storagePath, "storage-path", "", "database path, temp file name or s3 object key")
	flags.StringToStringVar(&f.storageOptions, "storage-option", nil, "backend option, e.g. bucket=my-bucket (repeatable)")
	flags.BoolVar(&f.continueOnError, "continue-on-error", false, "keep running after a failed statement")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "log to stderr")
	return cmd
}

func runExec(ctx context.Context, info BuildInfo, f execFlags, stmts []string, stdout, stderr io.Writer) error {
	if len(stmts) == 0 {
		return fmt.Errorf("%w: no statements", api.ErrInvalidRequest)
	}

	typ, err := session.ParseType(f.sessionType)
	if err != nil {
		return err
	}

	log := logger.Discard()
	if f.verbose {
		appCfg, err := loadAppConfig()
		if err != nil {
			return err
		}
		log = server.NewLogger(appCfg, stderr)
	}

	cfg := session.DefaultConfig()
	cfg.MaxSessions = 1
	state := server.New(server.WithVersion(info.Version), server.WithLogger(log), server.WithSessionConfig(cfg))
	defer state.Shutdown(context.WithoutCancel(ctx))

	m, err := state.Manager(ctx)
	if err != nil {
		return err
	}

	opts := []session.CreateOption{session.WithType(typ), session.WithoutExpiry()}
	if f.sessionID != "" {
		opts = append(opts, session.WithSessionID(f.sessionID))
	}
	if typ == session.TypePersistent {
		var creds storage.S3Credentials
		if err := config.Load(&creds); err != nil {
			return err
		}
		opts = append(opts, session.WithStorage(storage.Config{
			Type:        f.storageType,
			Path:        f.storagePath,
			Options:     f.storageOptions,
			Credentials: creds.Map(),
		}))
	}

	s, err := m.GetOrCreate(ctx, opts...)
	if err != nil {
		return err
	}
	lease, err := s.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()

	enc := json.NewEncoder(stdout)
	failed := 0
	for _, stmt := range stmts {
		res := lease.Execute(ctx, stmt)
		if res.Success {
			if err := enc.Encode(api.NewQueryResponse(res)); err != nil {
				return err
			}
			continue
		}

		failed++
		if err := enc.Encode(api.ErrorBody{Error: api.CodeSQLExecution, Detail: res.Error, SessionID: res.SessionID}); err != nil {
			return err
		}
		if !f.continueOnError {
			break
		}
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrStatementFailed, failed, len(stmts))
	}
	return nil
}

func readStatements(r io.Reader) ([]string, error) {
	var stmts []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		stmts = append(stmts, line)
	}
	return stmts, sc.Err()
}
