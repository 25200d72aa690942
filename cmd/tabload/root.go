package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tabload/internal/application"
	"github.com/JonMunkholm/tabload/internal/config"
	"github.com/JonMunkholm/tabload/internal/core"
)

// rootOptions are the flags shared by every command.
type rootOptions struct {
	envFiles []string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "tabload",
		Short: "Load tabular files into PostgreSQL and serve them as a read-only API",
		Long: `tabload streams CSV, TSV, XLSX, JSON and NDJSON files into PostgreSQL
tables in fixed-size chunks, keeping a contiguous "index" column across
loads. Loaded tables can be indexed, dropped and served over HTTP.

Configuration comes from the environment (see DATABASE_URL, LOAD_*, API_*)
and from .env files.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "env files to load (default .env when present)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override LOG_LEVEL: debug, info, warn, error")

	cmd.AddCommand(
		newLoadCmd(opts),
		newIndexCmd(opts),
		newDropCmd(opts),
		newTablesCmd(opts),
		newServeCmd(opts),
	)
	return cmd
}

// loadConfig reads env files and the environment.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	if err := application.LoadEnv(o.envFiles...); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}

// withApp runs fn against a connected App. CLI logs go to stderr so stdout
// carries only command output.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, app *application.App) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	app, err := application.New(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := fn(ctx, app); err != nil {
		return fmt.Errorf("%s: %w", cmd.Name(), err)
	}
	return nil
}

// userHint returns the support message for err, or "" when err has no
// specific mapping. Cobra has already printed the technical error.
func userHint(err error) string {
	if !core.IsUserFacing(err) {
		return ""
	}
	return core.FormatUserError(err)
}
