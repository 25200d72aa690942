package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tabload/internal/application"
	"github.com/JonMunkholm/tabload/internal/core"
)

type loadFlags struct {
	table           string
	inferSize       int
	chunkSize       int
	index           bool
	caseInsensitive bool
	json            bool
}

// options maps flags onto core.LoadOptions. Zero sizes fall back to the
// configured defaults inside the service.
func (f *loadFlags) options() core.LoadOptions {
	return core.LoadOptions{
		Table:           f.table,
		InferSize:       f.inferSize,
		ChunkSize:       f.chunkSize,
		Index:           f.index,
		CaseInsensitive: f.caseInsensitive,
	}
}

func newLoadCmd(root *rootOptions) *cobra.Command {
	flags := &loadFlags{}

	cmd := &cobra.Command{
		Use:   "load FILE",
		Short: "Load a file into a table, creating it when missing",
		Long: `Load streams FILE into a table in chunks. The table is named after the
file unless --table is given. Existing tables are appended to, continuing
their index column.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withApp(cmd, func(ctx context.Context, app *application.App) error {
				result, err := app.Service.LoadTable(ctx, args[0], flags.options())
				if err != nil {
					return err
				}
				return printLoadResult(cmd.OutOrStdout(), result, flags.json)
			})
		},
	}

	cmd.Flags().StringVarP(&flags.table, "table", "t", "", "target table (default: file name without extension)")
	cmd.Flags().IntVar(&flags.inferSize, "infer-size", 0, "rows sampled for type inference (default LOAD_INFER_SIZE)")
	cmd.Flags().IntVar(&flags.chunkSize, "chunk-size", 0, "rows per COPY chunk (default LOAD_CHUNK_SIZE)")
	cmd.Flags().BoolVar(&flags.index, "index", false, "index every column after loading")
	cmd.Flags().BoolVar(&flags.caseInsensitive, "case-insensitive", false, "with --index, add upper() indexes on text columns")
	cmd.Flags().BoolVar(&flags.json, "json", false, "print the result as JSON")
	return cmd
}

func printLoadResult(w io.Writer, result *core.LoadResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	verb := "appended"
	if result.Created {
		verb = "created"
	}
	_, err := fmt.Fprintf(w, "%s %s: %d rows in %d chunks (index %d-%d) in %s\n",
		verb, result.Table, result.Rows, result.Chunks, result.FirstIndex, result.LastIndex, result.Duration.Round(time.Millisecond))
	if err != nil || len(result.Indexes) == 0 {
		return err
	}
	_, err = fmt.Fprintf(w, "indexes: %s\n", strings.Join(result.Indexes, ", "))
	return err
}

func newIndexCmd(root *rootOptions) *cobra.Command {
	var caseInsensitive bool

	cmd := &cobra.Command{
		Use:   "index TABLE",
		Short: "Create an ascending index on every column of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withApp(cmd, func(ctx context.Context, app *application.App) error {
				indexes, err := app.Service.IndexTable(ctx, args[0], caseInsensitive)
				if err != nil {
					return err
				}
				for _, name := range indexes {
					if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&caseInsensitive, "case-insensitive", false, "add upper() indexes on text columns")
	return cmd
}

func newDropCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "drop TABLE",
		Short: "Drop a table; succeeds when it does not exist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withApp(cmd, func(ctx context.Context, app *application.App) error {
				if err := app.Service.DropTable(ctx, args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "dropped %s\n", args[0])
				return err
			})
		},
	}
}

func newTablesCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List tables in the current schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withApp(cmd, func(ctx context.Context, app *application.App) error {
				names, err := app.Service.GetTables(ctx)
				if err != nil {
					return err
				}
				for _, name := range names {
					if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the loaded tables as a read-only REST API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withApp(cmd, func(ctx context.Context, app *application.App) error {
				return app.Serve(ctx)
			})
		},
	}
}
