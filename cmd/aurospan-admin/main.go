// Package main is the operator CLI for the Aurospan permit office. It runs
// migrations and reads the permit registry directly from the database.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/MacJediWizard/aurospan/internal/config"
	"github.com/MacJediWizard/aurospan/internal/db"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type globalOptions struct {
	dbPath  string
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "aurospan-admin",
		Short: "Operator tools for the Aurospan permit office",
		Long: `aurospan-admin manages the permit office database.

Run 'aurospan-admin migrate' before first start, then use
'aurospan-admin applications list' to review the registry.`,
		SilenceUsage: true,
	}

	defaultPath := os.Getenv("DATABASE_PATH")
	if defaultPath == "" {
		defaultPath = config.DefaultDatabasePath
	}
	rootCmd.PersistentFlags().StringVar(&opts.dbPath, "db", defaultPath, "path to the SQLite database (or set DATABASE_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log database activity")

	rootCmd.AddCommand(
		newVersionCmd(),
		newMigrateCmd(opts),
		newApplicationsCmd(opts),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Aurospan Admin %s\n", Version)
			fmt.Fprintf(out, "  Commit:     %s\n", Commit)
			fmt.Fprintf(out, "  Built:      %s\n", BuildDate)
			fmt.Fprintf(out, "  Go version: %s\n", runtime.Version())
		},
	}
}

func newMigrateCmd(opts *globalOptions) *cobra.Command {
	var (
		list   bool
		status bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if list {
				migrations, err := db.GetMigrations()
				if err != nil {
					return err
				}
				fmt.Fprintln(out, "Available migrations:")
				for _, m := range migrations {
					fmt.Fprintf(out, "  %03d: %s\n", m.Version, m.Name)
				}
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			database, err := openDatabase(ctx, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer database.Close()

			if !status {
				if err := database.Migrate(ctx); err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
			}

			version, err := database.CurrentVersion(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Current schema version: %d\n", version)
			return nil
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "list embedded migrations without connecting")
	cmd.Flags().BoolVar(&status, "status", false, "show the schema version without migrating")

	return cmd
}

// openDatabase opens the configured database. Logs go to w only in verbose mode.
func openDatabase(ctx context.Context, opts *globalOptions, w io.Writer) (*db.DB, error) {
	logger := zerolog.Nop()
	if opts.verbose {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	}

	database, err := db.New(ctx, db.DefaultConfig(opts.dbPath), logger)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", opts.dbPath, err)
	}
	return database, nil
}
