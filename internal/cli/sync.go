package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/astralblue/k3l-fcgraph-embeds/internal/store"
	"github.com/astralblue/k3l-fcgraph-embeds/internal/sync"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Config       string
	Driver       string
	Database     string
	SourceDSN    string
	TargetDSN    string
	SourceSchema string
	TargetSchema string
	BatchSize    int
	MinUpdatedAt string
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync cast embeds from the source into the normalized table",
		Long: `Fetch casts updated since the watermark, normalize their embed
payloads, and replace the corresponding rows in the cast_embeds table.

Connection settings come from a CUE config file, the environment, or
flags; flags win over the config file.

Example:
  fcembeds sync --config job.cue
  fcembeds sync --driver sqlite --db ./embeds.db --min-updated-at 2025-06-01T00:00:00Z`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to CUE job config")
	cmd.Flags().StringVar(&opts.Driver, "driver", "", "database driver (postgres|sqlite)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (sqlite driver)")
	cmd.Flags().StringVar(&opts.SourceDSN, "source-dsn", "", "source Postgres DSN")
	cmd.Flags().StringVar(&opts.TargetDSN, "target-dsn", "", "target Postgres DSN")
	cmd.Flags().StringVar(&opts.SourceSchema, "source-schema", "", "schema holding the casts table")
	cmd.Flags().StringVar(&opts.TargetSchema, "target-schema", "", "schema holding the cast_embeds table")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 0, "casts per batch")
	cmd.Flags().StringVar(&opts.MinUpdatedAt, "min-updated-at", "", "only sync casts updated at or after this RFC 3339 time")

	return cmd
}

func runSync(opts *SyncOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	job, err := resolveJob(opts, cmd)
	if err != nil {
		formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid job config", err)
	}

	minUpdatedAt, err := job.MinUpdatedAtTime()
	if err != nil {
		formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid job config", err)
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if opts.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	syncOpts := sync.Options{
		MinUpdatedAt: minUpdatedAt,
		BatchSize:    job.BatchSize,
		Logger:       log,
	}

	var result *sync.Result
	switch job.Driver {
	case "sqlite":
		result, err = store.SyncSQLite(cmd.Context(), job.SQLitePath, syncOpts)
	case "postgres":
		result, err = store.SyncPostgres(cmd.Context(),
			job.Source.DSN, job.Target.DSN,
			job.Source.Schema, job.Target.Schema,
			syncOpts)
	}
	if err != nil {
		formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "opening databases", err)
	}

	if opts.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		renderResult(formatter, result)
	}

	if result.Errors > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("sync completed with %d errors", result.Errors))
	}
	return nil
}

// resolveJob builds the job from defaults, the optional config file,
// and any explicitly set flags, in that order.
func resolveJob(opts *SyncOptions, cmd *cobra.Command) (Job, error) {
	job := DefaultJob()
	if opts.Config != "" {
		loaded, err := LoadJob(opts.Config)
		if err != nil {
			return job, err
		}
		job = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("driver") {
		job.Driver = opts.Driver
	}
	if flags.Changed("db") {
		job.SQLitePath = opts.Database
		if !flags.Changed("driver") && opts.Config == "" {
			job.Driver = "sqlite"
		}
	}
	if flags.Changed("source-dsn") {
		job.Source.DSN = opts.SourceDSN
	}
	if flags.Changed("target-dsn") {
		job.Target.DSN = opts.TargetDSN
	}
	if flags.Changed("source-schema") {
		job.Source.Schema = opts.SourceSchema
	}
	if flags.Changed("target-schema") {
		job.Target.Schema = opts.TargetSchema
	}
	if flags.Changed("batch-size") {
		job.BatchSize = opts.BatchSize
	}
	if flags.Changed("min-updated-at") {
		job.MinUpdatedAt = opts.MinUpdatedAt
	}

	if err := job.Validate(); err != nil {
		return job, err
	}
	return job, nil
}

func renderResult(f *OutputFormatter, result *sync.Result) {
	fmt.Fprintf(f.Writer, "run_id:           %s\n", result.RunID)
	fmt.Fprintf(f.Writer, "casts_processed:  %d\n", result.CastsProcessed)
	fmt.Fprintf(f.Writer, "embeds_extracted: %d\n", result.EmbedsExtracted)
	fmt.Fprintf(f.Writer, "embeds_inserted:  %d\n", result.EmbedsInserted)
	fmt.Fprintf(f.Writer, "errors:           %d\n", result.Errors)
	if !result.MaxUpdatedAt.IsZero() {
		fmt.Fprintf(f.Writer, "max_updated_at:   %s\n", result.MaxUpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"))
	}
	if f.Verbose && len(result.ErrorDetails) > 0 {
		fmt.Fprintf(f.GetErrWriter(), "error details:\n  %s\n", strings.Join(result.ErrorDetails, "\n  "))
	}
}
