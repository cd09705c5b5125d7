package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tigerroll/surfin-dq/internal/app"
	"github.com/tigerroll/surfin-dq/pkg/dq/core/config"
	"github.com/tigerroll/surfin-dq/pkg/dq/job/runner"
	"github.com/tigerroll/surfin-dq/pkg/dq/support/util/logger"
)

// ExitError carries the process exit code of a finished command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// rootOptions holds flags shared by every command.
type rootOptions struct {
	envFilePath    string
	embeddedConfig config.EmbeddedConfig
	debug          bool
}

func (o *rootOptions) appOptions() app.Options {
	return app.Options{EnvFilePath: o.envFilePath, EmbeddedConfig: o.embeddedConfig, Debug: o.debug}
}

// NewRootCommand creates the dqrunner command tree.
func NewRootCommand(envFilePath string, embedded []byte) *cobra.Command {
	opts := &rootOptions{envFilePath: envFilePath, embeddedConfig: embedded}

	cmd := &cobra.Command{
		Use:           "dqrunner",
		Short:         "Data quality runner",
		Long:          "Runs declarative data reconciliation and quality jobs and records their outcome in the audit log.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable DEBUG logging")
	cmd.PersistentFlags().StringVar(&opts.envFilePath, "env-file", envFilePath, "path to the .env file")

	cmd.AddCommand(newRunCommand(opts, app.RunJob))
	cmd.AddCommand(newScheduleCommand(opts))
	return cmd
}

// jobRunFunc matches app.RunJob.
type jobRunFunc func(ctx context.Context, opts app.Options, req runner.Request) (*runner.Result, error)

func newRunCommand(opts *rootOptions, run jobRunFunc) *cobra.Command {
	var (
		jobID int
		auto  bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one batch of a job",
		Long: `Run one batch of the job identified by --job-id.

Manual runs resume after the first failed task of the previous batch when the job allows restarts.
--auto marks the batch as scheduled: it is logged as AUTO and always starts from the first task.

The command exits 0 for every terminal job status, including validation failures.
It exits 1 when the batch was stopped by a signal or could not be opened.

Example:
  dqrunner run --job-id 12
  dqrunner run --job-id 12 --auto --debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if jobID < 0 {
				return &ExitError{Code: 2, Err: fmt.Errorf("--job-id must be greater than or equal to 0, got %d", jobID)}
			}
			result, err := run(cmd.Context(), opts.appOptions(), runner.Request{JobID: jobID, Scheduled: auto})
			if err != nil {
				return &ExitError{Code: 1, Err: err}
			}
			logger.Infof("Batch %s finished with job_status=%s validation_status=%s",
				result.BatchID, result.Status, validationLabel(result))
			if code := result.ExitCode(); code != 0 {
				return &ExitError{Code: code, Err: result.Err}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&jobID, "job-id", 0, "job_id to run (required)")
	cmd.Flags().BoolVar(&auto, "auto", false, "mark the run as scheduled")
	_ = cmd.MarkFlagRequired("job-id")
	return cmd
}

func newScheduleCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the configured cron schedules until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunScheduler(cmd.Context(), opts.appOptions())
		},
	}
}

func validationLabel(r *runner.Result) string {
	if r.ValidationStatus == nil {
		return "-"
	}
	return string(*r.ValidationStatus)
}
