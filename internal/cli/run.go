package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/paiml/probar/internal/report"
	"github.com/paiml/probar/internal/runner"
	"github.com/paiml/probar/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database        string
	FailFast        bool
	ContinueOnError bool
	PollIntervalMS  int

	// Executor overrides the driver (for tests and embedding drivers).
	// Nil means the dry-run NopExecutor.
	Executor runner.ActionExecutor

	// IDGen overrides run ID generation (for deterministic tests).
	IDGen runner.RunIDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <playbook>",
		Short: "Execute a playbook against an automation driver",
		Long: `Validate a playbook and execute its steps against an automation driver,
recording the state path, captured variables, and assertion outcomes.

Without an embedded driver the run is a dry run: every driver call
succeeds and every condition evaluates true, which still exercises the
machine's transitions, path assertions, and forbidden-transition checks.

With --db, the execution result is appended to a run-history database
readable via "probar history".`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunCmd(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to run-history SQLite database")
	cmd.Flags().BoolVar(&opts.FailFast, "fail-fast", false, "abort to teardown on the first assertion failure")
	cmd.Flags().BoolVar(&opts.ContinueOnError, "continue-on-error", false, "keep running past driver errors")
	cmd.Flags().IntVar(&opts.PollIntervalMS, "poll-interval", 0, "step timeout polling interval in milliseconds")

	return cmd
}

func runRunCmd(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	logLevel := slog.LevelWarn
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	pb, issues, err := loadAndValidate(formatter, path)
	if err != nil {
		return err
	}

	rep := report.Build(pb.Name, issues, nil, nil)
	if !rep.Valid {
		// An invalid machine is never executed.
		if err := outputReport(formatter, rep); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("machine %q is invalid", pb.Machine.ID))
	}

	exec := opts.Executor
	if exec == nil {
		formatter.VerboseLog("no driver configured, running dry")
		exec = runner.NopExecutor{}
	}

	r := runner.New(pb, exec, runner.Config{
		FailFast:        opts.FailFast,
		ContinueOnError: opts.ContinueOnError,
		PollInterval:    time.Duration(opts.PollIntervalMS) * time.Millisecond,
		Logger:          logger,
		IDGen:           opts.IDGen,
	})
	result, err := r.Run(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "run aborted", err)
	}

	if opts.Database != "" {
		if err := persistRun(cmd.Context(), formatter, opts.Database, result); err != nil {
			return err
		}
	}

	rep = report.Build(pb.Name, issues, nil, result)
	if err := outputReport(formatter, rep); err != nil {
		return err
	}
	if !result.Passed {
		return NewExitError(ExitFailure, fmt.Sprintf("playbook %q failed", pb.Name))
	}
	return nil
}

func persistRun(ctx context.Context, formatter *OutputFormatter, dbPath string, result *runner.Result) error {
	st, err := store.Open(dbPath)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open run-history database", err)
	}
	defer st.Close()

	if err := st.WriteRun(ctx, result); err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to record run", err)
	}
	formatter.VerboseLog("run %s recorded in %s", result.RunID, dbPath)
	return nil
}
