package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paiml/probar/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Playbook string
	Run      string
	Limit    int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded playbook runs",
		Long: `List runs recorded by "probar run --db", newest first, or show one run
in full with --run.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryCmd(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to run-history SQLite database (required)")
	cmd.Flags().StringVar(&opts.Playbook, "playbook", "", "filter by playbook name")
	cmd.Flags().StringVar(&opts.Run, "run", "", "show a single run by ID")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum runs to list (0 for all)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistoryCmd(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open run-history database", err)
	}
	defer st.Close()

	ctx := cmd.Context()

	if opts.Run != "" {
		rec, err := st.GetRun(ctx, opts.Run)
		if err != nil {
			if errors.Is(err, store.ErrRunNotFound) {
				_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
				return WrapExitError(ExitCommandError, "run not found", err)
			}
			_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to read run", err)
		}
		return outputRun(formatter, rec)
	}

	records, err := st.ListRuns(ctx, opts.Playbook, opts.Limit)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(records)
	}
	if len(records) == 0 {
		fmt.Fprintln(formatter.Writer, "no recorded runs")
		return nil
	}
	for _, rec := range records {
		verdict := "✓"
		if !rec.Passed {
			verdict = "✗"
		}
		fmt.Fprintf(formatter.Writer, "%s %s  %s  %s  (%d states)\n",
			verdict, rec.CreatedAt, rec.ID, rec.Playbook, len(rec.StatePath))
	}
	return nil
}

func outputRun(formatter *OutputFormatter, rec *store.RunRecord) error {
	if formatter.Format == "json" {
		return formatter.Success(rec)
	}

	verdict := "passed"
	if !rec.Passed {
		verdict = "failed"
	}
	fmt.Fprintf(formatter.Writer, "run %s (%s): %s %s\n", rec.ID, rec.CreatedAt, rec.Playbook, verdict)
	fmt.Fprintf(formatter.Writer, "  path: %v\n", rec.StatePath)
	for _, f := range rec.AssertionFailures {
		fmt.Fprintf(formatter.Writer, "  assertion failed: %s\n", f)
	}
	for _, v := range rec.ForbiddenViolations {
		fmt.Fprintf(formatter.Writer, "  FORBIDDEN: %s -> %s via %q\n", v.From, v.To, v.Transition)
	}
	if rec.FailureCause != "" {
		fmt.Fprintf(formatter.Writer, "  cause: %s\n", rec.FailureCause)
	}
	return nil
}
