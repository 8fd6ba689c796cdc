package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/paiml/probar/internal/mutate"
	"github.com/paiml/probar/internal/report"
	"github.com/paiml/probar/internal/runner"
)

// MutateOptions holds flags for the mutate command.
type MutateOptions struct {
	*RootOptions
	Workers  int
	Live     bool
	MinScore float64

	// ExecutorFactory supplies drivers for live replay. Nil defaults to
	// dry-run executors; concrete drivers inject their own factory.
	ExecutorFactory mutate.ExecutorFactory
}

// NewMutateCommand creates the mutate command.
func NewMutateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MutateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "mutate <playbook>",
		Short: "Measure assertion rigor through mutation falsification",
		Long: `Generate single-defect variants of the playbook's state machine across
five operator classes (state removal, transition removal, event swap,
target swap, guard negation) and score how many the playbook's declared
assertions detect.

The default scoring mode is static falsification: a mutant is killed when
validation finds a new structural error or when no path through the
mutant can satisfy the playbook's path assertions. --live additionally
replays the playbook once per mutant.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutateCmd(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Workers, "workers", runtime.NumCPU(), "concurrent mutant evaluations")
	cmd.Flags().BoolVar(&opts.Live, "live", false, "replay the playbook once per mutant (slow)")
	cmd.Flags().Float64Var(&opts.MinScore, "min-score", 0, "fail when the mutation score is below this threshold")

	return cmd
}

func runMutateCmd(opts *MutateOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	pb, issues, err := loadAndValidate(formatter, path)
	if err != nil {
		return err
	}

	rep := report.Build(pb.Name, issues, nil, nil)
	if !rep.Valid {
		// An invalid machine is never mutated; there is no baseline.
		if err := outputReport(formatter, rep); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("machine %q is invalid", pb.Machine.ID))
	}

	mutants := mutate.Generate(&pb.Machine)
	formatter.VerboseLog("generated %d mutants", len(mutants))

	var score mutate.ScoreResult
	if opts.Live {
		factory := opts.ExecutorFactory
		if factory == nil {
			factory = func() runner.ActionExecutor { return runner.NopExecutor{} }
		}
		score, err = mutate.ScoreLive(cmd.Context(), pb, mutants, factory, opts.Workers)
		if err != nil {
			return WrapExitError(ExitCommandError, "live replay failed", err)
		}
	} else {
		score = mutate.Score(pb, mutants, opts.Workers)
	}

	rep = report.Build(pb.Name, issues, &score, nil)
	if err := outputReport(formatter, rep); err != nil {
		return err
	}

	if score.Score < opts.MinScore {
		return NewExitError(ExitFailure,
			fmt.Sprintf("mutation score %.2f below threshold %.2f", score.Score, opts.MinScore))
	}
	return nil
}
