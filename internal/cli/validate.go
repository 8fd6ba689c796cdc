package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paiml/probar/internal/report"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <playbook>",
		Short: "Validate a playbook's state machine",
		Long: `Parse a playbook document and analyze its state machine for structural
defects: unreachable states, dead ends, missing paths to final states,
non-deterministic dispatch, and unguarded self-loops.

An invalid machine (any error-severity issue) is never executed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidateCmd(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidateCmd(opts *RootOptions, path string, cmd *cobra.Command) error {
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
	if err := outputReport(formatter, rep); err != nil {
		return err
	}
	if !rep.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("machine %q is invalid", pb.Machine.ID))
	}
	return nil
}

