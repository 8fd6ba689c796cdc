package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/paiml/probar/internal/diagram"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Diagram string // "dot" | "svg"
	Output  string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <playbook>",
		Short: "Export the state machine as a diagram",
		Long: `Render the playbook's state machine as a Graphviz DOT document or a
derived SVG image. Final states get a double border; forbidden pairs are
drawn as red dashed edges. The projection is one-way and lossy.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExportCmd(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Diagram, "diagram", "dot", "diagram format (dot|svg)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write to file instead of stdout")

	return cmd
}

func runExportCmd(opts *ExportOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	pb, _, err := loadAndValidate(formatter, path)
	if err != nil {
		return err
	}

	var rendered string
	switch opts.Diagram {
	case "dot":
		rendered = diagram.ExportDOT(&pb.Machine)
	case "svg":
		rendered = diagram.ExportSVG(&pb.Machine)
	default:
		msg := fmt.Sprintf("unknown diagram format %q: must be dot or svg", opts.Diagram)
		_ = formatter.Error(ErrCodeGeneric, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	if opts.Output == "" {
		fmt.Fprint(cmd.OutOrStdout(), rendered)
		return nil
	}
	if err := os.WriteFile(opts.Output, []byte(rendered), 0o644); err != nil {
		return WrapExitError(ExitCommandError, "failed to write diagram", err)
	}
	formatter.VerboseLog("diagram written to %s", opts.Output)
	return nil
}
