package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/paiml/probar/internal/machine"
	"github.com/paiml/probar/internal/parser"
	"github.com/paiml/probar/internal/report"
	"github.com/paiml/probar/internal/validate"
)

// loadAndValidate parses a playbook file and validates its machine.
// Parse failures and dangling state references become command errors
// (exit code 2): a document that never became a machine is a different
// failure from a machine that failed its checks.
//
// Shared by the validate, mutate, run, and export commands.
func loadAndValidate(formatter *OutputFormatter, path string) (*machine.Playbook, []validate.Issue, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		msg := fmt.Sprintf("playbook file not found: %s", path)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return nil, nil, NewExitError(ExitCommandError, msg)
	}

	formatter.VerboseLog("parsing playbook %s", path)
	pb, err := parser.LoadPlaybook(path)
	if err != nil {
		var perr *parser.ParseError
		if errors.As(err, &perr) {
			_ = formatter.Error(ErrCodeParse, perr.Error(), nil)
			return nil, nil, WrapExitError(ExitCommandError, "failed to parse playbook", err)
		}
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return nil, nil, WrapExitError(ExitCommandError, "failed to load playbook", err)
	}

	formatter.VerboseLog("validating machine %s (%d states, %d transitions)",
		pb.Machine.ID, len(pb.Machine.States), len(pb.Machine.Transitions))
	issues, err := validate.Validate(&pb.Machine)
	if err != nil {
		// Referential errors are fatal pre-validation failures.
		_ = formatter.Error(ErrCodeParse, err.Error(), nil)
		return nil, nil, WrapExitError(ExitCommandError, "machine has dangling references", err)
	}

	return pb, issues, nil
}

// outputReport renders a report in the configured format.
func outputReport(formatter *OutputFormatter, rep *report.Report) error {
	if formatter.Format == "json" {
		return formatter.Success(rep)
	}
	rep.WriteText(formatter.Writer)
	return nil
}
