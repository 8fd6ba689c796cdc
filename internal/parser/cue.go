package parser

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/paiml/probar/internal/machine"
)

// ParseCUE compiles a playbook document written in CUE and decodes it into
// a Playbook. The CUE value must be concrete; constraints that leave fields
// open are a parse error.
//
// The compiled value is exported as JSON and fed through the same strict
// decoder as YAML documents, so both front ends share one set of
// well-formedness rules.
func ParseCUE(path string, data []byte) (*machine.Playbook, error) {
	ctx := cuecontext.New()

	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("compiling CUE: %v", err)}
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("CUE document is not concrete: %v", err)}
	}

	// JSON is a YAML subset, so the exported value goes straight through
	// the strict YAML decoder.
	encoded, err := value.MarshalJSON()
	if err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("exporting CUE value: %v", err)}
	}
	return Parse(encoded)
}
