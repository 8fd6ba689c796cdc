// Package diagram renders a state machine as a Graphviz DOT document and a
// derived SVG image. The projection is pure, stateless, lossy, and
// one-directional: actions, assertions, and invariants are not rendered.
package diagram

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/paiml/probar/internal/machine"
)

// coll orders state IDs the same way in every rendering.
var coll = collate.New(language.Und)

// sortedStates returns the spec's state IDs in collation order.
func sortedStates(spec *machine.StateMachineSpec) []machine.StateID {
	ids := spec.StateIDs()
	sort.Slice(ids, func(i, j int) bool {
		return coll.CompareString(string(ids[i]), string(ids[j])) < 0
	})
	return ids
}

// ExportDOT renders the machine as a Graphviz digraph. Final states get a
// double border, edges carry the event label (plus the guard in brackets),
// and forbidden pairs are drawn as red dashed edges.
func ExportDOT(spec *machine.StateMachineSpec) string {
	var sb strings.Builder

	sb.WriteString("digraph machine {\n")
	sb.WriteString("    rankdir=LR;\n")
	sb.WriteString("    node [fontname=\"Helvetica\", fontsize=11];\n")
	sb.WriteString("    edge [fontname=\"Helvetica\", fontsize=10];\n")
	sb.WriteString("\n")

	if spec.ID != "" {
		sb.WriteString("    labelloc=\"t\";\n")
		fmt.Fprintf(&sb, "    label=\"%s\";\n\n", escapeDOT(spec.ID))
	}

	// Invisible start marker pointing at the initial state.
	sb.WriteString("    __start [shape=none, label=\"\", width=0, height=0];\n")
	fmt.Fprintf(&sb, "    __start -> \"%s\";\n\n", escapeDOT(string(spec.Initial)))

	for _, id := range sortedStates(spec) {
		shape := "circle"
		if spec.States[id].Final {
			shape = "doublecircle"
		}
		fmt.Fprintf(&sb, "    \"%s\" [shape=%s];\n", escapeDOT(string(id)), shape)
	}
	sb.WriteString("\n")

	for _, t := range spec.Transitions {
		label := t.Event
		if t.Guard != "" {
			label = fmt.Sprintf("%s [%s]", t.Event, t.Guard)
		}
		fmt.Fprintf(&sb, "    \"%s\" -> \"%s\" [label=\"%s\"];\n",
			escapeDOT(string(t.From)), escapeDOT(string(t.To)), escapeDOT(label))
	}

	if len(spec.Forbidden) > 0 {
		sb.WriteString("\n")
		for _, f := range spec.Forbidden {
			label := "forbidden"
			if f.Reason != "" {
				label = fmt.Sprintf("forbidden: %s", f.Reason)
			}
			fmt.Fprintf(&sb, "    \"%s\" -> \"%s\" [label=\"%s\", color=red, style=dashed];\n",
				escapeDOT(string(f.From)), escapeDOT(string(f.To)), escapeDOT(label))
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

func escapeDOT(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	return s
}
