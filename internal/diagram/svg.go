package diagram

import (
	"fmt"
	"math"
	"strings"

	"github.com/paiml/probar/internal/machine"
)

// Fixed rendering geometry. The SVG is a readable sketch, not a layout
// engine; states sit on a circle in collation order.
const (
	svgRadius      = 28.0
	svgRingPadding = 150.0
	svgMinSize     = 360.0
)

// ExportSVG renders the machine as a standalone SVG document derived from
// the same projection as ExportDOT: circles for states, a second ring for
// final states, straight event-labeled edges, red dashed edges for
// forbidden pairs.
func ExportSVG(spec *machine.StateMachineSpec) string {
	ids := sortedStates(spec)

	ring := svgRingPadding * math.Max(1, float64(len(ids))/4)
	size := math.Max(svgMinSize, 2*(ring+svgRingPadding/2))
	center := size / 2

	pos := make(map[machine.StateID][2]float64, len(ids))
	for i, id := range ids {
		angle := 2 * math.Pi * float64(i) / float64(len(ids))
		pos[id] = [2]float64{
			center + ring*math.Cos(angle-math.Pi/2),
			center + ring*math.Sin(angle-math.Pi/2),
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">`+"\n",
		size, size, size, size)
	fmt.Fprintf(&sb, `  <title>%s</title>`+"\n", escapeXML(spec.ID))
	sb.WriteString(`  <defs><marker id="arrow" markerWidth="8" markerHeight="8" refX="7" refY="3" orient="auto"><path d="M0,0 L7,3 L0,6 z"/></marker></defs>` + "\n")

	for _, t := range spec.Transitions {
		writeEdge(&sb, pos[t.From], pos[t.To], t.Event, false)
	}
	for _, f := range spec.Forbidden {
		writeEdge(&sb, pos[f.From], pos[f.To], "forbidden", true)
	}

	for _, id := range ids {
		p := pos[id]
		fmt.Fprintf(&sb, `  <circle cx="%.1f" cy="%.1f" r="%.0f" fill="white" stroke="black"/>`+"\n",
			p[0], p[1], svgRadius)
		if spec.States[id].Final {
			fmt.Fprintf(&sb, `  <circle cx="%.1f" cy="%.1f" r="%.0f" fill="none" stroke="black"/>`+"\n",
				p[0], p[1], svgRadius-4)
		}
		fmt.Fprintf(&sb, `  <text x="%.1f" y="%.1f" text-anchor="middle" dominant-baseline="middle" font-size="11">%s</text>`+"\n",
			p[0], p[1], escapeXML(string(id)))
	}

	sb.WriteString("</svg>\n")
	return sb.String()
}

// writeEdge draws one straight edge, clipped to the node circles, with its
// label at the midpoint. Self-loops are drawn as a small arc above the
// node.
func writeEdge(sb *strings.Builder, from, to [2]float64, label string, forbidden bool) {
	stroke := `stroke="black"`
	if forbidden {
		stroke = `stroke="red" stroke-dasharray="6,3"`
	}

	if from == to {
		fmt.Fprintf(sb, `  <path d="M %.1f %.1f C %.1f %.1f, %.1f %.1f, %.1f %.1f" fill="none" %s/>`+"\n",
			from[0]-svgRadius/2, from[1]-svgRadius,
			from[0]-svgRadius, from[1]-2.2*svgRadius,
			from[0]+svgRadius, from[1]-2.2*svgRadius,
			from[0]+svgRadius/2, from[1]-svgRadius,
			stroke)
		fmt.Fprintf(sb, `  <text x="%.1f" y="%.1f" text-anchor="middle" font-size="9">%s</text>`+"\n",
			from[0], from[1]-2.2*svgRadius, escapeXML(label))
		return
	}

	dx, dy := to[0]-from[0], to[1]-from[1]
	dist := math.Hypot(dx, dy)
	if dist == 0 {
		return
	}
	ux, uy := dx/dist, dy/dist
	x1, y1 := from[0]+ux*svgRadius, from[1]+uy*svgRadius
	x2, y2 := to[0]-ux*svgRadius, to[1]-uy*svgRadius

	fmt.Fprintf(sb, `  <line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" %s marker-end="url(#arrow)"/>`+"\n",
		x1, y1, x2, y2, stroke)
	fmt.Fprintf(sb, `  <text x="%.1f" y="%.1f" text-anchor="middle" font-size="9">%s</text>`+"\n",
		(x1+x2)/2, (y1+y2)/2-4, escapeXML(label))
}

func escapeXML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
