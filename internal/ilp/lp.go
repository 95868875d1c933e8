package ilp

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// LP lines must stay under 255 characters for glpsol.
const lpLineWidth = 200

// WriteLP serializes m in CPLEX LP format.
func WriteLP(w io.Writer, m *Model) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "\\* hlsched %s model: %d variables, %d constraints *\\\n", m.Mode, len(m.Vars), len(m.Constraints))
	fmt.Fprintln(bw, "Minimize")
	writeRow(bw, "obj", m.Objective, "", 0)

	fmt.Fprintln(bw, "Subject To")
	for _, c := range m.Constraints {
		writeRow(bw, c.Name, c.Terms, c.Sense.String(), c.RHS)
	}

	fmt.Fprintln(bw, "Bounds")
	for _, v := range m.Vars {
		if v.Kind == Integer {
			fmt.Fprintf(bw, " %d <= %s <= %d\n", v.Lower, v.Name, v.Upper)
		}
	}

	var binaries, generals []string
	for _, v := range m.Vars {
		if v.Kind == Binary {
			binaries = append(binaries, v.Name)
		} else {
			generals = append(generals, v.Name)
		}
	}
	if len(binaries) > 0 {
		fmt.Fprintln(bw, "Binary")
		writeNames(bw, binaries)
	}
	if len(generals) > 0 {
		fmt.Fprintln(bw, "General")
		writeNames(bw, generals)
	}
	fmt.Fprintln(bw, "End")
	return bw.Flush()
}

func writeRow(w io.Writer, name string, terms []Term, sense string, rhs int) {
	var line strings.Builder
	line.WriteString(" " + name + ":")
	flush := func() {
		fmt.Fprintln(w, line.String())
		line.Reset()
		line.WriteString("  ")
	}
	if len(terms) == 0 {
		// An empty objective still needs a column reference.
		line.WriteString(" 0 x_0_0")
	}
	for _, t := range terms {
		sign, coef := "+", t.Coef
		if coef < 0 {
			sign, coef = "-", -coef
		}
		tok := fmt.Sprintf(" %s %d %s", sign, coef, t.Var)
		if line.Len()+len(tok) > lpLineWidth {
			flush()
		}
		line.WriteString(tok)
	}
	if sense != "" {
		line.WriteString(fmt.Sprintf(" %s %d", sense, rhs))
	}
	fmt.Fprintln(w, line.String())
}

func writeNames(w io.Writer, names []string) {
	var line strings.Builder
	for _, n := range names {
		if line.Len()+len(n)+1 > lpLineWidth {
			fmt.Fprintln(w, line.String())
			line.Reset()
		}
		line.WriteString(" " + n)
	}
	if line.Len() > 0 {
		fmt.Fprintln(w, line.String())
	}
}
