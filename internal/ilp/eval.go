package ilp

import "fmt"

func sum(terms []Term, a Assignment) int {
	total := 0
	for _, t := range terms {
		total += t.Coef * a[t.Var]
	}
	return total
}

// Evaluate returns the full objective, tie-break included, under a.
func (m *Model) Evaluate(a Assignment) int {
	return sum(m.Objective, a)
}

// PrimaryValue returns the latency (ML_RC) or weighted area (MR_LC) under a.
func (m *Model) PrimaryValue(a Assignment) int {
	return sum(m.Primary, a)
}

// Violations lists every bound or constraint that a breaks.
func (m *Model) Violations(a Assignment) []string {
	var out []string
	for _, v := range m.Vars {
		if x := a[v.Name]; x < v.Lower || x > v.Upper {
			out = append(out, fmt.Sprintf("%s = %d outside [%d, %d]", v.Name, x, v.Lower, v.Upper))
		}
	}
	for _, c := range m.Constraints {
		lhs := sum(c.Terms, a)
		ok := true
		switch c.Sense {
		case LE:
			ok = lhs <= c.RHS
		case GE:
			ok = lhs >= c.RHS
		case EQ:
			ok = lhs == c.RHS
		}
		if !ok {
			out = append(out, fmt.Sprintf("%s: %d %s %d", c.Name, lhs, c.Sense, c.RHS))
		}
	}
	return out
}
