package ilp

import (
	"fmt"
	"strings"

	"github.com/joshharrison/hlsched/internal/graph"
)

// Mode selects which quantity the model minimizes.
type Mode int

const (
	// MLRC minimizes latency under a resource budget.
	MLRC Mode = iota
	// MRLC minimizes weighted resource usage under a latency bound.
	MRLC
)

func (m Mode) String() string {
	switch m {
	case MLRC:
		return "ml_rc"
	case MRLC:
		return "mr_lc"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode accepts "ml_rc"/"mlrc" and "mr_lc"/"mrlc", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_") {
	case "ml_rc", "mlrc":
		return MLRC, nil
	case "mr_lc", "mrlc":
		return MRLC, nil
	}
	return 0, fmt.Errorf("unknown scheduling mode %q", s)
}

// VarKind is the domain of a decision variable.
type VarKind int

const (
	Binary VarKind = iota
	Integer
)

// Var is a decision variable with inclusive bounds.
type Var struct {
	Name  string
	Kind  VarKind
	Lower int
	Upper int
}

// Term is Coef * Var.
type Term struct {
	Var  string
	Coef int
}

// Sense is the relation of a linear constraint.
type Sense int

const (
	LE Sense = iota
	GE
	EQ
)

func (s Sense) String() string {
	switch s {
	case LE:
		return "<="
	case GE:
		return ">="
	}
	return "="
}

// Constraint is Σ Terms <Sense> RHS.
type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   int
}

// StartVar is the binary indicator for a node starting at Time.
type StartVar struct {
	Name string
	Time int
}

// Assignment maps variable names to values. Variables not present are 0.
type Assignment map[string]int

// Model is one ILP instance. It is built for a single solve and not shared.
type Model struct {
	Mode        Mode
	Vars        []Var
	Constraints []Constraint

	// Objective is Scale*Primary plus the tie-break terms, if any.
	Objective []Term
	Primary   []Term
	Scale     int

	// Semantic index.
	Starts    map[string][]StartVar   // node id -> start indicators, ascending time
	Latency   string                  // makespan variable (ML_RC only)
	Resources map[graph.OpType]string // instance-count variables (MR_LC only)
	Horizon   int

	varIndex map[string]int
}

// Var looks up a variable by name.
func (m *Model) Var(name string) (Var, bool) {
	i, ok := m.varIndex[name]
	if !ok {
		return Var{}, false
	}
	return m.Vars[i], true
}

// NumBinary counts binary variables.
func (m *Model) NumBinary() int {
	n := 0
	for _, v := range m.Vars {
		if v.Kind == Binary {
			n++
		}
	}
	return n
}

// InfeasibleBoundError reports a latency bound below the critical path.
type InfeasibleBoundError struct {
	Bound      int
	LowerBound int
}

func (e *InfeasibleBoundError) Error() string {
	return fmt.Sprintf("latency bound %d is below the critical-path length %d", e.Bound, e.LowerBound)
}
