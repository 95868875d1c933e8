package solver

import (
	"context"
	"fmt"
	"sort"
	"time"

	gophersat "github.com/crillab/gophersat/solver"
	"go.uber.org/zap"

	"github.com/joshharrison/hlsched/internal/ilp"
	"github.com/joshharrison/hlsched/internal/logging"
)

// PB solves models in-process with the gophersat pseudo-boolean optimizer.
// Integer variables are unary-encoded as lo + Σ b_j with b_j >= b_{j+1}.
type PB struct{}

// NewPB creates a pseudo-boolean backend.
func NewPB() *PB { return &PB{} }

func (s *PB) Name() string { return BackendPB }

// Solve encodes m, minimizes it and decodes the model. The underlying
// search cannot be interrupted; on cancellation Solve returns ctx.Err()
// and the search goroutine finishes in the background.
func (s *PB) Solve(ctx context.Context, m *ilp.Model) (*Result, error) {
	log := logging.FromContext(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	enc, err := encode(m)
	if err != nil {
		return nil, &InvocationError{Backend: BackendPB, Err: err}
	}
	if enc.unsat {
		log.Debug("pb model trivially infeasible", zap.String("mode", m.Mode.String()))
		return &Result{Status: Infeasible}, nil
	}

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		res, err := enc.solve(m)
		done <- outcome{res, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case o := <-done:
		log.Debug("pb solve finished",
			zap.String("mode", m.Mode.String()),
			zap.Int("pb_vars", enc.nbVars),
			zap.Int("pb_constraints", len(enc.constrs)),
			zap.Duration("elapsed", time.Since(start)))
		return o.res, o.err
	}
}

// encoding is a model translated to normalized pseudo-boolean constraints
// over 1-based literals.
type encoding struct {
	nbVars  int
	bits    map[string][]int // ILP variable -> its boolean variables
	constrs []gophersat.PBConstr
	used    map[int]bool // boolean variables that occur in some constraint
	unsat   bool
}

func encode(m *ilp.Model) (*encoding, error) {
	e := &encoding{bits: make(map[string][]int), used: make(map[int]bool)}

	for _, v := range m.Vars {
		if v.Upper < v.Lower {
			e.unsat = true
			return e, nil
		}
		switch v.Kind {
		case ilp.Binary:
			e.nbVars++
			e.bits[v.Name] = []int{e.nbVars}
		case ilp.Integer:
			width := v.Upper - v.Lower
			vars := make([]int, width)
			for j := range vars {
				e.nbVars++
				vars[j] = e.nbVars
			}
			e.bits[v.Name] = vars
			// b_j or not b_{j+1}
			for j := 0; j+1 < width; j++ {
				e.add(map[int]int{vars[j]: 1, vars[j+1]: -1}, 0)
			}
		default:
			return nil, fmt.Errorf("variable %s has unknown kind %d", v.Name, v.Kind)
		}
	}

	for _, c := range m.Constraints {
		coefs, offset, err := e.expand(m, c.Terms)
		if err != nil {
			return nil, fmt.Errorf("constraint %s: %w", c.Name, err)
		}
		rhs := c.RHS - offset
		if c.Sense == ilp.GE || c.Sense == ilp.EQ {
			e.add(coefs, rhs)
		}
		if c.Sense == ilp.LE || c.Sense == ilp.EQ {
			neg := make(map[int]int, len(coefs))
			for v, w := range coefs {
				neg[v] = -w
			}
			e.add(neg, -rhs)
		}
		if e.unsat {
			return e, nil
		}
	}
	return e, nil
}

// expand rewrites terms over ILP variables into boolean variables plus a
// constant offset.
func (e *encoding) expand(m *ilp.Model, terms []ilp.Term) (map[int]int, int, error) {
	coefs := make(map[int]int)
	offset := 0
	for _, t := range terms {
		v, ok := m.Var(t.Var)
		if !ok {
			return nil, 0, fmt.Errorf("unknown variable %s", t.Var)
		}
		if v.Kind == ilp.Integer {
			offset += t.Coef * v.Lower
		}
		for _, b := range e.bits[t.Var] {
			coefs[b] += t.Coef
		}
	}
	return coefs, offset, nil
}

// add appends Σ w*x >= atLeast, normalized to positive weights. Trivially
// true rows are dropped; trivially false rows mark the encoding unsat.
func (e *encoding) add(coefs map[int]int, atLeast int) {
	vars := make([]int, 0, len(coefs))
	for v, w := range coefs {
		if w != 0 {
			vars = append(vars, v)
		}
	}
	sort.Ints(vars)

	c := gophersat.PBConstr{AtLeast: atLeast}
	total := 0
	for _, v := range vars {
		w := coefs[v]
		lit := v
		if w < 0 {
			// w*x = w + |w|*(not x)
			c.AtLeast -= w
			w = -w
			lit = -v
		}
		c.Lits = append(c.Lits, lit)
		c.Weights = append(c.Weights, w)
		total += w
	}
	if c.AtLeast <= 0 {
		return
	}
	if total < c.AtLeast {
		e.unsat = true
		return
	}
	for _, v := range vars {
		e.used[v] = true
	}
	e.constrs = append(e.constrs, c)
}

func (e *encoding) solve(m *ilp.Model) (*Result, error) {
	if len(e.constrs) == 0 {
		// Every row was trivially true; all booleans false is optimal
		// for a non-negative objective.
		a := e.decode(m, nil)
		return &Result{Status: Optimal, Objective: m.Evaluate(a), Assignment: a}, nil
	}

	pb := gophersat.ParsePBConstrs(e.constrs)

	coefs, _, err := e.expand(m, m.Objective)
	if err != nil {
		return nil, &InvocationError{Backend: BackendPB, Err: fmt.Errorf("objective: %w", err)}
	}
	var lits []gophersat.Lit
	var weights []int
	vars := make([]int, 0, len(coefs))
	for v := range coefs {
		vars = append(vars, v)
	}
	sort.Ints(vars)
	for _, v := range vars {
		w := coefs[v]
		if w == 0 || !e.used[v] {
			continue
		}
		lit := gophersat.IntToLit(int32(v))
		if w < 0 {
			lit = lit.Negation()
			w = -w
		}
		lits = append(lits, lit)
		weights = append(weights, w)
	}

	if len(lits) > 0 {
		pb.SetCostFunc(lits, weights)
	}
	s := gophersat.New(pb)
	if len(lits) > 0 {
		if cost := s.Minimize(); cost < 0 {
			return &Result{Status: Infeasible}, nil
		}
	} else if s.Solve() != gophersat.Sat {
		return &Result{Status: Infeasible}, nil
	}

	a := e.decode(m, s.Model())
	return &Result{Status: Optimal, Objective: m.Evaluate(a), Assignment: a}, nil
}

// decode maps a boolean model back to ILP values. Booleans beyond the model
// (unused by any constraint) read as false.
func (e *encoding) decode(m *ilp.Model, model []bool) ilp.Assignment {
	val := func(v int) bool {
		return v-1 < len(model) && model[v-1]
	}
	a := make(ilp.Assignment, len(m.Vars))
	for _, v := range m.Vars {
		n := 0
		if v.Kind == ilp.Integer {
			n = v.Lower
		}
		for _, b := range e.bits[v.Name] {
			if val(b) {
				n++
			}
		}
		a[v.Name] = n
	}
	return a
}
