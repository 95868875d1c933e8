package solver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshharrison/hlsched/internal/graph"
	"github.com/joshharrison/hlsched/internal/ilp"
	"github.com/joshharrison/hlsched/internal/timing"
)

func rec(src string, st graph.OpType, dst string, dt graph.OpType) graph.EdgeRecord {
	return graph.EdgeRecord{Src: src, Dst: dst, SrcAttr: graph.Attr{Type: st}, DstAttr: graph.Attr{Type: dt}}
}

func twoAdders(t *testing.T, horizon int) *graph.Graph {
	t.Helper()
	g, err := graph.NewLoader(nil).Load([]graph.EdgeRecord{
		rec("s", graph.OpSource, "a1", graph.OpAdder),
		rec("s", graph.OpSource, "a2", graph.OpAdder),
		rec("a1", graph.OpAdder, "m", graph.OpMult),
		rec("a2", graph.OpAdder, "m", graph.OpMult),
		rec("m", graph.OpMult, "t", graph.OpSink),
	})
	require.NoError(t, err)
	_, err = timing.ComputeBounds(g, horizon)
	require.NoError(t, err)
	return g
}

func build(t *testing.T, g *graph.Graph, req ilp.Request) *ilp.Model {
	t.Helper()
	m, err := ilp.Build(g, req)
	require.NoError(t, err)
	return m
}

const optimalReport = `Problem:    
Rows:       14
Columns:    12 (12 integer, 11 binary)
Non-zeros:  40
Status:     INTEGER OPTIMAL
Objective:  obj = 9 (MINimum)

   No.   Row name        Activity     Lower bound   Upper bound
------ ------------    ------------- ------------- -------------
     1 u_0                          1             1             =
     2 u_1                          1             1             =

   No. Column name       Activity     Lower bound   Upper bound
------ ------------    ------------- ------------- -------------
     1 x_0_0        *              1             0             1
     2 x_1_0        *              1             0             1
     3 x_2_2        *              1             0             1
     4 x_2_1        *              0             0             1
     5 a_very_long_column_name_that_wraps
                    *              3             0             5
     6 L            *              9             7             9

Integer feasibility conditions:

KKT.PE: max.abs.err = 0.00e+00 on row 0

End of output
`

func TestParseReport_Optimal(t *testing.T) {
	rep, err := ParseReport(strings.NewReader(optimalReport))
	require.NoError(t, err)

	assert.Equal(t, "INTEGER OPTIMAL", rep.Status)
	assert.Equal(t, 9, rep.Objective)
	assert.Equal(t, map[string]int{
		"x_0_0": 1, "x_1_0": 1, "x_2_2": 1, "x_2_1": 0,
		"a_very_long_column_name_that_wraps": 3,
		"L":                                  9,
	}, rep.Columns)

	res, err := rep.result("")
	require.NoError(t, err)
	assert.Equal(t, Optimal, res.Status)
	assert.Equal(t, 9, res.Assignment["L"])
}

func TestParseReport_Statuses(t *testing.T) {
	tests := []struct {
		status  string
		stdout  string
		want    Status
		wantErr bool
	}{
		{"INTEGER EMPTY", "", Infeasible, false},
		{"INTEGER UNDEFINED", "PROBLEM HAS NO PRIMAL FEASIBLE SOLUTION", Infeasible, false},
		{"INTEGER UNDEFINED", "PROBLEM HAS UNBOUNDED SOLUTION", Unbounded, false},
		{"INTEGER NON-OPTIMAL", "", Error, true},
		{"SOMETHING ELSE", "", Error, true},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			text := "Status:     " + tt.status + "\nObjective:  obj = 0 (MINimum)\n"
			rep, err := ParseReport(strings.NewReader(text))
			require.NoError(t, err)

			res, err := rep.result(tt.stdout)
			assert.Equal(t, tt.want, res.Status)
			if tt.wantErr {
				var inv *InvocationError
				assert.True(t, errors.As(err, &inv), "expected InvocationError, got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseReport_NoStatus(t *testing.T) {
	_, err := ParseReport(strings.NewReader("garbage\n"))
	assert.ErrorIs(t, err, errNoStatus)
}

func TestGLPK_MissingBinary(t *testing.T) {
	s := NewGLPK(filepath.Join(t.TempDir(), "no-such-glpsol"), t.TempDir(), false)
	m := build(t, twoAdders(t, 7), ilp.Request{Mode: ilp.MRLC})

	_, err := s.Solve(context.Background(), m)
	var inv *InvocationError
	require.True(t, errors.As(err, &inv), "expected InvocationError, got %v", err)
}

func TestGLPK_FakeBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in for glpsol")
	}
	dir := t.TempDir()
	report := filepath.Join(dir, "report.txt")
	require.NoError(t, os.WriteFile(report, []byte(optimalReport), 0o644))

	// glpsol --cpxlp <model> -o <out>
	script := "#!/bin/sh\ntest -s \"$2\" || exit 3\ncp " + report + " \"$4\"\n"
	bin := filepath.Join(dir, "glpsol")
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))

	work := t.TempDir()
	s := NewGLPK(bin, work, false)
	m := build(t, twoAdders(t, 9), ilp.Request{Mode: ilp.MLRC, Budget: ilp.Budget{graph.OpAdder: 1}})

	res, err := s.Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, Optimal, res.Status)
	assert.Equal(t, 9, res.Objective)

	left, err := os.ReadDir(work)
	require.NoError(t, err)
	assert.Empty(t, left, "model and report files should be removed")
}

func TestPB_MLRC(t *testing.T) {
	g := twoAdders(t, 9)
	m := build(t, g, ilp.Request{Mode: ilp.MLRC, Budget: ilp.Budget{graph.OpAdder: 1, graph.OpMult: 1}, TieBreak: true})

	res, err := NewPB().Solve(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, Optimal, res.Status)

	assert.Empty(t, m.Violations(res.Assignment))
	assert.Equal(t, 9, m.PrimaryValue(res.Assignment))
	assert.Equal(t, m.Evaluate(res.Assignment), res.Objective)
}

func TestPB_MRLC(t *testing.T) {
	tests := []struct {
		horizon int
		area    int
	}{
		{7, 3}, // both adders in parallel
		{9, 2}, // adders can share one unit
	}
	for _, tt := range tests {
		g := twoAdders(t, tt.horizon)
		m := build(t, g, ilp.Request{Mode: ilp.MRLC, TieBreak: true})

		res, err := NewPB().Solve(context.Background(), m)
		require.NoError(t, err)
		require.Equal(t, Optimal, res.Status)
		assert.Empty(t, m.Violations(res.Assignment))
		assert.Equal(t, tt.area, m.PrimaryValue(res.Assignment), "horizon %d", tt.horizon)
	}
}

func TestPB_Infeasible(t *testing.T) {
	// One adder cannot finish both additions and the multiply in 7 steps.
	g := twoAdders(t, 7)
	m := build(t, g, ilp.Request{Mode: ilp.MLRC, Budget: ilp.Budget{graph.OpAdder: 1}})

	res, err := NewPB().Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, Infeasible, res.Status)
	assert.Nil(t, res.Assignment)
}

func TestPB_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := build(t, twoAdders(t, 9), ilp.Request{Mode: ilp.MRLC})
	_, err := NewPB().Solve(ctx, m)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew(t *testing.T) {
	s, err := New(Options{})
	require.NoError(t, err)
	assert.Equal(t, BackendPB, s.Name())

	s, err = New(Options{Backend: BackendGLPK})
	require.NoError(t, err)
	assert.Equal(t, BackendGLPK, s.Name())
	assert.Equal(t, "glpsol", s.(*GLPK).Bin)

	_, err = New(Options{Backend: "cplex"})
	assert.Error(t, err)
}
