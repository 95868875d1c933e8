package solver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joshharrison/hlsched/internal/ilp"
	"github.com/joshharrison/hlsched/internal/logging"
)

// GLPK wraps the glpsol binary. Each solve writes the model as a CPLEX LP
// file and reads back the plain-text solution report.
type GLPK struct {
	Bin       string // path to glpsol (default: "glpsol")
	WorkDir   string // where model and report files go (default: os temp dir)
	KeepFiles bool   // leave the .lp and .out files behind
}

// NewGLPK creates a GLPK backend.
func NewGLPK(bin, workDir string, keep bool) *GLPK {
	if bin == "" {
		bin = "glpsol"
	}
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &GLPK{Bin: bin, WorkDir: workDir, KeepFiles: keep}
}

func (s *GLPK) Name() string { return BackendGLPK }

func (s *GLPK) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, s.Bin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return out, &InvocationError{Backend: s.Bin, Err: fmt.Errorf("glpsol %s: %w", strings.Join(args, " "), err), Output: string(out)}
	}
	return out, nil
}

// Solve writes m, runs glpsol and parses its report.
func (s *GLPK) Solve(ctx context.Context, m *ilp.Model) (*Result, error) {
	log := logging.FromContext(ctx)

	base := filepath.Join(s.WorkDir, fmt.Sprintf("hlsched-%s-%s", m.Mode, uuid.NewString()))
	lpPath, outPath := base+".lp", base+".out"

	if err := writeModelFile(lpPath, m); err != nil {
		return nil, &InvocationError{Backend: s.Bin, Err: err}
	}
	if !s.KeepFiles {
		defer os.Remove(lpPath)
		defer os.Remove(outPath)
	}

	start := time.Now()
	stdout, err := s.run(ctx, "--cpxlp", lpPath, "-o", outPath)
	if err != nil {
		return nil, err
	}
	log.Debug("glpsol finished",
		zap.String("model", lpPath),
		zap.Duration("elapsed", time.Since(start)))

	f, err := os.Open(outPath)
	if err != nil {
		return nil, &InvocationError{Backend: s.Bin, Err: fmt.Errorf("open report: %w", err), Output: string(stdout)}
	}
	defer f.Close()

	rep, err := ParseReport(f)
	if err != nil {
		return nil, &InvocationError{Backend: s.Bin, Err: err, Output: string(stdout)}
	}
	return rep.result(string(stdout))
}

func writeModelFile(path string, m *ilp.Model) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create model file: %w", err)
	}
	if err := ilp.WriteLP(f, m); err != nil {
		f.Close()
		return fmt.Errorf("write model file: %w", err)
	}
	return f.Close()
}

// Report is the subset of a glpsol --output report the adapter uses.
type Report struct {
	Status    string // e.g. "INTEGER OPTIMAL"
	Objective int
	Columns   map[string]int
}

var errNoStatus = errors.New("glpsol report has no Status line")

// ParseReport reads a glpsol plain-text solution report.
func ParseReport(r io.Reader) (*Report, error) {
	return parseReport(bufio.NewScanner(r))
}

func parseReport(sc *bufio.Scanner) (*Report, error) {
	rep := &Report{Columns: make(map[string]int)}
	inColumns := false
	pending := "" // column name wrapped onto its own line

	for sc.Scan() {
		line := sc.Text()
		fields := strings.Fields(line)

		switch {
		case strings.HasPrefix(line, "Status:"):
			rep.Status = strings.TrimSpace(strings.TrimPrefix(line, "Status:"))
			continue
		case strings.HasPrefix(line, "Objective:"):
			// Objective:  obj = 7 (MINimum)
			if i := strings.Index(line, "="); i >= 0 {
				if v := strings.Fields(line[i+1:]); len(v) > 0 {
					obj, err := parseNumber(v[0])
					if err != nil {
						return nil, fmt.Errorf("parse objective %q: %w", line, err)
					}
					rep.Objective = obj
				}
			}
			continue
		case strings.Contains(line, "Column name"):
			inColumns = true
			continue
		}

		if !inColumns {
			continue
		}
		if len(fields) == 0 {
			if len(rep.Columns) > 0 {
				inColumns = false
			}
			continue
		}
		if strings.HasPrefix(fields[0], "---") {
			continue
		}

		if pending != "" {
			// continuation line: [*] activity [lb] [ub]
			if fields[0] == "*" {
				fields = fields[1:]
			}
			if len(fields) > 0 {
				v, err := parseNumber(fields[0])
				if err != nil {
					return nil, fmt.Errorf("parse activity of %s: %w", pending, err)
				}
				rep.Columns[pending] = v
			}
			pending = ""
			continue
		}

		if _, err := strconv.Atoi(fields[0]); err != nil || len(fields) < 2 {
			continue
		}
		name := fields[1]
		rest := fields[2:]
		if len(rest) == 0 {
			pending = name
			continue
		}
		if rest[0] == "*" {
			rest = rest[1:]
		}
		if len(rest) == 0 {
			pending = name
			continue
		}
		v, err := parseNumber(rest[0])
		if err != nil {
			return nil, fmt.Errorf("parse activity of %s: %w", name, err)
		}
		rep.Columns[name] = v
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read glpsol report: %w", err)
	}
	if rep.Status == "" {
		return nil, errNoStatus
	}
	return rep, nil
}

// parseNumber accepts integers and integral floats such as "7" or "1e+00".
func parseNumber(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 {
		return int(f - 0.5), nil
	}
	return int(f + 0.5), nil
}

func (rep *Report) result(stdout string) (*Result, error) {
	switch {
	case strings.Contains(rep.Status, "NON-OPTIMAL"):
		return &Result{Status: Error}, &InvocationError{Backend: BackendGLPK, Err: fmt.Errorf("solver stopped early: %s", rep.Status), Output: stdout}
	case strings.Contains(rep.Status, "OPTIMAL"):
		return &Result{Status: Optimal, Objective: rep.Objective, Assignment: ilp.Assignment(rep.Columns)}, nil
	case strings.Contains(rep.Status, "EMPTY"), strings.Contains(rep.Status, "INFEASIBLE"):
		return &Result{Status: Infeasible}, nil
	case strings.Contains(rep.Status, "UNBOUNDED"):
		return &Result{Status: Unbounded}, nil
	case strings.Contains(rep.Status, "UNDEFINED"):
		if strings.Contains(strings.ToUpper(stdout), "UNBOUNDED") {
			return &Result{Status: Unbounded}, nil
		}
		return &Result{Status: Infeasible}, nil
	}
	return &Result{Status: Error}, &InvocationError{Backend: BackendGLPK, Err: fmt.Errorf("unrecognized status %q", rep.Status), Output: stdout}
}
