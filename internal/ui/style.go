package ui

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/joshharrison/hlsched/internal/graph"
)

// Sprint color functions for building styled strings.
var (
	Bold        = color.New(color.Bold).SprintFunc()
	Dim         = color.New(color.Faint).SprintFunc()
	Cyan        = color.New(color.FgCyan).SprintFunc()
	Green       = color.New(color.FgGreen).SprintFunc()
	Red         = color.New(color.FgRed).SprintFunc()
	Yellow      = color.New(color.FgYellow).SprintFunc()
	Magenta     = color.New(color.FgMagenta).SprintFunc()
	BoldCyan    = color.New(color.Bold, color.FgCyan).SprintFunc()
	BoldGreen   = color.New(color.Bold, color.FgGreen).SprintFunc()
	BoldRed     = color.New(color.Bold, color.FgRed).SprintFunc()
	BoldYellow  = color.New(color.Bold, color.FgYellow).SprintFunc()
	BoldMagenta = color.New(color.Bold, color.FgMagenta).SprintFunc()
	BoldWhite   = color.New(color.Bold, color.FgWhite).SprintFunc()
)

// Critical is the marker placed next to zero-mobility nodes.
const Critical = "⚡"

// SetEnabled forces color output on or off, overriding terminal detection.
func SetEnabled(on bool) {
	color.NoColor = !on
}

// typeColors assigns each operation type a fixed color so the same unit
// kind reads the same way across tables and charts.
var typeColors = map[graph.OpType]func(a ...interface{}) string{
	graph.OpSource:  Dim,
	graph.OpAdder:   BoldCyan,
	graph.OpShifter: BoldGreen,
	graph.OpALU:     BoldYellow,
	graph.OpMult:    BoldMagenta,
	graph.OpSink:    Dim,
}

// TypeColor returns the color function for an operation type.
func TypeColor(t graph.OpType) func(a ...interface{}) string {
	if c, ok := typeColors[t]; ok {
		return c
	}
	return Red
}

// TypeName returns the colored name of an operation type.
func TypeName(t graph.OpType) string {
	return TypeColor(t)(t.String())
}

// NodeLabel returns a colored [id] label, tinted by the node's type.
func NodeLabel(id string, t graph.OpType) string {
	return Dim("[") + TypeColor(t)(id) + Dim("]")
}

// StatusIcon returns a colored icon for a solve or candidate status.
func StatusIcon(status string) string {
	switch status {
	case "optimal", "kept":
		return Green("✓")
	case "dominated":
		return Yellow("⊘")
	case "infeasible", "unbounded":
		return Red("✗")
	case "error":
		return BoldRed("!")
	default:
		return Dim("◌")
	}
}

// Mobility returns a colored slack value: critical nodes are highlighted.
func Mobility(m int) string {
	if m == 0 {
		return BoldYellow(Critical + " 0")
	}
	return Dim(fmt.Sprintf("%d", m))
}
