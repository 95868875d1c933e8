package graph

import (
	"fmt"
	"strings"
)

// MalformedGraphError reports an edge list that violates the attribute
// schema or the source/sink convention.
type MalformedGraphError struct {
	Line   int // 0 when the problem is not tied to a single record
	Reason string
}

func (e *MalformedGraphError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed graph: line %d: %s", e.Line, e.Reason)
	}
	return "malformed graph: " + e.Reason
}

func malformed(line int, reason string) error {
	return &MalformedGraphError{Line: line, Reason: reason}
}

// CycleError reports that no topological order exists.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	if len(e.Cycle) == 0 {
		return "dependency cycle detected"
	}
	return "dependency cycle detected: " + strings.Join(e.Cycle, " -> ")
}
