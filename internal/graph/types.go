package graph

import (
	"fmt"
	"strconv"
	"strings"
)

// OpType is the hardware operation a DFG node performs.
type OpType int

const (
	OpInvalid OpType = -1

	OpSource  OpType = 0
	OpAdder   OpType = 1
	OpShifter OpType = 2
	OpALU     OpType = 3
	OpMult    OpType = 4
	OpSink    OpType = 5
)

// ResourceTypes lists the schedulable operation types in canonical order.
// Positional cost vectors follow this order.
var ResourceTypes = []OpType{OpAdder, OpShifter, OpALU, OpMult}

var opNames = map[OpType]string{
	OpSource:  "source",
	OpAdder:   "adder",
	OpShifter: "shifter",
	OpALU:     "alu",
	OpMult:    "mult",
	OpSink:    "sink",
}

func (t OpType) String() string {
	if name, ok := opNames[t]; ok {
		return name
	}
	return fmt.Sprintf("optype(%d)", int(t))
}

// Valid reports whether t is one of the six recognized operation types.
func (t OpType) Valid() bool {
	return t >= OpSource && t <= OpSink
}

// IsResource reports whether nodes of this type occupy a functional unit.
func (t OpType) IsResource() bool {
	return t >= OpAdder && t <= OpMult
}

// ParseOpType accepts either a numeric code ("4") or a name ("mult").
func ParseOpType(s string) (OpType, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if n, err := strconv.Atoi(s); err == nil {
		t := OpType(n)
		if !t.Valid() {
			return OpInvalid, fmt.Errorf("unknown operation type code %d", n)
		}
		return t, nil
	}
	for t, name := range opNames {
		if name == s {
			return t, nil
		}
	}
	switch s {
	case "add":
		return OpAdder, nil
	case "shift":
		return OpShifter, nil
	case "mul", "multiplier":
		return OpMult, nil
	}
	return OpInvalid, fmt.Errorf("unknown operation type %q", s)
}

// CostTable maps an operation type to its intrinsic latency in time steps.
// A table is read-only once handed to a Loader.
type CostTable map[OpType]int

// DefaultCostTable returns a fresh copy of the reference cost table.
func DefaultCostTable() CostTable {
	return CostTable{
		OpSource:  0,
		OpAdder:   2,
		OpShifter: 2,
		OpALU:     3,
		OpMult:    5,
		OpSink:    0,
	}
}

// Cost returns the table cost for t.
func (c CostTable) Cost(t OpType) (int, bool) {
	v, ok := c[t]
	return v, ok
}

// Attr is the attribute payload carried for one endpoint of an edge record.
type Attr struct {
	Type    OpType
	Cost    int
	HasCost bool
}

// EdgeRecord is one raw line of an edge list, before validation.
type EdgeRecord struct {
	Src, Dst         string
	SrcAttr, DstAttr Attr
	Line             int // 1-based source line, 0 when not read from a file
}

// Node is a single operation in the data-flow graph.
type Node struct {
	ID    string
	Index int // first-seen position in the edge list
	Type  OpType
	Cost  int

	// Populated by the timing analyzer.
	ASAP int
	ALAP int
}

// Mobility is the scheduling slack ALAP - ASAP.
func (n *Node) Mobility() int {
	return n.ALAP - n.ASAP
}

// Edge is a precedence dependency: To cannot start before From completes.
type Edge struct {
	From string
	To   string
}

// Graph is a validated, acyclic data-flow graph with one source and one sink.
type Graph struct {
	Nodes  map[string]*Node
	Order  []string // node IDs in first-seen order
	Edges  []Edge   // in load order
	Adj    map[string][]string
	RevAdj map[string][]string
	Source string
	Sink   string

	// Annotated is set once ASAP/ALAP have been computed; Horizon is ALAP(Sink).
	Annotated bool
	Horizon   int
}
