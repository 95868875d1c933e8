package graph

import (
	"fmt"
	"sort"
)

// Loader validates edge records into a Graph using an injected cost table.
type Loader struct {
	Costs CostTable
	// StrictCosts rejects records whose explicit cost disagrees with Costs.
	StrictCosts bool
}

// NewLoader creates a strict Loader. A nil table falls back to DefaultCostTable.
func NewLoader(costs CostTable) *Loader {
	if costs == nil {
		costs = DefaultCostTable()
	}
	return &Loader{Costs: costs, StrictCosts: true}
}

// Load builds a Graph from edge records. The first record's source anchors
// the graph Source and the last record's destination anchors the Sink.
// Records are not modified.
func (l *Loader) Load(records []EdgeRecord) (*Graph, error) {
	if len(records) == 0 {
		return nil, malformed(0, "edge list is empty")
	}

	g := &Graph{
		Nodes:  make(map[string]*Node),
		Adj:    make(map[string][]string),
		RevAdj: make(map[string][]string),
	}

	edgeSet := make(map[Edge]bool)
	for i := range records {
		rec := &records[i]
		line := rec.Line
		if line == 0 {
			line = i + 1
		}
		if rec.Src == "" || rec.Dst == "" {
			return nil, malformed(line, "edge is missing an endpoint id")
		}
		if err := l.addNode(g, rec.Src, rec.SrcAttr, line); err != nil {
			return nil, err
		}
		if err := l.addNode(g, rec.Dst, rec.DstAttr, line); err != nil {
			return nil, err
		}

		e := Edge{From: rec.Src, To: rec.Dst}
		if edgeSet[e] {
			return nil, malformed(line, fmt.Sprintf("duplicate edge %s -> %s", e.From, e.To))
		}
		edgeSet[e] = true
		g.Edges = append(g.Edges, e)
		g.Adj[e.From] = append(g.Adj[e.From], e.To)
		g.RevAdj[e.To] = append(g.RevAdj[e.To], e.From)
	}

	// Sort adjacency lists for deterministic ordering
	for k := range g.Adj {
		sort.Strings(g.Adj[k])
	}
	for k := range g.RevAdj {
		sort.Strings(g.RevAdj[k])
	}

	if cycle := g.DetectCycle(); cycle != nil {
		return nil, &CycleError{Cycle: cycle}
	}

	g.Source = records[0].Src
	g.Sink = records[len(records)-1].Dst
	if err := g.checkAnchors(); err != nil {
		return nil, err
	}
	if err := g.checkReachability(); err != nil {
		return nil, err
	}

	return g, nil
}

func (l *Loader) addNode(g *Graph, id string, attr Attr, line int) error {
	if !attr.Type.Valid() {
		return malformed(line, fmt.Sprintf("node %s has no recognized operation type", id))
	}

	tableCost, ok := l.Costs.Cost(attr.Type)
	if !ok {
		return malformed(line, fmt.Sprintf("cost table has no entry for %s", attr.Type))
	}
	cost := tableCost
	if attr.HasCost {
		if attr.Cost < 0 {
			return malformed(line, fmt.Sprintf("node %s has negative cost %d", id, attr.Cost))
		}
		if l.StrictCosts && attr.Cost != tableCost {
			return malformed(line, fmt.Sprintf("node %s: cost %d does not match %s cost %d", id, attr.Cost, attr.Type, tableCost))
		}
		cost = attr.Cost
	}

	if n, ok := g.Nodes[id]; ok {
		if n.Type != attr.Type {
			return malformed(line, fmt.Sprintf("node %s declared as both %s and %s", id, n.Type, attr.Type))
		}
		if n.Cost != cost {
			return malformed(line, fmt.Sprintf("node %s declared with costs %d and %d", id, n.Cost, cost))
		}
		return nil
	}

	g.Nodes[id] = &Node{ID: id, Index: len(g.Order), Type: attr.Type, Cost: cost}
	g.Order = append(g.Order, id)
	return nil
}

// checkAnchors enforces the single-Source / single-Sink convention.
func (g *Graph) checkAnchors() error {
	if t := g.Nodes[g.Source].Type; t != OpSource {
		return malformed(0, fmt.Sprintf("first edge must start at the source, %s is %s", g.Source, t))
	}
	if t := g.Nodes[g.Sink].Type; t != OpSink {
		return malformed(0, fmt.Sprintf("last edge must end at the sink, %s is %s", g.Sink, t))
	}

	for _, id := range g.Order {
		n := g.Nodes[id]
		if n.Type == OpSource && id != g.Source {
			return malformed(0, fmt.Sprintf("second source node %s (source is %s)", id, g.Source))
		}
		if n.Type == OpSink && id != g.Sink {
			return malformed(0, fmt.Sprintf("second sink node %s (sink is %s)", id, g.Sink))
		}
	}

	if len(g.RevAdj[g.Source]) > 0 {
		return malformed(0, fmt.Sprintf("source %s has incoming edges", g.Source))
	}
	if len(g.Adj[g.Sink]) > 0 {
		return malformed(0, fmt.Sprintf("sink %s has outgoing edges", g.Sink))
	}
	if len(g.Adj[g.Source]) == 0 {
		return malformed(0, "there are no children connected to the source")
	}
	if len(g.RevAdj[g.Sink]) == 0 {
		return malformed(0, "there are no parents connected to the sink")
	}
	return nil
}

// checkReachability requires every node to lie on some Source -> Sink path.
func (g *Graph) checkReachability() error {
	fromSource := g.reach(g.Source, g.Adj)
	toSink := g.reach(g.Sink, g.RevAdj)
	for _, id := range g.Order {
		if !fromSource[id] {
			return malformed(0, fmt.Sprintf("node %s is unreachable from source %s", id, g.Source))
		}
		if !toSink[id] {
			return malformed(0, fmt.Sprintf("node %s cannot reach sink %s", id, g.Sink))
		}
	}
	return nil
}

func (g *Graph) reach(start string, adj map[string][]string) map[string]bool {
	seen := map[string]bool{start: true}
	stack := []string{start}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range adj[node] {
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return seen
}

// DetectCycle returns the cycle path if one exists, or nil if the graph is acyclic.
// Uses DFS with coloring: white (unvisited), gray (in progress), black (done).
func (g *Graph) DetectCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[string]int)
	parent := make(map[string]string)

	var dfs func(node string) []string
	dfs = func(node string) []string {
		color[node] = gray
		for _, next := range g.Adj[node] {
			if color[next] == gray {
				cycle := []string{next, node}
				cur := node
				for cur != next {
					cur = parent[cur]
					cycle = append(cycle, cur)
				}
				for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
					cycle[i], cycle[j] = cycle[j], cycle[i]
				}
				return cycle
			}
			if color[next] == white {
				parent[next] = node
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
		}
		color[node] = black
		return nil
	}

	for _, id := range g.Order {
		if color[id] == white {
			if cycle := dfs(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// TopoOrder performs Kahn's algorithm, breaking ties by node ID.
func (g *Graph) TopoOrder() ([]string, error) {
	inDegree := make(map[string]int, len(g.Nodes))
	var queue []string
	for _, id := range g.Order {
		inDegree[id] = len(g.RevAdj[id])
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	order := make([]string, 0, len(g.Nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		var newReady []string
		for _, succ := range g.Adj[node] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				newReady = append(newReady, succ)
			}
		}
		sort.Strings(newReady)
		queue = append(queue, newReady...)
	}

	if len(order) != len(g.Nodes) {
		return nil, &CycleError{Cycle: g.DetectCycle()}
	}
	return order, nil
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.Nodes)
}

// NodesOfType returns the IDs of nodes with the given type, in first-seen order.
func (g *Graph) NodesOfType(t OpType) []string {
	var ids []string
	for _, id := range g.Order {
		if g.Nodes[id].Type == t {
			ids = append(ids, id)
		}
	}
	return ids
}

// ResourceTypesPresent returns the resource types used by at least one node,
// in canonical order.
func (g *Graph) ResourceTypesPresent() []OpType {
	var types []OpType
	for _, t := range ResourceTypes {
		if len(g.NodesOfType(t)) > 0 {
			types = append(types, t)
		}
	}
	return types
}

// Clone returns a deep copy. Timing annotations are copied as well, so a
// clone can be re-annotated without touching the original.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		Nodes:     make(map[string]*Node, len(g.Nodes)),
		Order:     append([]string(nil), g.Order...),
		Edges:     append([]Edge(nil), g.Edges...),
		Adj:       make(map[string][]string, len(g.Adj)),
		RevAdj:    make(map[string][]string, len(g.RevAdj)),
		Source:    g.Source,
		Sink:      g.Sink,
		Annotated: g.Annotated,
		Horizon:   g.Horizon,
	}
	for id, n := range g.Nodes {
		cp := *n
		c.Nodes[id] = &cp
	}
	for k, v := range g.Adj {
		c.Adj[k] = append([]string(nil), v...)
	}
	for k, v := range g.RevAdj {
		c.RevAdj[k] = append([]string(nil), v...)
	}
	return c
}
