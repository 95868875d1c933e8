// Package edgelist reads and writes data-flow graphs in the networkx
// edge-list text format:
//
//	s v1 {'root': 0, 'child': 3, 'root_cost': 0, 'child_cost': 3}
//
// root/child carry the operation type code (or name) of the source and
// destination node, root_cost/child_cost their intrinsic cost.
package edgelist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/joshharrison/hlsched/internal/graph"
)

// Attribute keys used in the edge data dictionary.
const (
	KeyRoot      = "root"
	KeyChild     = "child"
	KeyRootCost  = "root_cost"
	KeyChildCost = "child_cost"
)

// ReadFile reads edge records from the file at path.
func ReadFile(path string) ([]graph.EdgeRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open edge list: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses edge records. Blank lines and lines starting with '#' are skipped.
// Structural validation is left to graph.Loader; Read only reports lines it
// cannot tokenize.
func Read(r io.Reader) ([]graph.EdgeRecord, error) {
	var records []graph.EdgeRecord
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rec, err := parseLine(line, lineNo)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read edge list: %w", err)
	}
	return records, nil
}

func parseLine(line string, lineNo int) (graph.EdgeRecord, error) {
	rec := graph.EdgeRecord{Line: lineNo}

	data := ""
	if idx := strings.Index(line, "{"); idx >= 0 {
		data = line[idx:]
		line = line[:idx]
	}
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return rec, &graph.MalformedGraphError{Line: lineNo, Reason: fmt.Sprintf("expected 'src dst {attrs}', got %d ids", len(fields))}
	}
	rec.Src, rec.Dst = fields[0], fields[1]

	rec.SrcAttr = graph.Attr{Type: graph.OpInvalid}
	rec.DstAttr = graph.Attr{Type: graph.OpInvalid}
	if data == "" {
		return rec, nil
	}

	js := toJSON(data)
	if !gjson.Valid(js) {
		return rec, &graph.MalformedGraphError{Line: lineNo, Reason: fmt.Sprintf("attribute dict is not parseable: %s", data)}
	}

	var err error
	if rec.SrcAttr, err = parseAttr(js, KeyRoot, KeyRootCost); err != nil {
		return rec, &graph.MalformedGraphError{Line: lineNo, Reason: err.Error()}
	}
	if rec.DstAttr, err = parseAttr(js, KeyChild, KeyChildCost); err != nil {
		return rec, &graph.MalformedGraphError{Line: lineNo, Reason: err.Error()}
	}
	return rec, nil
}

// parseAttr extracts one endpoint's attributes. A missing type key yields
// OpInvalid so the loader reports it against the schema.
func parseAttr(js, typeKey, costKey string) (graph.Attr, error) {
	a := graph.Attr{Type: graph.OpInvalid}

	typ := gjson.Get(js, typeKey)
	switch typ.Type {
	case gjson.Null:
		// missing or None
	case gjson.Number:
		a.Type = graph.OpType(typ.Int())
	case gjson.String:
		t, err := graph.ParseOpType(typ.String())
		if err != nil {
			return a, fmt.Errorf("%s: %w", typeKey, err)
		}
		a.Type = t
	default:
		return a, fmt.Errorf("%s: unsupported value %s", typeKey, typ.Raw)
	}

	cost := gjson.Get(js, costKey)
	switch cost.Type {
	case gjson.Null:
	case gjson.Number:
		a.Cost = int(cost.Int())
		a.HasCost = true
	default:
		return a, fmt.Errorf("%s: expected an integer, got %s", costKey, cost.Raw)
	}
	return a, nil
}

// toJSON rewrites a Python dict literal into JSON.
func toJSON(data string) string {
	r := strings.NewReplacer("'", `"`, "None", "null", "True", "true", "False", "false")
	return r.Replace(data)
}

// Write serializes g's edges in load order. Node costs are always written.
func Write(w io.Writer, g *graph.Graph) error {
	records := make([]graph.EdgeRecord, 0, len(g.Edges))
	for _, e := range g.Edges {
		src, dst := g.Nodes[e.From], g.Nodes[e.To]
		records = append(records, graph.EdgeRecord{
			Src:     e.From,
			Dst:     e.To,
			SrcAttr: graph.Attr{Type: src.Type, Cost: src.Cost, HasCost: true},
			DstAttr: graph.Attr{Type: dst.Type, Cost: dst.Cost, HasCost: true},
		})
	}
	return WriteRecords(w, records)
}

// WriteRecords serializes raw edge records. Missing costs are omitted.
func WriteRecords(w io.Writer, records []graph.EdgeRecord) error {
	bw := bufio.NewWriter(w)
	for _, rec := range records {
		attrs := []string{
			fmt.Sprintf("'%s': %d", KeyRoot, int(rec.SrcAttr.Type)),
			fmt.Sprintf("'%s': %d", KeyChild, int(rec.DstAttr.Type)),
		}
		if rec.SrcAttr.HasCost {
			attrs = append(attrs, fmt.Sprintf("'%s': %d", KeyRootCost, rec.SrcAttr.Cost))
		}
		if rec.DstAttr.HasCost {
			attrs = append(attrs, fmt.Sprintf("'%s': %d", KeyChildCost, rec.DstAttr.Cost))
		}
		if _, err := fmt.Fprintf(bw, "%s %s {%s}\n", rec.Src, rec.Dst, strings.Join(attrs, ", ")); err != nil {
			return err
		}
	}
	return bw.Flush()
}
