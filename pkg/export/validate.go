package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/coderef/coderef/pkg/graph"
)

// ValidateExport re-parses an exported document and checks its shape. It
// returns every violation found; an empty list means the document is valid.
func ValidateExport(data []byte) []string {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return []string{fmt.Sprintf("not a JSON object: %v", err)}
	}

	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if v, ok := doc["version"].(string); !ok || v == "" {
		add("version: missing or not a string")
	}
	if ts, ok := doc["exportedAt"].(string); !ok {
		add("exportedAt: missing or not a string")
	} else if _, err := time.Parse(time.RFC3339, ts); err != nil {
		add("exportedAt: not an RFC 3339 timestamp")
	}

	if nodes, ok := doc["nodes"].([]any); !ok {
		add("nodes: missing or not an array")
	} else {
		for i, raw := range nodes {
			n, ok := raw.(map[string]any)
			if !ok {
				add("nodes[%d]: not an object", i)
				continue
			}
			if id, _ := n["id"].(string); id == "" {
				add("nodes[%d].id: missing", i)
			}
			if typ, _ := n["type"].(string); typ == "" {
				add("nodes[%d].type: missing", i)
			}
		}
	}

	if edges, ok := doc["edges"].([]any); !ok {
		add("edges: missing or not an array")
	} else {
		for i, raw := range edges {
			e, ok := raw.(map[string]any)
			if !ok {
				add("edges[%d]: not an object", i)
				continue
			}
			for _, field := range []string{"source", "target"} {
				if s, _ := e[field].(string); s == "" {
					add("edges[%d].%s: missing", i, field)
				}
			}
			if typ, _ := e["type"].(string); !knownEdgeType(typ) {
				add("edges[%d].type: unknown edge type %q", i, typ)
			}
		}
	}

	if _, ok := doc["statistics"].(map[string]any); !ok {
		add("statistics: missing or not an object")
	}

	if raw, present := doc["visualization"]; present && raw != nil {
		vis, ok := raw.(map[string]any)
		if !ok {
			add("visualization: not an object")
		} else if _, ok := vis["positions"].(map[string]any); !ok {
			add("visualization.positions: missing or not an object")
		}
	}

	return problems
}

func knownEdgeType(t string) bool {
	for _, et := range graph.EdgeTypes {
		if string(et) == t {
			return true
		}
	}
	return false
}
