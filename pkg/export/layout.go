package export

import (
	"math"

	"github.com/coderef/coderef/pkg/graph"
)

// LayoutCircular is the only layout produced today. It places nodes
// equally spaced on a circle and stands in for a force-directed layout.
const LayoutCircular = "circular"

// Position is a 2D layout coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Visualization carries layout hints for graph viewers.
type Visualization struct {
	Layout    string              `json:"layout"`
	Radius    float64             `json:"radius"`
	Positions map[string]Position `json:"positions"`
}

// CircularLayout assigns positions in the order the nodes are given. The
// radius grows with the node count so neighbors stay apart.
func CircularLayout(nodes []graph.GraphNode) *Visualization {
	radius := math.Max(100, float64(len(nodes))*10)
	v := &Visualization{
		Layout:    LayoutCircular,
		Radius:    radius,
		Positions: make(map[string]Position, len(nodes)),
	}
	if len(nodes) == 0 {
		return v
	}
	step := 2 * math.Pi / float64(len(nodes))
	for i, n := range nodes {
		angle := float64(i) * step
		v.Positions[n.ID] = Position{
			X: round2(radius * math.Cos(angle)),
			Y: round2(radius * math.Sin(angle)),
		}
	}
	return v
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
