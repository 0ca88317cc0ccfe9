package diagram

import (
	"fmt"

	"dbmlviewer/internal/dbml"
	"dbmlviewer/internal/layout"
)

type LayoutOptions struct {
	Direction layout.Direction `json:"direction"`
	NodeSep   float64          `json:"nodeSep"`
	RankSep   float64          `json:"rankSep"`
	MarginX   float64          `json:"marginX"`
	MarginY   float64          `json:"marginY"`
}

func DefaultLayoutOptions() LayoutOptions {
	return LayoutOptions{
		Direction: layout.LeftRight,
		NodeSep:   80,
		RankSep:   150,
		MarginX:   50,
		MarginY:   50,
	}
}

const edgeSep = 10

// ComputeLayout returns the top-left position of every table, keyed by
// table identity. Refs whose tables are not in the set are ignored.
func ComputeLayout(tables []dbml.Table, refs []dbml.Ref, opts LayoutOptions) (map[string]Position, error) {
	g := &layout.Graph{
		Direction: opts.Direction,
		NodeSep:   opts.NodeSep,
		RankSep:   opts.RankSep,
		EdgeSep:   edgeSep,
		MarginX:   opts.MarginX,
		MarginY:   opts.MarginY,
	}
	if g.Direction == "" {
		g.Direction = layout.LeftRight
	}

	heights := make(map[string]float64, len(tables))
	for _, t := range tables {
		h := NodeHeight(len(t.Columns))
		heights[t.ID()] = h
		g.AddNode(t.ID(), NodeWidth, h)
	}
	for _, r := range refs {
		from, to := r.Endpoints[0].TableID(), r.Endpoints[1].TableID()
		_, okFrom := heights[from]
		_, okTo := heights[to]
		if okFrom && okTo {
			g.AddEdge(from, to)
		}
	}

	centers, err := g.Run()
	if err != nil {
		return nil, fmt.Errorf("compute layout: %w", err)
	}
	positions := make(map[string]Position, len(centers))
	for id, c := range centers {
		positions[id] = Position{X: c.X - NodeWidth/2, Y: c.Y - heights[id]/2}
	}
	return positions, nil
}

// ApplyPositions returns a copy of nodes with positions taken from the map.
// Nodes missing from the map keep their position.
func ApplyPositions(nodes []Node, positions map[string]Position) []Node {
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		if p, ok := positions[n.ID]; ok {
			n.Position = p
		}
		out[i] = n
	}
	return out
}

// RestorePositions overlays stored positions by node identity. It returns
// the updated copy and the ids, in node order, that had no stored position.
func RestorePositions(nodes []Node, stored map[string]Position) ([]Node, []string) {
	out := make([]Node, len(nodes))
	var missing []string
	for i, n := range nodes {
		if p, ok := stored[n.ID]; ok {
			n.Position = p
		} else {
			missing = append(missing, n.ID)
		}
		out[i] = n
	}
	return out, missing
}

// Positions collects the current position of every node.
func Positions(nodes []Node) map[string]Position {
	out := make(map[string]Position, len(nodes))
	for _, n := range nodes {
		out[n.ID] = n.Position
	}
	return out
}
