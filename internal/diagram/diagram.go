// Package diagram turns a parsed schema into positioned table nodes and
// relation edges, and holds the canvas state that is persisted with a
// saved diagram.
package diagram

import (
	"fmt"
	"strings"

	"dbmlviewer/internal/dbml"
)

const (
	NodeWidth      = 280.0
	NodeBaseHeight = 60.0
	RowHeight      = 32.0

	NodeType = "table"
	EdgeType = "relation"
)

// NodeHeight is the rendered height of a table with the given column count.
func NodeHeight(columns int) float64 {
	return NodeBaseHeight + RowHeight*float64(columns)
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type ColumnData struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	PK        bool   `json:"pk"`
	Unique    bool   `json:"unique"`
	NotNull   bool   `json:"notNull"`
	Increment bool   `json:"increment"`
	Default   string `json:"default,omitempty"`
	Note      string `json:"note,omitempty"`
}

type TableData struct {
	Name        string       `json:"name"`
	Schema      string       `json:"schema,omitempty"`
	Alias       string       `json:"alias,omitempty"`
	Note        string       `json:"note,omitempty"`
	HeaderColor string       `json:"headerColor,omitempty"`
	Columns     []ColumnData `json:"columns"`
}

// Node is one table on the canvas. Position is the top-left corner.
type Node struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Position Position  `json:"position"`
	Width    float64   `json:"width"`
	Height   float64   `json:"height"`
	Data     TableData `json:"data"`
}

// Edge is one relationship. Source is the first endpoint of the ref.
type Edge struct {
	ID             string            `json:"id"`
	Type           string            `json:"type"`
	Source         string            `json:"source"`
	Target         string            `json:"target"`
	SourceHandle   string            `json:"sourceHandle"`
	TargetHandle   string            `json:"targetHandle"`
	SourceColumns  []string          `json:"sourceColumns"`
	TargetColumns  []string          `json:"targetColumns"`
	SourceRelation dbml.Relation     `json:"sourceRelation"`
	TargetRelation dbml.Relation     `json:"targetRelation"`
	Cardinality    dbml.RelationKind `json:"cardinality"`
	Label          string            `json:"label"`
	Name           string            `json:"name,omitempty"`
	OnDelete       string            `json:"onDelete,omitempty"`
	OnUpdate       string            `json:"onUpdate,omitempty"`
}

// Nodes builds one node per table in document order. Positions are zero.
func Nodes(s *dbml.Schema) []Node {
	nodes := make([]Node, 0, len(s.Tables))
	for _, t := range s.Tables {
		data := TableData{
			Name:        t.Name,
			Schema:      t.Schema,
			Alias:       t.Alias,
			Note:        t.Note,
			HeaderColor: t.HeaderColor,
			Columns:     make([]ColumnData, len(t.Columns)),
		}
		for i, c := range t.Columns {
			cd := ColumnData{
				Name:      c.Name,
				Type:      c.Type,
				PK:        c.PK,
				Unique:    c.Unique,
				NotNull:   c.NotNull,
				Increment: c.Increment,
				Note:      c.Note,
			}
			if c.Default != nil {
				cd.Default = c.Default.Value
			}
			data.Columns[i] = cd
		}
		nodes = append(nodes, Node{
			ID:     t.ID(),
			Type:   NodeType,
			Width:  NodeWidth,
			Height: NodeHeight(len(t.Columns)),
			Data:   data,
		})
	}
	return nodes
}

// EdgeID derives the identity of a ref from its endpoints.
func EdgeID(r dbml.Ref) string {
	a, b := r.Endpoints[0], r.Endpoints[1]
	return fmt.Sprintf("%s-%s-%s-%s", a.TableID(), strings.Join(a.Columns, ","), b.TableID(), strings.Join(b.Columns, ","))
}

// Edges builds one edge per ref. When two refs share endpoints the later
// one gets ":<name>" if named, or "~<n>" otherwise.
func Edges(s *dbml.Schema) []Edge {
	edges := make([]Edge, 0, len(s.Refs))
	seen := map[string]bool{}
	for _, r := range s.Refs {
		a, b := r.Endpoints[0], r.Endpoints[1]
		id := EdgeID(r)
		if seen[id] {
			base := id
			id = ""
			if r.Name != "" && !seen[base+":"+r.Name] {
				id = base + ":" + r.Name
			}
			for n := 2; id == ""; n++ {
				if candidate := fmt.Sprintf("%s~%d", base, n); !seen[candidate] {
					id = candidate
				}
			}
		}
		seen[id] = true

		kind := r.Kind()
		edges = append(edges, Edge{
			ID:             id,
			Type:           EdgeType,
			Source:         a.TableID(),
			Target:         b.TableID(),
			SourceHandle:   handle(a.Columns, "source"),
			TargetHandle:   handle(b.Columns, "target"),
			SourceColumns:  append([]string(nil), a.Columns...),
			TargetColumns:  append([]string(nil), b.Columns...),
			SourceRelation: a.Relation,
			TargetRelation: b.Relation,
			Cardinality:    kind,
			Label:          kind.Label(),
			Name:           r.Name,
			OnDelete:       r.OnDelete,
			OnUpdate:       r.OnUpdate,
		})
	}
	return edges
}

func handle(cols []string, side string) string {
	if len(cols) == 0 {
		return ""
	}
	return cols[0] + "-" + side
}

// Build converts a schema into laid out nodes and edges.
func Build(s *dbml.Schema, opts LayoutOptions) ([]Node, []Edge, error) {
	nodes := Nodes(s)
	edges := Edges(s)
	positions, err := ComputeLayout(s.Tables, s.Refs, opts)
	if err != nil {
		return nil, nil, err
	}
	return ApplyPositions(nodes, positions), edges, nil
}
