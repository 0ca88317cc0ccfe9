// Package store holds the editor's diagram state. State changes only through
// actions applied by Reduce; Store adds locking, subscriptions and a
// mount/unmount lifecycle on top.
//
// The HTTP API reads snapshots only. Subscribe is for hosts that embed an
// editor and redraw on every change.
package store

import "dbmlviewer/internal/diagram"

type State struct {
	Text string
	// ParseError is the message of the last failed parse; empty when the
	// current text parsed.
	ParseError      string
	Nodes           []diagram.Node
	Edges           []diagram.Edge
	Viewport        diagram.Viewport
	SelectedNodeID  string
	EditorCollapsed bool
	// DiagramID is empty for a diagram that was never saved.
	DiagramID string
	Dirty     bool
	// Revision counts edits. A save records the revision it captured so a
	// later edit keeps the diagram dirty.
	Revision uint64
}

// Initial is the state of a freshly mounted editor.
func Initial() State {
	return State{Viewport: diagram.DefaultViewport()}
}

// Clone returns a deep copy.
func (s State) Clone() State {
	s.Nodes = cloneNodes(s.Nodes)
	s.Edges = cloneEdges(s.Edges)
	return s
}

func (s State) HasParseError() bool { return s.ParseError != "" }

// Node returns the node with the given id.
func (s State) Node(id string) (diagram.Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return diagram.Node{}, false
}

func cloneNodes(nodes []diagram.Node) []diagram.Node {
	if nodes == nil {
		return nil
	}
	out := make([]diagram.Node, len(nodes))
	for i, n := range nodes {
		n.Data.Columns = append([]diagram.ColumnData(nil), n.Data.Columns...)
		out[i] = n
	}
	return out
}

func cloneEdges(edges []diagram.Edge) []diagram.Edge {
	if edges == nil {
		return nil
	}
	out := make([]diagram.Edge, len(edges))
	for i, e := range edges {
		e.SourceColumns = append([]string(nil), e.SourceColumns...)
		e.TargetColumns = append([]string(nil), e.TargetColumns...)
		out[i] = e
	}
	return out
}
