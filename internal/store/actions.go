package store

import "dbmlviewer/internal/diagram"

// Action is a named state transition.
type Action interface {
	apply(State) State
}

// Reduce applies a to s and returns the new state. s is not modified.
func Reduce(s State, a Action) State {
	return a.apply(s.Clone())
}

// SetText replaces the schema text and marks the diagram dirty.
type SetText struct{ Text string }

func (a SetText) apply(s State) State {
	s.Text = a.Text
	s.Dirty = true
	s.Revision++
	return s
}

type SetParseError struct{ Message string }

func (a SetParseError) apply(s State) State {
	s.ParseError = a.Message
	return s
}

type ClearParseError struct{}

func (ClearParseError) apply(s State) State {
	s.ParseError = ""
	return s
}

// SetGraph replaces nodes and edges together.
type SetGraph struct {
	Nodes []diagram.Node
	Edges []diagram.Edge
}

func (a SetGraph) apply(s State) State {
	s.Nodes = cloneNodes(a.Nodes)
	s.Edges = cloneEdges(a.Edges)
	return s
}

type SetNodes struct{ Nodes []diagram.Node }

func (a SetNodes) apply(s State) State {
	s.Nodes = cloneNodes(a.Nodes)
	return s
}

type SetEdges struct{ Edges []diagram.Edge }

func (a SetEdges) apply(s State) State {
	s.Edges = cloneEdges(a.Edges)
	return s
}

// SetViewport records pan/zoom. It does not mark the diagram dirty.
type SetViewport struct{ Viewport diagram.Viewport }

func (a SetViewport) apply(s State) State {
	s.Viewport = a.Viewport
	return s
}

// MoveNode moves one node. Intermediate drag updates (Dragging true) only
// move it; the release marks the diagram dirty. Unknown ids are ignored.
type MoveNode struct {
	ID       string
	Position diagram.Position
	Dragging bool
}

func (a MoveNode) apply(s State) State {
	for i := range s.Nodes {
		if s.Nodes[i].ID != a.ID {
			continue
		}
		s.Nodes[i].Position = a.Position
		if !a.Dragging {
			s.Dirty = true
			s.Revision++
		}
		break
	}
	return s
}

// SelectNode selects a node; an empty ID clears the selection.
type SelectNode struct{ ID string }

func (a SelectNode) apply(s State) State {
	s.SelectedNodeID = a.ID
	return s
}

type ToggleEditor struct{}

func (ToggleEditor) apply(s State) State {
	s.EditorCollapsed = !s.EditorCollapsed
	return s
}

type SetEditorCollapsed struct{ Collapsed bool }

func (a SetEditorCollapsed) apply(s State) State {
	s.EditorCollapsed = a.Collapsed
	return s
}

type SetDiagramID struct{ ID string }

func (a SetDiagramID) apply(s State) State {
	s.DiagramID = a.ID
	return s
}

type SetDirty struct{ Dirty bool }

func (a SetDirty) apply(s State) State {
	if a.Dirty && !s.Dirty {
		s.Revision++
	}
	s.Dirty = a.Dirty
	return s
}

// MarkSaved records a completed save of the state captured at Revision.
// Dirty is cleared only if nothing was edited since. A non-empty DiagramID
// is adopted either way.
type MarkSaved struct {
	Revision  uint64
	DiagramID string
}

func (a MarkSaved) apply(s State) State {
	if a.DiagramID != "" {
		s.DiagramID = a.DiagramID
	}
	if s.Revision == a.Revision {
		s.Dirty = false
	}
	return s
}

// Reset restores the initial state.
type Reset struct{}

func (Reset) apply(State) State {
	return Initial()
}

// Seed starts over from a loaded diagram: initial state plus its text and
// id, not dirty.
type Seed struct {
	Text      string
	DiagramID string
}

func (a Seed) apply(State) State {
	s := Initial()
	s.Text = a.Text
	s.DiagramID = a.DiagramID
	return s
}
