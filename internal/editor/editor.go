// Package editor connects schema text, the diagram store and persistence.
// Every text change re-parses; the first successful parse after Mount
// restores a stored layout and viewport, later parses lay out from scratch.
//
// The API server mounts short-lived editors without a Saver for parse and
// export. Save, QuickSave and HandleKey serve long-lived hosts that keep an
// editor open, with services.DiagramSaver as the Saver.
package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"dbmlviewer/internal/dbml"
	"dbmlviewer/internal/diagram"
	"dbmlviewer/internal/export"
	"dbmlviewer/internal/sqlddl"
	"dbmlviewer/internal/store"
)

type Phase int

const (
	Empty Phase = iota
	Parsing
	Valid
	Invalid
)

func (p Phase) String() string {
	switch p {
	case Empty:
		return "empty"
	case Parsing:
		return "parsing"
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

type Options struct {
	// Canvas size used to fit the first layout into view.
	CanvasWidth  float64
	CanvasHeight float64
	FitPadding   float64
	Layout       diagram.LayoutOptions
}

func DefaultOptions() Options {
	return Options{
		CanvasWidth:  1200,
		CanvasHeight: 800,
		FitPadding:   diagram.DefaultFitPadding,
		Layout:       diagram.DefaultLayoutOptions(),
	}
}

// Initial is what an editor is mounted with.
type Initial struct {
	Text        string
	CanvasState *diagram.CanvasState
	DiagramID   string
	Name        string
	Description string
}

var ErrNotMounted = errors.New("editor not mounted")

type Editor struct {
	store *store.Store
	saver Saver
	opts  Options

	mu              sync.Mutex
	mounted         bool
	ctx             context.Context
	cancel          context.CancelFunc
	phase           Phase
	pending         *diagram.CanvasState
	viewportApplied bool
	name            string
	description     string

	// generation changes on every Mount and Unmount. Saves started under an
	// older generation never touch the current store or metadata.
	generation uint64
	saving     bool
}

// New returns an unmounted editor. saver may be nil for an editor that
// never persists.
func New(st *store.Store, saver Saver, opts Options) *Editor {
	if opts.CanvasWidth <= 0 || opts.CanvasHeight <= 0 {
		d := DefaultOptions()
		opts.CanvasWidth, opts.CanvasHeight = d.CanvasWidth, d.CanvasHeight
	}
	if opts.Layout == (diagram.LayoutOptions{}) {
		opts.Layout = diagram.DefaultLayoutOptions()
	}
	return &Editor{store: st, saver: saver, opts: opts}
}

// Mount seeds the store and parses the initial text. Remounting starts over.
func (e *Editor) Mount(init Initial) error {
	e.Unmount()

	e.mu.Lock()
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.mounted = true
	e.generation++
	e.saving = false
	e.pending = init.CanvasState
	e.viewportApplied = false
	e.name = init.Name
	e.description = init.Description
	e.phase = Empty
	e.mu.Unlock()

	if err := e.store.Init(store.Seed{Text: init.Text, DiagramID: init.DiagramID}); err != nil {
		return err
	}
	return e.reparse(init.Text)
}

// Unmount cancels in-flight shortcut saves and resets the store.
func (e *Editor) Unmount() {
	e.mu.Lock()
	if !e.mounted {
		e.mu.Unlock()
		return
	}
	e.mounted = false
	e.generation++
	e.saving = false
	e.cancel()
	e.pending = nil
	e.viewportApplied = false
	e.phase = Empty
	e.mu.Unlock()

	_ = e.store.Reset()
}

func (e *Editor) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// ViewportApplied reports whether the one-time initial viewport has been set
// since Mount.
func (e *Editor) ViewportApplied() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewportApplied
}

func (e *Editor) State() store.State { return e.store.Snapshot() }

func (e *Editor) checkMounted() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.mounted {
		return ErrNotMounted
	}
	return nil
}

// SetText replaces the schema text, marks the diagram dirty and re-parses.
// A parse failure is recorded in the store, not returned.
func (e *Editor) SetText(text string) error {
	if err := e.checkMounted(); err != nil {
		return err
	}
	if err := e.store.Dispatch(store.SetText{Text: text}); err != nil {
		return err
	}
	return e.reparse(text)
}

func (e *Editor) setPhase(p Phase) {
	e.mu.Lock()
	e.phase = p
	e.mu.Unlock()
}

func (e *Editor) reparse(text string) error {
	if strings.TrimSpace(text) == "" {
		e.setPhase(Empty)
		return e.store.Dispatch(store.ClearParseError{}, store.SetGraph{})
	}

	e.setPhase(Parsing)
	s, err := dbml.Parse(text)
	if err != nil {
		e.setPhase(Invalid)
		return e.store.Dispatch(store.SetParseError{Message: err.Error()})
	}

	nodes := diagram.Nodes(s)
	edges := diagram.Edges(s)

	e.mu.Lock()
	var pending *diagram.CanvasState
	if len(nodes) > 0 {
		pending = e.pending
		e.pending = nil
	}
	fitNow := !e.viewportApplied && len(nodes) > 0
	e.mu.Unlock()

	nodes, err = e.place(s, nodes, pending)
	if err != nil {
		e.setPhase(Invalid)
		return e.store.Dispatch(store.SetParseError{Message: err.Error()})
	}

	actions := []store.Action{store.ClearParseError{}, store.SetGraph{Nodes: nodes, Edges: edges}}
	if fitNow {
		vp := diagram.FitView(nodes, e.opts.CanvasWidth, e.opts.CanvasHeight, e.opts.FitPadding, diagram.MinZoom, diagram.MaxZoom)
		if pending != nil {
			vp = pending.Viewport
		}
		actions = append(actions, store.SetViewport{Viewport: vp})
	}
	if err := e.store.Dispatch(actions...); err != nil {
		return err
	}

	e.mu.Lock()
	if fitNow {
		e.viewportApplied = true
	}
	e.phase = Valid
	e.mu.Unlock()
	return nil
}

// place positions freshly built nodes. Stored positions win for the tables
// they name; everything else comes from the automatic layout.
func (e *Editor) place(s *dbml.Schema, nodes []diagram.Node, stored *diagram.CanvasState) ([]diagram.Node, error) {
	var missing []string
	if stored != nil && len(stored.NodePositions) > 0 {
		nodes, missing = diagram.RestorePositions(nodes, stored.NodePositions)
		if len(missing) == 0 {
			return nodes, nil
		}
	}
	positions, err := diagram.ComputeLayout(s.Tables, s.Refs, e.opts.Layout)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	if stored == nil || len(stored.NodePositions) == 0 {
		return diagram.ApplyPositions(nodes, positions), nil
	}
	fill := make(map[string]diagram.Position, len(missing))
	for _, id := range missing {
		fill[id] = positions[id]
	}
	return diagram.ApplyPositions(nodes, fill), nil
}

// MoveNode moves a table. Only the release (dragging false) marks the
// diagram dirty.
func (e *Editor) MoveNode(id string, pos diagram.Position, dragging bool) error {
	if err := e.checkMounted(); err != nil {
		return err
	}
	return e.store.Dispatch(store.MoveNode{ID: id, Position: pos, Dragging: dragging})
}

func (e *Editor) Select(id string) error {
	if err := e.checkMounted(); err != nil {
		return err
	}
	return e.store.Dispatch(store.SelectNode{ID: id})
}

func (e *Editor) SetViewport(v diagram.Viewport) error {
	if err := e.checkMounted(); err != nil {
		return err
	}
	return e.store.Dispatch(store.SetViewport{Viewport: v})
}

func (e *Editor) ToggleEditor() error {
	if err := e.checkMounted(); err != nil {
		return err
	}
	return e.store.Dispatch(store.ToggleEditor{})
}

// ImportError is a failed SQL import. The editor state is unchanged.
type ImportError struct{ Err error }

func (e *ImportError) Error() string { return "import: " + e.Err.Error() }
func (e *ImportError) Unwrap() error { return e.Err }

// ImportSQL converts DDL to DBML and replaces the schema text with it.
func (e *Editor) ImportSQL(sql, dialect string) error {
	if err := e.checkMounted(); err != nil {
		return err
	}
	d, err := sqlddl.ParseDialect(dialect)
	if err != nil {
		return &ImportError{Err: err}
	}
	text, err := sqlddl.ImportToDBML(sql, d)
	if err != nil {
		return &ImportError{Err: err}
	}
	return e.SetText(text)
}

// ExportError is a failed export. No artifact was produced.
type ExportError struct{ Err error }

func (e *ExportError) Error() string { return e.Err.Error() }
func (e *ExportError) Unwrap() error { return e.Err }

// Export renders the current diagram. It never changes the store.
func (e *Editor) Export(req export.Request) (*export.Artifact, error) {
	snap := e.store.Snapshot()
	a, err := export.Export(export.Source{Text: snap.Text, Nodes: snap.Nodes, Edges: snap.Edges}, req)
	if err != nil {
		return nil, &ExportError{Err: err}
	}
	return a, nil
}
