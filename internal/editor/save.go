package editor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"dbmlviewer/internal/diagram"
	"dbmlviewer/internal/store"
)

// Record is a diagram as sent to storage. On Update an empty Name and a nil
// Description leave the stored values unchanged.
type Record struct {
	Name        string
	Description *string
	DBML        string
	CanvasState *diagram.CanvasState
}

// Saver persists diagrams. Create returns the new record id.
type Saver interface {
	Create(ctx context.Context, rec Record) (string, error)
	Update(ctx context.Context, id string, rec Record) error
}

type SaveMeta struct {
	Name        string
	Description string
}

var (
	ErrNameRequired   = errors.New("diagram name is required")
	ErrSaveInProgress = errors.New("a save is already in progress")
	ErrNotPersisted   = errors.New("diagram has not been saved yet")
	ErrNoSaver        = errors.New("editor has no storage")
)

// PersistenceError is a failed storage call. The diagram stays dirty.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("%s diagram: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

type FutureState int

const (
	Pending FutureState = iota
	Succeeded
	Failed
)

func (s FutureState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("FutureState(%d)", int(s))
}

// Future is the outcome of an asynchronous save. It resolves exactly once
// with the diagram id or an error.
type Future struct {
	done chan struct{}

	mu    sync.Mutex
	state FutureState
	id    string
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func failedFuture(err error) *Future {
	f := newFuture()
	f.resolve("", err)
	return f
}

func (f *Future) resolve(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != Pending {
		return
	}
	f.id, f.err = id, err
	f.state = Succeeded
	if err != nil {
		f.state = Failed
	}
	close(f.done)
}

func (f *Future) State() FutureState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the future resolves or ctx ends.
func (f *Future) Wait(ctx context.Context) (string, error) {
	select {
	case <-f.done:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.id, f.err
}

// Save stores the current text and canvas state under meta. A diagram
// without an id is created, otherwise updated. Only one save runs at a time.
func (e *Editor) Save(ctx context.Context, meta SaveMeta) *Future {
	name := strings.TrimSpace(meta.Name)
	if name == "" {
		return failedFuture(ErrNameRequired)
	}
	desc := meta.Description
	snap := e.store.Snapshot()
	rec := Record{
		Name:        name,
		Description: &desc,
		DBML:        snap.Text,
		CanvasState: canvasState(snap),
	}
	return e.persist(ctx, snap, rec, func() {
		e.name, e.description = name, desc
	})
}

// QuickSave updates the text and canvas state of an already saved diagram.
func (e *Editor) QuickSave(ctx context.Context) *Future {
	snap := e.store.Snapshot()
	if snap.DiagramID == "" {
		return failedFuture(ErrNotPersisted)
	}
	return e.persist(ctx, snap, Record{DBML: snap.Text, CanvasState: canvasState(snap)}, nil)
}

func canvasState(s store.State) *diagram.CanvasState {
	cs := diagram.CaptureCanvasState(s.Nodes, s.Viewport)
	return &cs
}

// persist runs one storage call in the background. onSuccess runs under
// e.mu. A save that completes after the editor was remounted still resolves
// its future but leaves the new diagram alone.
func (e *Editor) persist(ctx context.Context, snap store.State, rec Record, onSuccess func()) *Future {
	if err := e.checkMounted(); err != nil {
		return failedFuture(err)
	}
	if e.saver == nil {
		return failedFuture(ErrNoSaver)
	}
	e.mu.Lock()
	if e.saving {
		e.mu.Unlock()
		return failedFuture(ErrSaveInProgress)
	}
	e.saving = true
	gen := e.generation
	e.mu.Unlock()

	f := newFuture()
	go func() {
		id := snap.DiagramID
		op := "update"
		var err error
		if id == "" {
			op = "create"
			id, err = e.saver.Create(ctx, rec)
		} else {
			err = e.saver.Update(ctx, id, rec)
		}

		e.mu.Lock()
		current := gen == e.generation
		if current {
			e.saving = false
			if err == nil && onSuccess != nil {
				onSuccess()
			}
		}
		e.mu.Unlock()

		if err != nil {
			log.Printf("editor: %s diagram failed: %v", op, err)
			f.resolve("", &PersistenceError{Op: op, Err: err})
			return
		}
		if !current {
			f.resolve(id, nil)
			return
		}
		if err := e.store.Dispatch(store.MarkSaved{Revision: snap.Revision, DiagramID: id}); err != nil && !errors.Is(err, store.ErrDisposed) {
			f.resolve("", err)
			return
		}
		f.resolve(id, nil)
	}()
	return f
}

// Meta returns the name and description of the last successful save, or
// those given at Mount.
func (e *Editor) Meta() SaveMeta {
	e.mu.Lock()
	defer e.mu.Unlock()
	return SaveMeta{Name: e.name, Description: e.description}
}
