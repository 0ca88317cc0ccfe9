package editor

import "strings"

type KeyEvent struct {
	Key  string
	Ctrl bool
	Meta bool
}

// KeyResult tells the host what happened. PreventDefault means the
// platform's own handling of the key must be suppressed.
type KeyResult struct {
	Handled        bool
	PreventDefault bool
	OpenSaveDialog bool
	Future         *Future
}

// HandleKey implements the save shortcut: Ctrl+S or Cmd+S quick-saves a
// stored diagram and asks for the save dialog otherwise.
func (e *Editor) HandleKey(ev KeyEvent) KeyResult {
	if !strings.EqualFold(ev.Key, "s") || !(ev.Ctrl || ev.Meta) {
		return KeyResult{}
	}
	res := KeyResult{Handled: true, PreventDefault: true}
	if e.store.Snapshot().DiagramID == "" {
		res.OpenSaveDialog = true
		return res
	}
	e.mu.Lock()
	ctx := e.ctx
	e.mu.Unlock()
	if ctx == nil {
		return KeyResult{}
	}
	res.Future = e.QuickSave(ctx)
	return res
}
