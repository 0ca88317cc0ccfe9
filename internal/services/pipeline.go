package services

import (
	"dbmlviewer/internal/diagram"
	"dbmlviewer/internal/editor"
	"dbmlviewer/internal/store"
)

// Pipeline turns stored schema text into a positioned diagram by mounting a
// short-lived editor over it.
type Pipeline struct {
	opts editor.Options
}

func NewPipeline(opts editor.Options) *Pipeline {
	return &Pipeline{opts: opts}
}

// Open mounts an editor on text. The caller must Unmount it.
func (p *Pipeline) Open(text string, canvas *diagram.CanvasState) (*editor.Editor, error) {
	ed := editor.New(store.New(), nil, p.opts)
	if err := ed.Mount(editor.Initial{Text: text, CanvasState: canvas}); err != nil {
		return nil, err
	}
	return ed, nil
}
