package services

import (
	"context"
	"encoding/json"

	"dbmlviewer/internal/editor"
)

// DiagramSaver stores an editor's diagrams as one owner. It is the Saver for
// hosts that embed a long-lived editor; the HTTP handlers call
// DiagramService directly.
type DiagramSaver struct {
	diagrams *DiagramService
	ownerID  string
}

var _ editor.Saver = (*DiagramSaver)(nil)

func NewDiagramSaver(diagrams *DiagramService, ownerID string) *DiagramSaver {
	return &DiagramSaver{diagrams: diagrams, ownerID: ownerID}
}

func (s *DiagramSaver) Create(ctx context.Context, rec editor.Record) (string, error) {
	canvas, err := marshalCanvas(rec)
	if err != nil {
		return "", err
	}
	d, err := s.diagrams.Create(ctx, s.ownerID, CreateDiagramRequest{
		Name:        rec.Name,
		Description: rec.Description,
		DBML:        rec.DBML,
		CanvasState: canvas,
	})
	if err != nil {
		return "", err
	}
	return d.ID.String(), nil
}

func (s *DiagramSaver) Update(ctx context.Context, id string, rec editor.Record) error {
	canvas, err := marshalCanvas(rec)
	if err != nil {
		return err
	}
	req := UpdateDiagramRequest{
		Description: rec.Description,
		DBML:        &rec.DBML,
		CanvasState: canvas,
	}
	if rec.Name != "" {
		req.Name = &rec.Name
	}
	_, err = s.diagrams.Update(ctx, s.ownerID, id, req)
	return err
}

func marshalCanvas(rec editor.Record) (json.RawMessage, error) {
	if rec.CanvasState == nil {
		return nil, nil
	}
	return json.Marshal(rec.CanvasState)
}
