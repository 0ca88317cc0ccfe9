package services

import (
	"errors"
	"fmt"
	"strings"

	"dbmlviewer/internal/diagram"
	"dbmlviewer/internal/editor"
	"dbmlviewer/internal/export"
	"dbmlviewer/internal/sqlddl"
)

// Graph is the laid-out graph for a schema text.
type Graph struct {
	DBML     string           `json:"dbml"`
	Nodes    []diagram.Node   `json:"nodes"`
	Edges    []diagram.Edge   `json:"edges"`
	Viewport diagram.Viewport `json:"viewport"`
}

// SchemaService runs the stateless parse, import and export endpoints.
type SchemaService struct {
	pipeline *Pipeline
}

func NewSchemaService(pipeline *Pipeline) *SchemaService {
	return &SchemaService{pipeline: pipeline}
}

// Parse lays out text. A stored canvas state, when given, positions the
// tables it names.
func (s *SchemaService) Parse(text string, canvas *diagram.CanvasState) (*Graph, error) {
	ed, err := s.pipeline.Open(text, canvas)
	if err != nil {
		return nil, err
	}
	defer ed.Unmount()
	return result(ed)
}

// Import converts DDL to DBML and lays it out.
func (s *SchemaService) Import(sql, dialect string) (*Graph, error) {
	if _, err := sqlddl.ParseDialect(dialect); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	ed, err := s.pipeline.Open("", nil)
	if err != nil {
		return nil, err
	}
	defer ed.Unmount()

	if err := ed.ImportSQL(sql, dialect); err != nil {
		var ie *editor.ImportError
		if errors.As(err, &ie) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, ie.Err)
		}
		return nil, err
	}
	return result(ed)
}

// ExportOptions are the loosely typed export parameters of the API.
type ExportOptions struct {
	Kind       string  `json:"kind" form:"kind"`
	Dialect    string  `json:"dialect" form:"dialect"`
	PixelRatio float64 `json:"pixelRatio" form:"pixelRatio"`
	Canonical  bool    `json:"canonical" form:"canonical"`
}

func (o ExportOptions) request() (export.Request, error) {
	dialect := o.Dialect
	if strings.EqualFold(strings.TrimSpace(o.Kind), string(export.KindSQL)) && dialect == "" {
		dialect = string(sqlddl.Postgres)
	}
	req, err := export.ParseRequest(o.Kind, dialect, o.PixelRatio)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if _, ok := req.(export.DBML); ok {
		req = export.DBML{Canonical: o.Canonical}
	}
	return req, nil
}

// Export renders text with the stored canvas positions.
func (s *SchemaService) Export(text string, canvas *diagram.CanvasState, opts ExportOptions) (*export.Artifact, error) {
	req, err := opts.request()
	if err != nil {
		return nil, err
	}
	ed, err := s.pipeline.Open(text, canvas)
	if err != nil {
		return nil, err
	}
	defer ed.Unmount()

	a, err := ed.Export(req)
	if err != nil {
		if errors.Is(err, export.ErrInvalidPixelRatio) || errors.Is(err, export.ErrImageTooLarge) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	return a, nil
}

func result(ed *editor.Editor) (*Graph, error) {
	st := ed.State()
	if st.HasParseError() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSchema, st.ParseError)
	}
	return &Graph{DBML: st.Text, Nodes: st.Nodes, Edges: st.Edges, Viewport: st.Viewport}, nil
}
