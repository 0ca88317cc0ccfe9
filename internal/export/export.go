// Package export produces downloadable artifacts from a diagram: PNG and SVG
// images of the positioned tables, SQL DDL, and DBML text.
package export

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"dbmlviewer/internal/dbml"
	"dbmlviewer/internal/diagram"
	"dbmlviewer/internal/sqlddl"
)

type Kind string

const (
	KindPNG  Kind = "png"
	KindSVG  Kind = "svg"
	KindSQL  Kind = "sql"
	KindDBML Kind = "dbml"
)

const (
	DefaultPixelRatio = 2.0
	MaxPixelRatio     = 4.0

	// MaxPixels bounds the width times height of a PNG export.
	MaxPixels = 50_000_000
)

// Request selects an export target and carries its parameters.
type Request interface {
	Kind() Kind
	isRequest()
}

// PNG renders a raster image. A zero PixelRatio means DefaultPixelRatio.
type PNG struct{ PixelRatio float64 }

type SVG struct{}

type SQL struct{ Dialect sqlddl.Dialect }

// DBML returns the schema text, re-serialized when Canonical is set.
type DBML struct{ Canonical bool }

func (PNG) Kind() Kind  { return KindPNG }
func (SVG) Kind() Kind  { return KindSVG }
func (SQL) Kind() Kind  { return KindSQL }
func (DBML) Kind() Kind { return KindDBML }

func (PNG) isRequest()  {}
func (SVG) isRequest()  {}
func (SQL) isRequest()  {}
func (DBML) isRequest() {}

// ParseRequest builds a request from loosely typed inputs such as query
// parameters or CLI flags. dialect is only read for sql, ratio only for png.
func ParseRequest(kind, dialect string, ratio float64) (Request, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(kind))) {
	case KindPNG:
		if err := checkPixelRatio(ratio); err != nil {
			return nil, err
		}
		return PNG{PixelRatio: ratio}, nil
	case KindSVG:
		return SVG{}, nil
	case KindSQL:
		d, err := sqlddl.ParseDialect(dialect)
		if err != nil {
			return nil, err
		}
		return SQL{Dialect: d}, nil
	case KindDBML:
		return DBML{}, nil
	default:
		return nil, fmt.Errorf("unsupported export kind %q", kind)
	}
}

// Source is what an export reads. Images need Nodes and Edges; SQL and DBML
// need Text.
type Source struct {
	Text  string
	Nodes []diagram.Node
	Edges []diagram.Edge
}

type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

var (
	ErrEmptyCanvas       = errors.New("nothing to render")
	ErrInvalidPixelRatio = errors.New("invalid pixel ratio")
	ErrImageTooLarge     = errors.New("image too large")
)

// checkPixelRatio accepts zero (the default) up to MaxPixelRatio.
func checkPixelRatio(ratio float64) error {
	if math.IsNaN(ratio) || ratio < 0 || ratio > MaxPixelRatio {
		return fmt.Errorf("%w %v: must be between 0 and %v", ErrInvalidPixelRatio, ratio, MaxPixelRatio)
	}
	return nil
}

// Error is a failed export.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("export %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Export runs req against src. Every failure is an *Error.
func Export(src Source, req Request) (*Artifact, error) {
	if req == nil {
		return nil, &Error{Kind: "", Err: errors.New("no export request")}
	}
	a, err := run(src, req)
	if err != nil {
		return nil, &Error{Kind: req.Kind(), Err: err}
	}
	return a, nil
}

func run(src Source, req Request) (*Artifact, error) {
	switch r := req.(type) {
	case PNG:
		if len(src.Nodes) == 0 {
			return nil, ErrEmptyCanvas
		}
		if err := checkPixelRatio(r.PixelRatio); err != nil {
			return nil, err
		}
		ratio := r.PixelRatio
		if ratio == 0 {
			ratio = DefaultPixelRatio
		}
		data, err := renderPNG(newScene(src.Nodes, src.Edges), ratio)
		if err != nil {
			return nil, err
		}
		return &Artifact{Filename: "diagram.png", ContentType: "image/png", Data: data}, nil

	case SVG:
		if len(src.Nodes) == 0 {
			return nil, ErrEmptyCanvas
		}
		data := renderSVG(newScene(src.Nodes, src.Edges))
		return &Artifact{Filename: "diagram.svg", ContentType: "image/svg+xml", Data: data}, nil

	case SQL:
		s, err := dbml.Parse(src.Text)
		if err != nil {
			return nil, err
		}
		ddl, err := sqlddl.Export(s, r.Dialect)
		if err != nil {
			return nil, err
		}
		return &Artifact{Filename: "schema.sql", ContentType: "application/sql", Data: []byte(ddl)}, nil

	case DBML:
		text := src.Text
		if r.Canonical {
			s, err := dbml.Parse(text)
			if err != nil {
				return nil, err
			}
			text = dbml.Generate(s)
		}
		return &Artifact{Filename: "schema.dbml", ContentType: "text/plain", Data: []byte(text)}, nil
	}
	return nil, fmt.Errorf("unsupported export kind %q", req.Kind())
}
