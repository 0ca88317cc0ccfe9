package diagram

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

const (
	DefaultFitPadding = 0.1
	MinZoom           = 0.1
	MaxZoom           = 2.0
)

type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

func DefaultViewport() Viewport {
	return Viewport{Zoom: 1}
}

// CanvasState is what gets persisted alongside the schema text.
type CanvasState struct {
	Viewport      Viewport            `json:"viewport"`
	NodePositions map[string]Position `json:"nodePositions"`
}

var ErrInvalidCanvasState = errors.New("invalid canvas state")

// CaptureCanvasState snapshots the viewport and every node position.
func CaptureCanvasState(nodes []Node, vp Viewport) CanvasState {
	return CanvasState{Viewport: vp, NodePositions: Positions(nodes)}
}

// ParseCanvasState decodes a stored canvas state. Empty input and JSON null
// decode to nil.
func ParseCanvasState(data []byte) (*CanvasState, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var cs CanvasState
	if err := json.Unmarshal(trimmed, &cs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCanvasState, err)
	}
	if cs.Viewport.Zoom <= 0 || math.IsNaN(cs.Viewport.Zoom) || math.IsInf(cs.Viewport.Zoom, 0) {
		return nil, fmt.Errorf("%w: zoom must be positive", ErrInvalidCanvasState)
	}
	if cs.NodePositions == nil {
		cs.NodePositions = map[string]Position{}
	}
	return &cs, nil
}

// Rect is an axis-aligned box in canvas coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Bounds is the smallest rect containing every node.
func Bounds(nodes []Node) Rect {
	if len(nodes) == 0 {
		return Rect{}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, n := range nodes {
		minX = math.Min(minX, n.Position.X)
		minY = math.Min(minY, n.Position.Y)
		maxX = math.Max(maxX, n.Position.X+n.Width)
		maxY = math.Max(maxY, n.Position.Y+n.Height)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// FitView returns the viewport that centers all nodes in a width x height
// canvas, leaving padding as a fraction of the bounds, with the zoom clamped
// to [minZoom, maxZoom].
func FitView(nodes []Node, width, height, padding, minZoom, maxZoom float64) Viewport {
	if len(nodes) == 0 || width <= 0 || height <= 0 {
		return DefaultViewport()
	}
	b := Bounds(nodes)
	zoom := maxZoom
	if b.Width > 0 {
		zoom = math.Min(zoom, width/(b.Width*(1+padding)))
	}
	if b.Height > 0 {
		zoom = math.Min(zoom, height/(b.Height*(1+padding)))
	}
	zoom = math.Max(minZoom, math.Min(maxZoom, zoom))

	cx := b.X + b.Width/2
	cy := b.Y + b.Height/2
	return Viewport{
		X:    width/2 - cx*zoom,
		Y:    height/2 - cy*zoom,
		Zoom: zoom,
	}
}
