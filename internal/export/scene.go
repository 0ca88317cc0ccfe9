package export

import (
	"image/color"
	"math"
	"strconv"
	"strings"

	"dbmlviewer/internal/diagram"
)

const (
	canvasPadding = 40.0
	headerHeight  = 44.0
	rowInset      = 8.0
	curveSegments = 24
	rowHeight     = diagram.RowHeight
)

var (
	background    = color.RGBA{0xff, 0xff, 0xff, 0xff}
	defaultHeader = color.RGBA{0x25, 0x63, 0xeb, 0xff}
	borderColor   = color.RGBA{0xcb, 0xd5, 0xe1, 0xff}
	textColor     = color.RGBA{0x0f, 0x17, 0x2a, 0xff}
	mutedColor    = color.RGBA{0x64, 0x74, 0x8b, 0xff}
	edgeColor     = color.RGBA{0x94, 0xa3, 0xb8, 0xff}
	headerText    = color.RGBA{0xff, 0xff, 0xff, 0xff}
)

// scene is the diagram translated so its bounds start at the padding.
type scene struct {
	width, height float64
	nodes         []diagram.Node
	edges         []edgePath
}

type edgePath struct {
	edge   diagram.Edge
	points []diagram.Position // sampled cubic curve from source to target
	from   diagram.Position
	to     diagram.Position
	c1, c2 diagram.Position
}

func newScene(nodes []diagram.Node, edges []diagram.Edge) *scene {
	b := diagram.Bounds(nodes)
	dx, dy := canvasPadding-b.X, canvasPadding-b.Y

	sc := &scene{
		width:  b.Width + 2*canvasPadding,
		height: b.Height + 2*canvasPadding,
		nodes:  make([]diagram.Node, len(nodes)),
	}
	byID := make(map[string]diagram.Node, len(nodes))
	for i, n := range nodes {
		n.Position.X += dx
		n.Position.Y += dy
		sc.nodes[i] = n
		byID[n.ID] = n
	}
	for _, e := range edges {
		src, ok1 := byID[e.Source]
		tgt, ok2 := byID[e.Target]
		if !ok1 || !ok2 {
			continue
		}
		sc.edges = append(sc.edges, route(e, src, tgt))
	}
	return sc
}

// rowCenter is the vertical middle of the named column's row.
func rowCenter(n diagram.Node, col string) float64 {
	idx := 0
	for i, c := range n.Data.Columns {
		if c.Name == col {
			idx = i
			break
		}
	}
	return n.Position.Y + headerHeight + diagram.RowHeight*float64(idx) + diagram.RowHeight/2
}

func route(e diagram.Edge, src, tgt diagram.Node) edgePath {
	var srcCol, tgtCol string
	if len(e.SourceColumns) > 0 {
		srcCol = e.SourceColumns[0]
	}
	if len(e.TargetColumns) > 0 {
		tgtCol = e.TargetColumns[0]
	}
	from := diagram.Position{Y: rowCenter(src, srcCol)}
	to := diagram.Position{Y: rowCenter(tgt, tgtCol)}

	bend := 60.0
	switch {
	case src.ID == tgt.ID:
		from.X = src.Position.X + src.Width
		to.X = from.X
	case src.Position.X+src.Width/2 <= tgt.Position.X+tgt.Width/2:
		from.X = src.Position.X + src.Width
		to.X = tgt.Position.X
	default:
		from.X = src.Position.X
		to.X = tgt.Position.X + tgt.Width
		bend = -bend
	}
	c1 := diagram.Position{X: from.X + bend, Y: from.Y}
	c2 := diagram.Position{X: to.X - bend, Y: to.Y}
	if src.ID == tgt.ID {
		c2.X = to.X + bend
	}

	pts := make([]diagram.Position, curveSegments+1)
	for i := range pts {
		t := float64(i) / curveSegments
		u := 1 - t
		pts[i] = diagram.Position{
			X: u*u*u*from.X + 3*u*u*t*c1.X + 3*u*t*t*c2.X + t*t*t*to.X,
			Y: u*u*u*from.Y + 3*u*u*t*c1.Y + 3*u*t*t*c2.Y + t*t*t*to.Y,
		}
	}
	return edgePath{edge: e, points: pts, from: from, to: to, c1: c1, c2: c2}
}

func (p edgePath) midpoint() diagram.Position {
	return p.points[len(p.points)/2]
}

// relationMark is the symbol drawn at an endpoint.
func relationMark(r string) string {
	if r == "*" {
		return "*"
	}
	return "1"
}

// headerColor parses #rgb or #rrggbb, falling back to the default.
func headerColor(hex string) color.RGBA {
	s := strings.TrimPrefix(hex, "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return defaultHeader
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return defaultHeader
	}
	return color.RGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 0xff}
}

func hexColor(c color.RGBA) string {
	return "#" + strconv.FormatUint(uint64(c.R)<<16|uint64(c.G)<<8|uint64(c.B)|1<<24, 16)[1:]
}

func columnLabel(c diagram.ColumnData) string {
	var marks []string
	if c.PK {
		marks = append(marks, "PK")
	}
	if c.Unique {
		marks = append(marks, "UQ")
	}
	if c.NotNull {
		marks = append(marks, "NN")
	}
	if len(marks) == 0 {
		return c.Type
	}
	return c.Type + " " + strings.Join(marks, " ")
}

func round(v float64) int {
	return int(math.Round(v))
}
