package export

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"dbmlviewer/internal/diagram"
)

type fonts struct {
	regular, bold *opentype.Font
}

var loadFonts = sync.OnceValues(func() (fonts, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return fonts{}, fmt.Errorf("parse regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return fonts{}, fmt.Errorf("parse bold font: %w", err)
	}
	return fonts{regular: regular, bold: bold}, nil
})

// painter draws scene coordinates onto an image scaled by ratio.
type painter struct {
	img   *image.RGBA
	ratio float64

	title, body, small font.Face
}

func newPainter(w, h int, ratio float64) (*painter, error) {
	fs, err := loadFonts()
	if err != nil {
		return nil, err
	}
	face := func(f *opentype.Font, size float64) (font.Face, error) {
		return opentype.NewFace(f, &opentype.FaceOptions{Size: size * ratio, DPI: 72, Hinting: font.HintingFull})
	}
	p := &painter{img: image.NewRGBA(image.Rect(0, 0, w, h)), ratio: ratio}
	if p.title, err = face(fs.bold, 14); err != nil {
		return nil, err
	}
	if p.body, err = face(fs.regular, 12); err != nil {
		return nil, err
	}
	if p.small, err = face(fs.regular, 11); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *painter) close() {
	for _, f := range []font.Face{p.title, p.body, p.small} {
		if f != nil {
			f.Close()
		}
	}
}

func (p *painter) scale(v float64) int {
	return int(math.Round(v * p.ratio))
}

func (p *painter) fillRect(x, y, w, h float64, c color.RGBA) {
	r := image.Rect(p.scale(x), p.scale(y), p.scale(x+w), p.scale(y+h))
	draw.Draw(p.img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

// stroke draws a polyline of the given width as a chain of quads.
func (p *painter) stroke(points []diagram.Position, width float64, c color.RGBA) {
	b := p.img.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	hw := width * p.ratio / 2
	for i := 1; i < len(points); i++ {
		x1, y1 := points[i-1].X*p.ratio, points[i-1].Y*p.ratio
		x2, y2 := points[i].X*p.ratio, points[i].Y*p.ratio
		dx, dy := x2-x1, y2-y1
		l := math.Hypot(dx, dy)
		if l == 0 {
			continue
		}
		nx, ny := -dy/l*hw, dx/l*hw
		z.MoveTo(float32(x1+nx), float32(y1+ny))
		z.LineTo(float32(x2+nx), float32(y2+ny))
		z.LineTo(float32(x2-nx), float32(y2-ny))
		z.LineTo(float32(x1-nx), float32(y1-ny))
		z.ClosePath()
	}
	z.Draw(p.img, b, image.NewUniform(c), image.Point{})
}

type align int

const (
	alignLeft align = iota
	alignCenter
	alignRight
)

func (p *painter) text(face font.Face, x, y float64, s string, c color.RGBA, a align) {
	d := font.Drawer{Dst: p.img, Src: image.NewUniform(c), Face: face}
	px := p.scale(x)
	switch w := d.MeasureString(s).Ceil(); a {
	case alignCenter:
		px -= w / 2
	case alignRight:
		px -= w
	}
	d.Dot = fixed.P(px, p.scale(y))
	d.DrawString(s)
}

func renderPNG(sc *scene, ratio float64) ([]byte, error) {
	fw, fh := math.Ceil(sc.width*ratio), math.Ceil(sc.height*ratio)
	if math.IsNaN(fw*fh) || fw*fh > MaxPixels {
		return nil, fmt.Errorf("%w: %.0fx%.0f pixels exceeds %d", ErrImageTooLarge, fw, fh, MaxPixels)
	}
	w, h := int(fw), int(fh)
	p, err := newPainter(w, h, ratio)
	if err != nil {
		return nil, err
	}
	defer p.close()

	p.fillRect(0, 0, sc.width, sc.height, background)

	for _, e := range sc.edges {
		p.stroke(e.points, 1.5, edgeColor)
		p.text(p.small, e.from.X+offsetToward(e.from.X, e.c1.X), e.from.Y-6, relationMark(string(e.edge.SourceRelation)), mutedColor, alignCenter)
		p.text(p.small, e.to.X+offsetToward(e.to.X, e.c2.X), e.to.Y-6, relationMark(string(e.edge.TargetRelation)), mutedColor, alignCenter)
		if e.edge.Label != "" {
			mid := e.midpoint()
			p.text(p.small, mid.X, mid.Y-6, e.edge.Label, mutedColor, alignCenter)
		}
	}

	for _, n := range sc.nodes {
		x, y := n.Position.X, n.Position.Y
		border := 1 / ratio
		p.fillRect(x, y, n.Width, n.Height, borderColor)
		p.fillRect(x+border, y+border, n.Width-2*border, n.Height-2*border, background)
		p.fillRect(x, y, n.Width, headerHeight, headerColor(n.Data.HeaderColor))

		title := n.Data.Name
		if n.Data.Schema != "" {
			title = n.Data.Schema + "." + title
		}
		p.text(p.title, x+12, y+28, title, headerText, alignLeft)

		for i, c := range n.Data.Columns {
			rowY := y + headerHeight + float64(i)*rowHeight
			if i > 0 {
				p.fillRect(x, rowY, n.Width, border, borderColor)
			}
			baseline := rowY + rowHeight/2 + 4
			p.text(p.body, x+rowInset+4, baseline, c.Name, textColor, alignLeft)
			p.text(p.small, x+n.Width-rowInset-4, baseline, columnLabel(c), mutedColor, alignRight)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, p.img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
