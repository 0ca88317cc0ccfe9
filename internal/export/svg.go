package export

import (
	"bytes"
	"fmt"

	svg "github.com/ajstarks/svgo"
)

const fontStack = "font-family:Inter,Helvetica,Arial,sans-serif"

func renderSVG(sc *scene) []byte {
	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Start(round(sc.width), round(sc.height))
	canvas.Rect(0, 0, round(sc.width), round(sc.height), "fill:"+hexColor(background))

	canvas.Gid("relations")
	for _, p := range sc.edges {
		d := fmt.Sprintf("M%.1f %.1f C%.1f %.1f %.1f %.1f %.1f %.1f",
			p.from.X, p.from.Y, p.c1.X, p.c1.Y, p.c2.X, p.c2.Y, p.to.X, p.to.Y)
		canvas.Path(d, "fill:none;stroke:"+hexColor(edgeColor)+";stroke-width:1.5")

		markStyle := fontStack + ";font-size:11px;fill:" + hexColor(mutedColor)
		canvas.Text(round(p.from.X+offsetToward(p.from.X, p.c1.X)), round(p.from.Y-6), relationMark(string(p.edge.SourceRelation)), markStyle, `text-anchor="middle"`)
		canvas.Text(round(p.to.X+offsetToward(p.to.X, p.c2.X)), round(p.to.Y-6), relationMark(string(p.edge.TargetRelation)), markStyle, `text-anchor="middle"`)
		if p.edge.Label != "" {
			mid := p.midpoint()
			canvas.Text(round(mid.X), round(mid.Y-6), p.edge.Label, markStyle, `text-anchor="middle"`)
		}
	}
	canvas.Gend()

	canvas.Gid("tables")
	for _, n := range sc.nodes {
		x, y := round(n.Position.X), round(n.Position.Y)
		w, h := round(n.Width), round(n.Height)
		header := hexColor(headerColor(n.Data.HeaderColor))

		canvas.Roundrect(x, y, w, h, 8, 8, "fill:#ffffff;stroke:"+hexColor(borderColor)+";stroke-width:1")
		canvas.Roundrect(x, y, w, round(headerHeight), 8, 8, "fill:"+header)
		canvas.Rect(x, y+round(headerHeight)-8, w, 8, "fill:"+header)

		title := n.Data.Name
		if n.Data.Schema != "" {
			title = n.Data.Schema + "." + title
		}
		canvas.Text(x+12, y+28, title, fontStack+";font-size:14px;font-weight:600;fill:"+hexColor(headerText))

		for i, c := range n.Data.Columns {
			rowY := y + round(headerHeight) + i*round(rowHeight)
			if i > 0 {
				canvas.Line(x, rowY, x+w, rowY, "stroke:"+hexColor(borderColor)+";stroke-width:1")
			}
			baseline := rowY + round(rowHeight/2) + 4
			nameStyle := fontStack + ";font-size:12px;fill:" + hexColor(textColor)
			if c.PK {
				nameStyle += ";font-weight:600"
			}
			canvas.Text(x+round(rowInset)+4, baseline, c.Name, nameStyle)
			canvas.Text(x+w-round(rowInset)-4, baseline, columnLabel(c), fontStack+";font-size:11px;fill:"+hexColor(mutedColor), `text-anchor="end"`)
		}
	}
	canvas.Gend()
	canvas.End()
	return buf.Bytes()
}

// offsetToward nudges an endpoint label off the table edge in the direction
// the curve leaves it.
func offsetToward(from, control float64) float64 {
	if control < from {
		return -10
	}
	return 10
}
