package export

import (
	"bytes"
	"errors"
	"image/color"
	"image/png"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbmlviewer/internal/dbml"
	"dbmlviewer/internal/diagram"
	"dbmlviewer/internal/sqlddl"
)

const blogDBML = `Table users {
  id integer [pk]
  name varchar
}

Table posts {
  id integer [pk]
  user_id integer [ref: > users.id]
  title varchar
}
`

func blogSource(t *testing.T) Source {
	t.Helper()
	s, err := dbml.Parse(blogDBML)
	require.NoError(t, err)
	nodes, edges, err := diagram.Build(s, diagram.DefaultLayoutOptions())
	require.NoError(t, err)
	return Source{Text: blogDBML, Nodes: nodes, Edges: edges}
}

func TestExportPNG(t *testing.T) {
	src := blogSource(t)
	b := diagram.Bounds(src.Nodes)

	a, err := Export(src, PNG{})
	require.NoError(t, err)
	assert.Equal(t, "diagram.png", a.Filename)
	assert.Equal(t, "image/png", a.ContentType)

	img, err := png.Decode(bytes.NewReader(a.Data))
	require.NoError(t, err)
	assert.Equal(t, int(math.Ceil((b.Width+2*canvasPadding)*DefaultPixelRatio)), img.Bounds().Dx())
	assert.Equal(t, int(math.Ceil((b.Height+2*canvasPadding)*DefaultPixelRatio)), img.Bounds().Dy())

	r, g, bl, _ := img.At(0, 0).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{r, g, bl}, "white background")

	one, err := Export(src, PNG{PixelRatio: 1})
	require.NoError(t, err)
	small, err := png.Decode(bytes.NewReader(one.Data))
	require.NoError(t, err)
	assert.InDelta(t, img.Bounds().Dx(), 2*small.Bounds().Dx(), 2)
}

func TestExportPNGBoundsImageSize(t *testing.T) {
	src := blogSource(t)

	_, err := Export(src, PNG{PixelRatio: 1e12})
	var exportErr *Error
	require.True(t, errors.As(err, &exportErr))
	assert.Equal(t, KindPNG, exportErr.Kind)
	assert.ErrorIs(t, err, ErrInvalidPixelRatio)

	_, err = Export(src, PNG{PixelRatio: math.Inf(1)})
	assert.ErrorIs(t, err, ErrInvalidPixelRatio)

	far := Source{Nodes: append([]diagram.Node(nil), src.Nodes...), Edges: src.Edges}
	far.Nodes[len(far.Nodes)-1].Position = diagram.Position{X: 1e6, Y: 1e6}
	_, err = Export(far, PNG{PixelRatio: 1})
	assert.ErrorIs(t, err, ErrImageTooLarge)

	_, err = Export(far, SVG{})
	assert.NoError(t, err, "vector output has no pixel budget")
}

func TestExportSVG(t *testing.T) {
	a, err := Export(blogSource(t), SVG{})
	require.NoError(t, err)
	assert.Equal(t, "diagram.svg", a.Filename)
	assert.Equal(t, "image/svg+xml", a.ContentType)

	out := string(a.Data)
	assert.True(t, strings.Contains(out, "<svg"))
	assert.Contains(t, out, "fill:#ffffff")
	assert.Contains(t, out, ">users<")
	assert.Contains(t, out, ">posts<")
	assert.Contains(t, out, ">user_id<")
	assert.Contains(t, out, "many-to-one")
	assert.Equal(t, 1, strings.Count(out, "<path"), "one path per relation")
}

func TestExportImagesRequireNodes(t *testing.T) {
	for _, req := range []Request{PNG{}, SVG{}} {
		_, err := Export(Source{Text: blogDBML}, req)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEmptyCanvas)

		var exportErr *Error
		require.True(t, errors.As(err, &exportErr))
		assert.Equal(t, req.Kind(), exportErr.Kind)
	}
}

func TestExportSQL(t *testing.T) {
	a, err := Export(Source{Text: blogDBML}, SQL{Dialect: sqlddl.MySQL})
	require.NoError(t, err)
	assert.Equal(t, "schema.sql", a.Filename)
	assert.Equal(t, "application/sql", a.ContentType)
	assert.Contains(t, string(a.Data), "CREATE TABLE `users`")
	assert.Contains(t, string(a.Data), "CREATE TABLE `posts`")
	assert.Contains(t, string(a.Data), "ALTER TABLE `posts` ADD FOREIGN KEY (`user_id`) REFERENCES `users` (`id`);")
}

func TestExportSQLParseFailure(t *testing.T) {
	_, err := Export(Source{Text: "Table users {"}, SQL{Dialect: sqlddl.Postgres})
	require.Error(t, err)

	var exportErr *Error
	require.True(t, errors.As(err, &exportErr))
	assert.Equal(t, KindSQL, exportErr.Kind)

	var parseErr *dbml.ParseError
	assert.True(t, errors.As(err, &parseErr))
}

func TestExportDBML(t *testing.T) {
	raw := "Table   users {\n  id int [pk]\n}\n"

	a, err := Export(Source{Text: raw}, DBML{})
	require.NoError(t, err)
	assert.Equal(t, "schema.dbml", a.Filename)
	assert.Equal(t, "text/plain", a.ContentType)
	assert.Equal(t, raw, string(a.Data))

	canon, err := Export(Source{Text: raw}, DBML{Canonical: true})
	require.NoError(t, err)
	s, err := dbml.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, dbml.Generate(s), string(canon.Data))

	_, err = Export(Source{Text: "Table {"}, DBML{Canonical: true})
	assert.Error(t, err)
}

func TestExportNilRequest(t *testing.T) {
	_, err := Export(Source{}, nil)
	var exportErr *Error
	assert.True(t, errors.As(err, &exportErr))
}

func TestParseRequest(t *testing.T) {
	tests := []struct {
		kind, dialect string
		ratio         float64
		want          Request
		wantErr       bool
	}{
		{kind: "png", ratio: 3, want: PNG{PixelRatio: 3}},
		{kind: "PNG", want: PNG{}},
		{kind: "svg", want: SVG{}},
		{kind: "sql", dialect: "mssql", want: SQL{Dialect: sqlddl.MSSQL}},
		{kind: "dbml", want: DBML{}},
		{kind: "sql", dialect: "oracle", wantErr: true},
		{kind: "png", ratio: -1, wantErr: true},
		{kind: "png", ratio: MaxPixelRatio, want: PNG{PixelRatio: MaxPixelRatio}},
		{kind: "png", ratio: MaxPixelRatio + 0.5, wantErr: true},
		{kind: "png", ratio: 1e12, wantErr: true},
		{kind: "png", ratio: math.NaN(), wantErr: true},
		{kind: "pdf", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.kind+tt.dialect, func(t *testing.T) {
			got, err := ParseRequest(tt.kind, tt.dialect, tt.ratio)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHeaderColor(t *testing.T) {
	assert.Equal(t, color.RGBA{0xaa, 0xbb, 0xcc, 0xff}, headerColor("#abc"))
	assert.Equal(t, color.RGBA{0x12, 0x34, 0x56, 0xff}, headerColor("#123456"))
	assert.Equal(t, defaultHeader, headerColor(""))
	assert.Equal(t, defaultHeader, headerColor("#zzzzzz"))
	assert.Equal(t, "#0a0b0c", hexColor(color.RGBA{0x0a, 0x0b, 0x0c, 0xff}))
}

func TestSceneRoutesEdgesBetweenColumnRows(t *testing.T) {
	src := blogSource(t)
	sc := newScene(src.Nodes, src.Edges)
	require.Len(t, sc.edges, 1)

	var posts, users diagram.Node
	for _, n := range sc.nodes {
		switch n.ID {
		case "posts":
			posts = n
		case "users":
			users = n
		}
	}
	p := sc.edges[0]
	assert.Equal(t, posts.Position.Y+headerHeight+rowHeight*1.5, p.from.Y, "user_id is the second row")
	assert.Equal(t, users.Position.Y+headerHeight+rowHeight*0.5, p.to.Y)
	assert.Equal(t, posts.Position.X+posts.Width, p.from.X, "posts sits left of users")
	assert.Equal(t, users.Position.X, p.to.X)
	assert.Equal(t, p.from, p.points[0])
	assert.Equal(t, p.to, p.points[len(p.points)-1])
}
