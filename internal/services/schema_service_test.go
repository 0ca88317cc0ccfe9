package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbmlviewer/internal/diagram"
	"dbmlviewer/internal/editor"
)

func newSchemaService() *SchemaService {
	return NewSchemaService(NewPipeline(editor.DefaultOptions()))
}

func TestSchemaParse(t *testing.T) {
	svc := newSchemaService()

	g, err := svc.Parse(blog, nil)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 2)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, "posts", g.Edges[0].Source)
	assert.NotEqual(t, diagram.DefaultViewport(), g.Viewport, "first layout is fitted")

	stored := &diagram.CanvasState{
		Viewport:      diagram.Viewport{X: 5, Y: 6, Zoom: 0.5},
		NodePositions: map[string]diagram.Position{"users": {X: -100, Y: -200}},
	}
	g, err = svc.Parse(blog, stored)
	require.NoError(t, err)
	assert.Equal(t, stored.Viewport, g.Viewport)
	for _, n := range g.Nodes {
		if n.ID == "users" {
			assert.Equal(t, diagram.Position{X: -100, Y: -200}, n.Position)
		}
	}

	_, err = svc.Parse("Table users {", nil)
	assert.ErrorIs(t, err, ErrInvalidSchema)

	g, err = svc.Parse("", nil)
	require.NoError(t, err)
	assert.Empty(t, g.Nodes)
}

func TestSchemaImport(t *testing.T) {
	svc := newSchemaService()

	g, err := svc.Import(`CREATE TABLE users (id INT PRIMARY KEY);
CREATE TABLE posts (id INT PRIMARY KEY, user_id INT REFERENCES users(id));`, "postgres")
	require.NoError(t, err)
	assert.Contains(t, g.DBML, "Table users")
	assert.Len(t, g.Nodes, 2)
	assert.Len(t, g.Edges, 1)

	_, err = svc.Import("CREATE TABLE t (id INT);", "oracle")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.Import("CREATE TABLE (", "mysql")
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestSchemaExport(t *testing.T) {
	svc := newSchemaService()

	a, err := svc.Export(blog, nil, ExportOptions{Kind: "sql", Dialect: "mysql"})
	require.NoError(t, err)
	assert.Contains(t, string(a.Data), "`users`")

	a, err = svc.Export(blog, nil, ExportOptions{Kind: "SQL"})
	require.NoError(t, err, "dialect defaults to postgres")
	assert.Contains(t, string(a.Data), `"users"`)

	a, err = svc.Export("Table a { id int }\n\n\n", nil, ExportOptions{Kind: "dbml", Canonical: true})
	require.NoError(t, err)
	assert.Equal(t, "schema.dbml", a.Filename)
	assert.NotContains(t, string(a.Data), "\n\n\n")

	a, err = svc.Export(blog, nil, ExportOptions{Kind: "png", PixelRatio: 1})
	require.NoError(t, err)
	assert.Equal(t, "image/png", a.ContentType)

	_, err = svc.Export("", nil, ExportOptions{Kind: "png"})
	assert.ErrorIs(t, err, ErrInvalidSchema, "nothing to render")

	_, err = svc.Export(blog, nil, ExportOptions{Kind: "png", PixelRatio: -1})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.Export(blog, nil, ExportOptions{Kind: "png", PixelRatio: 1e12})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	spread := &diagram.CanvasState{
		Viewport:      diagram.Viewport{Zoom: 1},
		NodePositions: map[string]diagram.Position{"users": {}, "posts": {X: 1e6, Y: 1e6}},
	}
	_, err = svc.Export(blog, spread, ExportOptions{Kind: "png", PixelRatio: 1})
	assert.ErrorIs(t, err, ErrInvalidRequest, "oversized canvas")
}
