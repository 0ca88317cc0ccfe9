package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbmlviewer/internal/introspect"
)

const blog = `Table users {
  id integer [pk, increment]
  email varchar [unique, not null]
}

Table posts {
  id integer [pk]
  user_id integer [ref: > users.id]
  title varchar
}
`

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFmt(t *testing.T) {
	out, err := execute(t, "", "fmt", writeFile(t, "blog.dbml", blog))
	require.NoError(t, err)
	assert.Contains(t, out, "Table users {")
	assert.Contains(t, out, "Ref: posts.user_id > users.id")
}

func TestFmtWrite(t *testing.T) {
	path := writeFile(t, "blog.dbml", blog)
	out, err := execute(t, "", "fmt", "-w", path)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Ref: posts.user_id > users.id")
}

func TestFmtReportsParseErrors(t *testing.T) {
	_, err := execute(t, "Table users {", "fmt", "-")
	assert.Error(t, err)
}

func TestExportSQL(t *testing.T) {
	out, err := execute(t, blog, "export", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `CREATE TABLE "users"`)
	assert.Contains(t, out, "FOREIGN KEY")

	_, err = execute(t, blog, "export", "--dialect", "oracle", "-")
	assert.Error(t, err)
}

func TestImport(t *testing.T) {
	ddl := `CREATE TABLE users (id SERIAL PRIMARY KEY, email VARCHAR(255) NOT NULL UNIQUE);`
	out, err := execute(t, "", "import", writeFile(t, "schema.sql", ddl))
	require.NoError(t, err)
	assert.Contains(t, out, "Table users {")
}

func TestRender(t *testing.T) {
	dir := t.TempDir()

	svg := filepath.Join(dir, "blog.svg")
	_, err := execute(t, blog, "render", "-f", "svg", "-o", svg, "--direction", "tb", "-")
	require.NoError(t, err)
	data, err := os.ReadFile(svg)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<svg")

	png := filepath.Join(dir, "blog.png")
	_, err = execute(t, blog, "render", "-o", png, "--scale", "1", "-")
	require.NoError(t, err)
	data, err = os.ReadFile(png)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestRenderRejectsBadFlags(t *testing.T) {
	_, err := execute(t, blog, "render", "-f", "gif", "-")
	assert.ErrorContains(t, err, "unsupported format")

	_, err = execute(t, blog, "render", "--direction", "diagonal", "-o", filepath.Join(t.TempDir(), "x.png"), "-")
	assert.Error(t, err)
}

func TestIntrospectSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.db")
	ctx := context.Background()
	db, err := introspect.OpenSQLite(ctx, path)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `
		CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL);
		CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER REFERENCES users(id));
		CREATE TABLE schema_migrations (version TEXT);
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	out, err := execute(t, "", "introspect", "--sqlite", path, "--exclude", "schema_migrations")
	require.NoError(t, err)
	assert.Contains(t, out, "Table users {")
	assert.Contains(t, out, "Ref: posts.user_id > users.id")
	assert.NotContains(t, out, "schema_migrations")
}

func TestIntrospectNeedsOneSource(t *testing.T) {
	_, err := execute(t, "", "introspect")
	assert.Error(t, err)

	_, err = execute(t, "", "introspect", "--sqlite", "a.db", "--mysql-url", "u@/db")
	assert.Error(t, err)
}
