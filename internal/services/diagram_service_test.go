package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbmlviewer/internal/diagram"
	"dbmlviewer/internal/editor"
	"dbmlviewer/internal/services/servicetest"
	"dbmlviewer/internal/store"
)

const blog = `
Table users {
  id int [pk]
  email varchar [unique, not null]
}

Table posts {
  id int [pk]
  user_id int [ref: > users.id]
  title varchar
}
`

func newDiagramService(t *testing.T) (*DiagramService, *servicetest.Diagrams) {
	t.Helper()
	repo := servicetest.NewDiagrams()
	return NewDiagramService(repo, NewSchemaService(NewPipeline(editor.DefaultOptions()))), repo
}

func ptr[T any](v T) *T { return &v }

func TestCreateDiagramValidation(t *testing.T) {
	svc, repo := newDiagramService(t)
	ctx := context.Background()
	owner := uuid.NewString()

	tests := []struct {
		name string
		req  CreateDiagramRequest
		want error
	}{
		{"blank name", CreateDiagramRequest{Name: "   "}, ErrNameRequired},
		{"long name", CreateDiagramRequest{Name: strings.Repeat("n", MaxNameLength+1)}, ErrNameTooLong},
		{"long description", CreateDiagramRequest{Name: "d", Description: ptr(strings.Repeat("d", MaxDescriptionLength+1))}, ErrDescriptionTooLong},
		{"large dbml", CreateDiagramRequest{Name: "d", DBML: strings.Repeat("x", MaxDBMLBytes+1)}, ErrDBMLTooLarge},
		{"bad canvas", CreateDiagramRequest{Name: "d", CanvasState: json.RawMessage(`{"viewport":{"zoom":0}}`)}, ErrInvalidCanvas},
		{"large canvas", CreateDiagramRequest{Name: "d", CanvasState: json.RawMessage(`"` + strings.Repeat("x", MaxCanvasBytes) + `"`)}, ErrCanvasTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, owner, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Zero(t, repo.Len())

	_, err := svc.Create(ctx, "not-a-uuid", CreateDiagramRequest{Name: "d"})
	assert.ErrorIs(t, err, ErrInvalidID)

	name := strings.Repeat("é", MaxNameLength)
	d, err := svc.Create(ctx, owner, CreateDiagramRequest{Name: "  " + name + " ", DBML: blog})
	require.NoError(t, err, "limits count characters")
	assert.Equal(t, name, d.Name)
	assert.Nil(t, d.CanvasState)
}

func TestDiagramsAreOwnerScoped(t *testing.T) {
	svc, _ := newDiagramService(t)
	ctx := context.Background()
	alice, bob := uuid.NewString(), uuid.NewString()

	d, err := svc.Create(ctx, alice, CreateDiagramRequest{Name: "Blog", DBML: blog})
	require.NoError(t, err)

	_, err = svc.Get(ctx, bob, d.ID.String())
	assert.ErrorIs(t, err, ErrDiagramNotFound)
	_, err = svc.Update(ctx, bob, d.ID.String(), UpdateDiagramRequest{Name: ptr("mine")})
	assert.ErrorIs(t, err, ErrDiagramNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, bob, d.ID.String()), ErrDiagramNotFound)
	_, err = svc.Get(ctx, alice, "garbage")
	assert.ErrorIs(t, err, ErrDiagramNotFound)

	got, err := svc.Get(ctx, alice, d.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Blog", got.Name)

	require.NoError(t, svc.Delete(ctx, alice, d.ID.String()))
	_, err = svc.Get(ctx, alice, d.ID.String())
	assert.ErrorIs(t, err, ErrDiagramNotFound)
}

func TestListDiagramsPaging(t *testing.T) {
	svc, _ := newDiagramService(t)
	ctx := context.Background()
	owner := uuid.NewString()

	var ids []string
	for i := 0; i < 5; i++ {
		d, err := svc.Create(ctx, owner, CreateDiagramRequest{Name: "d" + string(rune('a'+i))})
		require.NoError(t, err)
		ids = append(ids, d.ID.String())
	}
	_, err := svc.Create(ctx, uuid.NewString(), CreateDiagramRequest{Name: "other"})
	require.NoError(t, err)

	page, err := svc.List(ctx, owner, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.PerPage)
	assert.Equal(t, 5, page.TotalItems)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 2)
	assert.Equal(t, ids[2], page.Items[0].ID.String(), "newest first")

	page, err = svc.List(ctx, owner, 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, MaxPerPage, page.PerPage)
	assert.Len(t, page.Items, 5)

	page, err = svc.List(ctx, owner, 9, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultPerPage, page.PerPage)
	assert.Empty(t, page.Items)
	assert.NotNil(t, page.Items)
}

func TestUpdateDiagramIsPartial(t *testing.T) {
	svc, _ := newDiagramService(t)
	ctx := context.Background()
	owner := uuid.NewString()

	d, err := svc.Create(ctx, owner, CreateDiagramRequest{
		Name:        "Blog",
		Description: ptr("v1"),
		DBML:        blog,
		CanvasState: json.RawMessage(`{"viewport":{"x":1,"y":2,"zoom":1.5},"nodePositions":{"users":{"x":10,"y":20}}}`),
	})
	require.NoError(t, err)

	got, err := svc.Update(ctx, owner, d.ID.String(), UpdateDiagramRequest{DBML: ptr("Table t { id int }")})
	require.NoError(t, err)
	assert.Equal(t, "Blog", got.Name)
	assert.Equal(t, "v1", *got.Description)
	assert.Equal(t, "Table t { id int }", got.DBML)
	cs, err := diagram.ParseCanvasState(got.CanvasState)
	require.NoError(t, err)
	assert.Equal(t, diagram.Position{X: 10, Y: 20}, cs.NodePositions["users"])
	assert.True(t, got.UpdatedAt.After(d.UpdatedAt))

	got, err = svc.Update(ctx, owner, d.ID.String(), UpdateDiagramRequest{CanvasState: json.RawMessage(`null`)})
	require.NoError(t, err)
	assert.Nil(t, got.CanvasState, "explicit null clears the canvas")

	_, err = svc.Update(ctx, owner, d.ID.String(), UpdateDiagramRequest{Name: ptr(" ")})
	assert.ErrorIs(t, err, ErrNameRequired)
}

func TestConcurrentUpdatesOfOneDiagramConflict(t *testing.T) {
	svc, repo := newDiagramService(t)
	ctx := context.Background()
	owner := uuid.NewString()

	d, err := svc.Create(ctx, owner, CreateDiagramRequest{Name: "Blog"})
	require.NoError(t, err)
	other, err := svc.Create(ctx, owner, CreateDiagramRequest{Name: "Other"})
	require.NoError(t, err)

	repo.Entered = make(chan struct{})
	repo.Release = make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	var first error
	go func() {
		defer wg.Done()
		_, first = svc.Update(ctx, owner, d.ID.String(), UpdateDiagramRequest{DBML: ptr("Table a { id int }")})
	}()
	<-repo.Entered

	_, err = svc.Update(ctx, owner, d.ID.String(), UpdateDiagramRequest{DBML: ptr("Table b { id int }")})
	assert.ErrorIs(t, err, ErrSaveInProgress)

	// Other records are not blocked.
	wg.Add(1)
	var second error
	go func() {
		defer wg.Done()
		_, second = svc.Update(ctx, owner, other.ID.String(), UpdateDiagramRequest{Name: ptr("Renamed")})
	}()
	<-repo.Entered

	close(repo.Release)
	wg.Wait()
	require.NoError(t, first)
	require.NoError(t, second)

	repo.Entered = nil
	got, err := svc.Update(ctx, owner, d.ID.String(), UpdateDiagramRequest{DBML: ptr("Table c { id int }")})
	require.NoError(t, err, "guard is released afterwards")
	assert.Equal(t, "Table c { id int }", got.DBML)
}

func TestExportSavedDiagram(t *testing.T) {
	svc, _ := newDiagramService(t)
	ctx := context.Background()
	owner := uuid.NewString()

	d, err := svc.Create(ctx, owner, CreateDiagramRequest{Name: "Blog", DBML: blog})
	require.NoError(t, err)

	a, err := svc.Export(ctx, owner, d.ID.String(), ExportOptions{Kind: "sql"})
	require.NoError(t, err)
	assert.Equal(t, "schema.sql", a.Filename)
	assert.Contains(t, string(a.Data), "CREATE TABLE")

	a, err = svc.Export(ctx, owner, d.ID.String(), ExportOptions{Kind: "svg"})
	require.NoError(t, err)
	assert.Equal(t, "image/svg+xml", a.ContentType)
	assert.Contains(t, string(a.Data), "posts")

	_, err = svc.Export(ctx, owner, d.ID.String(), ExportOptions{Kind: "gif"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.Export(ctx, uuid.NewString(), d.ID.String(), ExportOptions{Kind: "sql"})
	assert.ErrorIs(t, err, ErrDiagramNotFound)
}

func TestDiagramSaverBacksEditor(t *testing.T) {
	svc, repo := newDiagramService(t)
	ctx := context.Background()
	owner := uuid.NewString()

	ed := editor.New(store.New(), NewDiagramSaver(svc, owner), editor.DefaultOptions())
	require.NoError(t, ed.Mount(editor.Initial{Text: blog}))
	defer ed.Unmount()

	id, err := ed.Save(ctx, editor.SaveMeta{Name: "Blog", Description: "first"}).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.Len())
	assert.False(t, ed.State().Dirty)
	assert.Equal(t, id, ed.State().DiagramID)

	require.NoError(t, ed.MoveNode("users", diagram.Position{X: 900, Y: 900}, false))
	require.NoError(t, ed.SetText(blog+"\nTable tags { id int }"))
	_, err = ed.QuickSave(ctx).Wait(ctx)
	require.NoError(t, err)

	stored, err := svc.Get(ctx, owner, id)
	require.NoError(t, err)
	assert.Equal(t, "Blog", stored.Name, "quick save keeps the name")
	assert.Equal(t, "first", *stored.Description)
	assert.Contains(t, stored.DBML, "Table tags")
	cs, err := diagram.ParseCanvasState(stored.CanvasState)
	require.NoError(t, err)
	assert.Contains(t, cs.NodePositions, "tags")

	_, err = ed.Save(ctx, editor.SaveMeta{Name: strings.Repeat("x", MaxNameLength+1)}).Wait(ctx)
	var pe *editor.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, ErrNameTooLong)
}
