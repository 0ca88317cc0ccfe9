//go:build integration

package repositories

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"dbmlviewer/internal/database"
	"dbmlviewer/internal/models"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("dbmlviewer"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := database.ConnectURL(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.RunMigrations(ctx, pool))
	require.NoError(t, database.RunMigrations(ctx, pool), "migrations are idempotent")
	return pool
}

func TestDiagramRepository(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	users := NewUserRepository(pool)
	owner := &models.User{Email: " Ada@Example.com ", PasswordHash: "hash"}
	require.NoError(t, users.Create(ctx, owner))
	assert.Equal(t, "ada@example.com", owner.Email)
	assert.ErrorIs(t, users.Create(ctx, &models.User{Email: "ada@example.com", PasswordHash: "x"}), ErrDuplicateEmail)

	found, err := users.FindUserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, owner.ID, found.ID)

	stranger := &models.User{Email: "eve@example.com", PasswordHash: "hash"}
	require.NoError(t, users.Create(ctx, stranger))

	repo := NewDiagramRepository(pool)
	canvas := json.RawMessage(`{"viewport":{"x":0,"y":0,"zoom":1},"nodePositions":{"users":{"x":1,"y":2}}}`)
	d := &models.Diagram{OwnerID: owner.ID, Name: "  Blog ", DBML: "Table users { id int }", CanvasState: canvas}
	require.NoError(t, repo.Create(ctx, d))
	assert.Equal(t, "Blog", d.Name)
	assert.False(t, d.CreatedAt.IsZero())

	plain := &models.Diagram{OwnerID: owner.ID, Name: "Empty"}
	require.NoError(t, repo.Create(ctx, plain))

	got, err := repo.GetByIDAndOwner(ctx, d.ID, owner.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, d.DBML, got.DBML)
	assert.JSONEq(t, string(canvas), string(got.CanvasState))

	got, err = repo.GetByIDAndOwner(ctx, plain.ID, owner.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CanvasState)
	assert.Nil(t, got.Description)

	got, err = repo.GetByIDAndOwner(ctx, d.ID, stranger.ID)
	require.NoError(t, err)
	assert.Nil(t, got, "other owners cannot read")

	desc := "posts and users"
	d.Description = &desc
	d.DBML = "Table users { id int pk }"
	ok, err := repo.Update(ctx, d)
	require.NoError(t, err)
	assert.True(t, ok)

	stolen := *d
	stolen.OwnerID = stranger.ID
	ok, err = repo.Update(ctx, &stolen)
	require.NoError(t, err)
	assert.False(t, ok)

	items, total, err := repo.ListByOwner(ctx, owner.ID, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, items, 1)
	assert.Equal(t, d.ID, items[0].ID, "most recently updated first")

	items, total, err = repo.ListByOwner(ctx, stranger.ID, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)

	ok, err = repo.Delete(ctx, d.ID, stranger.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = repo.Delete(ctx, d.ID, owner.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = pool.Exec(ctx, `INSERT INTO diagrams (owner_id, name) VALUES ($1, '   ')`, owner.ID)
	assert.Error(t, err, "blank names are rejected by the table")
}
