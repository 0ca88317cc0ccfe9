package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbmlviewer/internal/config"
	"dbmlviewer/internal/layout"
	"dbmlviewer/internal/services/servicetest"
)

const blog = `Table users {
  id int [pk]
}

Table posts {
  id int [pk]
  user_id int [ref: > users.id]
}`

type api struct {
	t      *testing.T
	router *gin.Engine
	token  string
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		AccessTokenSecret:  "access",
		RefreshTokenSecret: "refresh",
		CORSOrigins:        []string{"http://localhost:5173"},
		LayoutDirection:    layout.LeftRight,
	}
	router := NewRouter(cfg, Deps{
		Diagrams: servicetest.NewDiagrams(),
		Users:    servicetest.NewUsers(),
		Sessions: servicetest.NewSessions(),
	})
	return &api{t: t, router: router}
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (a *api) do(method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var r *http.Request
	switch b := body.(type) {
	case nil:
		r = httptest.NewRequest(method, path, nil)
	case string:
		r = httptest.NewRequest(method, path, strings.NewReader(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(a.t, err)
		r = httptest.NewRequest(method, path, bytes.NewReader(data))
	}
	r.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		r.Header.Set("Authorization", "Bearer "+a.token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if into != nil {
		require.NoError(t, json.Unmarshal(env.Data, into))
	}
	return env
}

func (a *api) login(email string) {
	a.t.Helper()
	a.token = ""
	w := a.do(http.MethodPost, "/api/v1/auth/register", gin.H{"email": email, "password": "password123"})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var data struct {
		AccessToken string `json:"access_token"`
	}
	decode(a.t, w, &data)
	require.NotEmpty(a.t, data.AccessToken)
	a.token = data.AccessToken
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	w := a.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestDiagramCRUD(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodGet, "/api/v1/diagrams", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	a.login("ada@example.com")

	w = a.do(http.MethodPost, "/api/v1/diagrams", gin.H{"name": "", "dbml": blog})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodPost, "/api/v1/diagrams", gin.H{
		"name":        "Blog",
		"dbml":        blog,
		"canvasState": gin.H{"viewport": gin.H{"x": 0, "y": 0, "zoom": 1}, "nodePositions": gin.H{"users": gin.H{"x": 5, "y": 6}}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID          string          `json:"id"`
		Name        string          `json:"name"`
		CanvasState json.RawMessage `json:"canvasState"`
	}
	env := decode(t, w, &created)
	assert.Equal(t, "success", env.Status)
	assert.Equal(t, "Blog", created.Name)
	assert.Contains(t, string(created.CanvasState), `"users"`)

	w = a.do(http.MethodPatch, "/api/v1/diagrams/"+created.ID, gin.H{"description": "about posts"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(http.MethodGet, "/api/v1/diagrams?page=1&perPage=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Page       int `json:"page"`
		PerPage    int `json:"perPage"`
		TotalItems int `json:"totalItems"`
		TotalPages int `json:"totalPages"`
		Items      []struct {
			ID          string `json:"id"`
			Description string `json:"description"`
		} `json:"items"`
	}
	decode(t, w, &page)
	assert.Equal(t, 1, page.TotalItems)
	assert.Equal(t, 1, page.TotalPages)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "about posts", page.Items[0].Description)

	w = a.do(http.MethodGet, "/api/v1/diagrams?page=x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodGet, "/api/v1/diagrams/"+created.ID+"/export?kind=svg", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/svg+xml", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="diagram.svg"`, w.Header().Get("Content-Disposition"))

	w = a.do(http.MethodGet, "/api/v1/diagrams/"+created.ID+"/export?kind=sql&dialect=mssql", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "[users]")

	// Another user sees nothing.
	owner := a.token
	a.login("eve@example.com")
	w = a.do(http.MethodGet, "/api/v1/diagrams/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = a.do(http.MethodDelete, "/api/v1/diagrams/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	a.token = owner
	w = a.do(http.MethodDelete, "/api/v1/diagrams/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = a.do(http.MethodGet, "/api/v1/diagrams/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDiagramSizeLimits(t *testing.T) {
	a := newAPI(t)
	a.login("ada@example.com")

	w := a.do(http.MethodPost, "/api/v1/diagrams", gin.H{"name": "Big", "dbml": strings.Repeat("x", (1<<20)+1)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = a.do(http.MethodPost, "/api/v1/diagrams", `{"name":"Huge","dbml":"`+strings.Repeat("x", 4<<20)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = a.do(http.MethodPost, "/api/v1/diagrams", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSchemaEndpoints(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodPost, "/api/v1/schema/parse", gin.H{"dbml": blog})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var g struct {
		Nodes []struct {
			ID string `json:"id"`
		} `json:"nodes"`
		Edges []struct {
			Source string `json:"source"`
			Target string `json:"target"`
		} `json:"edges"`
	}
	decode(t, w, &g)
	assert.Len(t, g.Nodes, 2)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, "users", g.Edges[0].Target)

	w = a.do(http.MethodPost, "/api/v1/schema/parse", gin.H{"dbml": "Table users {"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	env := decode(t, w, nil)
	assert.Equal(t, "error", env.Status)
	assert.NotEmpty(t, env.Error)

	w = a.do(http.MethodPost, "/api/v1/schema/parse", gin.H{"dbml": blog, "canvasState": gin.H{"viewport": gin.H{"zoom": -1}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodPost, "/api/v1/schema/import", gin.H{"sql": "CREATE TABLE users (id INT PRIMARY KEY);"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var imported struct {
		DBML string `json:"dbml"`
	}
	decode(t, w, &imported)
	assert.Contains(t, imported.DBML, "Table users")

	w = a.do(http.MethodPost, "/api/v1/schema/import", gin.H{"sql": "CREATE TABLE t (id INT);", "dialect": "db2"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodPost, "/api/v1/schema/export", gin.H{"dbml": blog, "kind": "png", "pixelRatio": 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))

	w = a.do(http.MethodPost, "/api/v1/schema/export", gin.H{"dbml": blog, "kind": "png", "pixelRatio": 1e12})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodPost, "/api/v1/schema/export", gin.H{"dbml": "", "kind": "svg"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestAuthFlow(t *testing.T) {
	a := newAPI(t)
	a.login("ada@example.com")

	w := a.do(http.MethodPost, "/api/v1/auth/register", gin.H{"email": "ada@example.com", "password": "password123"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = a.do(http.MethodPost, "/api/v1/auth/login", gin.H{"email": "ada@example.com", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.do(http.MethodPost, "/api/v1/auth/login", gin.H{"email": "ada@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "refresh_token", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	r.AddCookie(cookies[0])
	w = httptest.NewRecorder()
	a.router.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(http.MethodPost, "/api/v1/auth/logout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = a.do(http.MethodGet, "/api/v1/diagrams", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "revoked token")
}
