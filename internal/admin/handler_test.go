package admin

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-backend/internal/config"
	"library-backend/internal/engine"
	"library-backend/internal/metadata"
	"library-backend/internal/query"
	"library-backend/internal/store"
)

func newAdminApp(t *testing.T) *fiber.App {
	t.Helper()
	ctx := context.Background()
	s, err := store.New(ctx, config.DatabaseConfig{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Migrate(ctx))

	app := fiber.New(fiber.Config{ErrorHandler: engine.ErrorHandler})
	h := NewHandler(s, metadata.LibraryRegistry(), query.NewComposer(query.DefaultAppliers()...))
	RegisterAdminRoutes(app, h)
	return app
}

func get(t *testing.T, app *fiber.App, path string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	return resp.StatusCode, body
}

func TestListEntities(t *testing.T) {
	app := newAdminApp(t)

	status, body := get(t, app, "/api/v1/_admin/entities")
	require.Equal(t, http.StatusOK, status)
	data := body["data"].([]any)
	require.Len(t, data, 6)

	catalogs := data[2].(map[string]any)
	assert.Equal(t, "catalogs", catalogs["name"])
	assert.Equal(t, []any{"authors", "copies", "publisher"}, catalogs["relations"])

	roles := data[4].(map[string]any)
	assert.Equal(t, "roles", roles["name"])
	assert.Equal(t, []any{"name"}, roles["columns"])
}

func TestGetEntity(t *testing.T) {
	app := newAdminApp(t)

	status, body := get(t, app, "/api/v1/_admin/entities/copies")
	require.Equal(t, http.StatusOK, status)
	entity := body["data"].(map[string]any)
	assert.Equal(t, "copy", entity["singular"])

	status, body = get(t, app, "/api/v1/_admin/entities/loans")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "UNKNOWN_ENTITY", body["error"].(map[string]any)["code"])
}

func TestListRelations(t *testing.T) {
	app := newAdminApp(t)

	_, body := get(t, app, "/api/v1/_admin/relations")
	data := body["data"].([]any)

	var btm int
	for _, r := range data {
		if r.(map[string]any)["kind"] == metadata.BelongsToMany {
			btm++
		}
	}
	assert.Equal(t, 4, btm, "authors/catalogs and roles/permissions, both directions")
}

func TestStatus(t *testing.T) {
	app := newAdminApp(t)

	status, body := get(t, app, "/api/v1/_admin/status")
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, "sqlite", data["driver"])
	assert.Equal(t, float64(3), data["migration_version"])
	assert.Equal(t, []any{"include", "filter", "select", "sort"}, data["query_features"])
}
