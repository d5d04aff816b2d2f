package auth

import (
	"bytes"
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
	"library-backend/internal/store"
)

const testSecret = "test-secret"

func newAuthApp(t *testing.T) (*fiber.App, *store.Store) {
	t.Helper()
	ctx := context.Background()
	s, err := store.New(ctx, config.DatabaseConfig{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Bootstrap(ctx))

	app := fiber.New(fiber.Config{ErrorHandler: engine.ErrorHandler})
	authMW := AuthMiddleware(testSecret)
	RegisterAuthRoutes(app, NewAuthHandler(s, testSecret), authMW)
	app.Get("/guarded", authMW, RequirePermission(engine.EnumPermission), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/whoami", OptionalAuthMiddleware(testSecret), func(c *fiber.Ctx) error {
		if user := GetUser(c); user != nil {
			return c.SendString(user.Email)
		}
		return c.SendString("anonymous")
	})
	return app, s
}

func call(t *testing.T, app *fiber.App, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func login(t *testing.T, app *fiber.App, email, password string) TokenPair {
	t.Helper()
	status, raw := call(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, status, string(raw))
	var resp struct {
		Data TokenPair `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp.Data
}

func TestLogin_SeededAdmin(t *testing.T) {
	app, _ := newAuthApp(t)

	pair := login(t, app, "Admin@Localhost", "changeme")
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, 900, pair.ExpiresIn)

	claims, err := ParseAccessToken(pair.AccessToken, testSecret)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin"}, claims.Roles)

	status, raw := call(t, app, http.MethodGet, "/api/v1/auth/me", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), `"email":"admin@localhost"`)
}

func TestLogin_Failures(t *testing.T) {
	app, s := newAuthApp(t)

	status, _ := call(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "admin@localhost", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = call(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "nobody@localhost", "password": "changeme"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = call(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": ""})
	assert.Equal(t, http.StatusUnauthorized, status)

	_, err := store.Exec(context.Background(), s.DB, "UPDATE users SET active = 0")
	require.NoError(t, err)
	status, raw := call(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "admin@localhost", "password": "changeme"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, string(raw), "Account is disabled")
}

func TestRefresh_RotatesToken(t *testing.T) {
	app, _ := newAuthApp(t)
	pair := login(t, app, "admin@localhost", "changeme")

	status, raw := call(t, app, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refresh_token": pair.RefreshToken})
	require.Equal(t, http.StatusOK, status, string(raw))

	// The consumed token cannot be replayed.
	status, _ = call(t, app, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refresh_token": pair.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestLogout_RevokesRefreshToken(t *testing.T) {
	app, _ := newAuthApp(t)
	pair := login(t, app, "admin@localhost", "changeme")

	status, _ := call(t, app, http.MethodPost, "/api/v1/auth/logout", "", map[string]string{"refresh_token": pair.RefreshToken})
	require.Equal(t, http.StatusOK, status)

	status, _ = call(t, app, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refresh_token": pair.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestMiddlewareAndPermissions(t *testing.T) {
	app, s := newAuthApp(t)

	status, _ := call(t, app, http.MethodGet, "/guarded", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = call(t, app, http.MethodGet, "/guarded", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	_, err := CreateUser(context.Background(), s, "Ana", "ana@library.test", "s3cret", nil)
	require.NoError(t, err)
	noRoles := login(t, app, "ana@library.test", "s3cret")
	status, _ = call(t, app, http.MethodGet, "/guarded", noRoles.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	_, err = CreateUser(context.Background(), s, "Luis", "luis@library.test", "s3cret", []string{"cataloger"})
	require.NoError(t, err)
	cataloger := login(t, app, "luis@library.test", "s3cret")
	status, _ = call(t, app, http.MethodGet, "/guarded", cataloger.AccessToken, nil)
	assert.Equal(t, http.StatusOK, status)

	claims, err := ParseAccessToken(cataloger.AccessToken, testSecret)
	require.NoError(t, err)
	assert.Contains(t, claims.Permissions, "catalog.store")
	assert.NotContains(t, claims.Permissions, "catalog.destroy")
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	_, s := newAuthApp(t)

	_, err := CreateUser(context.Background(), s, "Admin", "ADMIN@localhost", "x", nil)
	assert.ErrorIs(t, err, store.ErrUniqueViolation)

	_, err = CreateUser(context.Background(), s, "Ghost", "ghost@localhost", "x", []string{"librarian"})
	assert.ErrorIs(t, err, store.ErrForeignKeyViolation)
}

func validationRules(t *testing.T, raw []byte) map[string]string {
	t.Helper()
	var resp struct {
		Error engine.AppError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &resp), string(raw))
	require.Equal(t, "VALIDATION_FAILED", resp.Error.Code)
	out := make(map[string]string, len(resp.Error.Details))
	for _, d := range resp.Error.Details {
		out[d.Field] = d.Rule
	}
	return out
}

func TestRegister_SignsInWithoutRoles(t *testing.T) {
	app, _ := newAuthApp(t)

	status, raw := call(t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name":                  "Ana Reader",
		"email":                 "  Ana@Example.com ",
		"password":              "s3cret-pass",
		"password_confirmation": "s3cret-pass",
	})
	require.Equal(t, http.StatusCreated, status, string(raw))
	var resp struct {
		Data TokenPair `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &resp))
	assert.NotEmpty(t, resp.Data.RefreshToken)

	claims, err := ParseAccessToken(resp.Data.AccessToken, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", claims.Email)
	assert.Empty(t, claims.Roles)
	assert.Empty(t, claims.Permissions)

	login(t, app, "ana@example.com", "s3cret-pass")
}

func TestRegister_Validation(t *testing.T) {
	app, _ := newAuthApp(t)

	status, raw := call(t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name":                  " ",
		"email":                 "not-an-email",
		"password":              "one",
		"password_confirmation": "two",
	})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, map[string]string{"name": "required", "email": "email", "password": "confirmed"}, validationRules(t, raw))

	status, raw = call(t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{"name": "Ana"})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, map[string]string{"email": "required", "password": "required"}, validationRules(t, raw))
}

func TestRegister_DuplicateEmail(t *testing.T) {
	app, _ := newAuthApp(t)

	status, raw := call(t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name":                  "Second Admin",
		"email":                 "ADMIN@localhost",
		"password":              "changeme",
		"password_confirmation": "changeme",
	})
	require.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, map[string]string{"email": "unique"}, validationRules(t, raw))
}

func TestOptionalAuthMiddleware(t *testing.T) {
	app, _ := newAuthApp(t)

	status, raw := call(t, app, http.MethodGet, "/whoami", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "anonymous", string(raw))

	pair := login(t, app, "admin@localhost", "changeme")
	status, raw = call(t, app, http.MethodGet, "/whoami", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "admin@localhost", string(raw))

	status, _ = call(t, app, http.MethodGet, "/whoami", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}
