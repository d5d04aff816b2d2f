package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"library-backend/internal/engine"
	"library-backend/internal/metadata"
	"library-backend/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	store     *store.Store
	jwtSecret string
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(s *store.Store, jwtSecret string) *AuthHandler {
	return &AuthHandler{store: s, jwtSecret: jwtSecret}
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.BadRequestError("Invalid request body")
	}
	if body.Email == "" || body.Password == "" {
		return engine.UnauthorizedError("Email and password are required")
	}

	ctx := c.Context()

	user, err := h.findUserByEmail(ctx, strings.TrimSpace(strings.ToLower(body.Email)))
	if err != nil {
		return engine.UnauthorizedError("Invalid email or password")
	}

	passwordHash, _ := user["password_hash"].(string)
	if !CheckPassword(body.Password, passwordHash) {
		return engine.UnauthorizedError("Invalid email or password")
	}
	if active, _ := user["active"].(bool); !active {
		return engine.UnauthorizedError("Account is disabled")
	}

	userID, _ := store.ToInt64(user["id"])
	email, _ := user["email"].(string)
	pair, err := h.generateTokenPair(ctx, userID, email)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"data": pair})
}

// Refresh handles POST /api/v1/auth/refresh. The presented token is
// consumed and a new pair is issued.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.BadRequestError("Invalid request body")
	}
	if body.RefreshToken == "" {
		return engine.UnauthorizedError("Refresh token is required")
	}

	ctx := c.Context()
	d := h.store.Dialect

	pb := d.NewParamBuilder()
	row, err := store.QueryRow(ctx, h.store.DB, fmt.Sprintf(
		`SELECT rt.id, rt.user_id, rt.expires_at, u.email, u.active
		 FROM refresh_tokens rt
		 JOIN users u ON u.id = rt.user_id
		 WHERE rt.token = %s`, pb.Add(body.RefreshToken)), pb.Params()...)
	if err != nil {
		return engine.UnauthorizedError("Invalid refresh token")
	}
	store.NormalizeBooleans([]map[string]any{row}, []string{"active"})

	// Delete the used refresh token (rotation)
	h.deleteRefreshToken(ctx, body.RefreshToken)

	expiresAt, _ := store.ToTime(row["expires_at"])
	if time.Now().After(expiresAt) {
		return engine.UnauthorizedError("Refresh token expired")
	}
	if active, _ := row["active"].(bool); !active {
		return engine.UnauthorizedError("Account is disabled")
	}

	userID, _ := store.ToInt64(row["user_id"])
	email, _ := row["email"].(string)
	pair, err := h.generateTokenPair(ctx, userID, email)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"data": pair})
}

// Logout handles POST /api/v1/auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.BadRequestError("Invalid request body")
	}
	if body.RefreshToken == "" {
		return engine.UnauthorizedError("Refresh token is required")
	}

	h.deleteRefreshToken(c.Context(), body.RefreshToken)
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// Me handles GET /api/v1/auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user := GetUser(c)
	if user == nil {
		return engine.UnauthorizedError("Missing auth token")
	}
	return c.JSON(fiber.Map{"data": user})
}

// RegisterAuthRoutes registers auth routes on the given Fiber app.
func RegisterAuthRoutes(app *fiber.App, h *AuthHandler, authMW fiber.Handler) {
	auth := app.Group("/api/v1/auth")
	auth.Post("/register", h.Register)
	auth.Post("/login", h.Login)
	auth.Post("/refresh", h.Refresh)
	auth.Post("/logout", h.Logout)
	auth.Get("/me", authMW, h.Me)
}

// --- helpers ---

func (h *AuthHandler) findUserByEmail(ctx context.Context, email string) (map[string]any, error) {
	pb := h.store.Dialect.NewParamBuilder()
	row, err := store.QueryRow(ctx, h.store.DB, fmt.Sprintf(
		"SELECT id, email, password_hash, active FROM users WHERE email = %s", pb.Add(email)), pb.Params()...)
	if err != nil {
		return nil, err
	}
	store.NormalizeBooleans([]map[string]any{row}, []string{"active"})
	return row, nil
}

func (h *AuthHandler) deleteRefreshToken(ctx context.Context, token string) {
	pb := h.store.Dialect.NewParamBuilder()
	_, _ = store.Exec(ctx, h.store.DB,
		fmt.Sprintf("DELETE FROM refresh_tokens WHERE token = %s", pb.Add(token)), pb.Params()...)
}

func (h *AuthHandler) generateTokenPair(ctx context.Context, userID int64, email string) (*TokenPair, error) {
	user, err := LoadUserContext(ctx, h.store.DB, h.store.Dialect, userID, email)
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	return h.issue(ctx, user, userID)
}

func (h *AuthHandler) issue(ctx context.Context, user *metadata.UserContext, userID int64) (*TokenPair, error) {
	accessToken, err := GenerateAccessToken(user, h.jwtSecret)
	if err != nil {
		return nil, engine.NewAppError("INTERNAL_ERROR", 500, "Failed to generate access token")
	}

	refreshToken := GenerateRefreshToken()
	expiresAt := time.Now().UTC().Add(RefreshTokenTTL)

	pb := h.store.Dialect.NewParamBuilder()
	_, err = store.Exec(ctx, h.store.DB, fmt.Sprintf(
		"INSERT INTO refresh_tokens (user_id, token, expires_at) VALUES (%s, %s, %s)",
		pb.Add(userID), pb.Add(refreshToken), pb.Add(expiresAt)), pb.Params()...)
	if err != nil {
		return nil, engine.NewAppError("INTERNAL_ERROR", 500, "Failed to store refresh token")
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(AccessTokenTTL.Seconds()),
	}, nil
}
