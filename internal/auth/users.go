package auth

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"library-backend/internal/metadata"
	"library-backend/internal/store"
)

// LoadUserContext resolves the roles and permissions of a user.
func LoadUserContext(ctx context.Context, q store.Querier, d store.Dialect, userID int64, email string) (*metadata.UserContext, error) {
	pb := d.NewParamBuilder()
	rows, err := store.QueryRows(ctx, q, fmt.Sprintf(
		"SELECT role_name FROM user_roles WHERE user_id = %s ORDER BY role_name", pb.Add(userID)), pb.Params()...)
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	roles := column(rows, "role_name")

	perms := []string{}
	if len(roles) > 0 {
		pb = d.NewParamBuilder()
		anyRoles := make([]any, len(roles))
		for i, r := range roles {
			anyRoles[i] = r
		}
		rows, err = store.QueryRows(ctx, q, fmt.Sprintf(
			"SELECT DISTINCT permission_name FROM role_permissions WHERE %s ORDER BY permission_name",
			d.InExpr("role_name", pb, anyRoles)), pb.Params()...)
		if err != nil {
			return nil, fmt.Errorf("load permissions: %w", err)
		}
		perms = column(rows, "permission_name")
	}

	return &metadata.UserContext{
		ID:          strconv.FormatInt(userID, 10),
		Email:       email,
		Roles:       roles,
		Permissions: perms,
	}, nil
}

// CreateUser inserts an active user with the given roles and returns its id.
func CreateUser(ctx context.Context, s *store.Store, name, email, password string, roles []string) (int64, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if name == "" || email == "" || password == "" {
		return 0, fmt.Errorf("name, email and password are required")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return 0, err
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	pb := s.Dialect.NewParamBuilder()
	row, err := store.QueryRow(ctx, tx, fmt.Sprintf(
		"INSERT INTO users (name, email, password_hash, created_at, updated_at) VALUES (%s, %s, %s, %s, %s) RETURNING id",
		pb.Add(name), pb.Add(email), pb.Add(hash), pb.Add(now), pb.Add(now)), pb.Params()...)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", store.MapError(s.Dialect, err))
	}
	id, _ := store.ToInt64(row["id"])

	for _, role := range roles {
		pb = s.Dialect.NewParamBuilder()
		if _, err := store.Exec(ctx, tx, fmt.Sprintf("INSERT INTO user_roles (user_id, role_name) VALUES (%s, %s)",
			pb.Add(id), pb.Add(role)), pb.Params()...); err != nil {
			return 0, fmt.Errorf("assign role %s: %w", role, store.MapError(s.Dialect, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

func column(rows []map[string]any, name string) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if s, ok := r[name].(string); ok {
			out = append(out, s)
		}
	}
	return out
}
