package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Bootstrap migrates the schema and makes sure an administrator can log in.
func (s *Store) Bootstrap(ctx context.Context) error {
	if err := s.Migrate(ctx); err != nil {
		return fmt.Errorf("bootstrap schema: %w", err)
	}
	if err := s.seedAdminUser(ctx); err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}
	return nil
}

func (s *Store) seedAdminUser(ctx context.Context) error {
	row, err := QueryRow(ctx, s.DB, "SELECT COUNT(*) AS count FROM users")
	if err != nil {
		return err
	}
	if n, _ := ToInt64(row["count"]); n > 0 {
		return nil
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte("changeme"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	pb := s.Dialect.NewParamBuilder()
	created, err := QueryRow(ctx, tx, fmt.Sprintf(
		"INSERT INTO users (name, email, password_hash, created_at, updated_at) VALUES (%s, %s, %s, %s, %s) RETURNING id",
		pb.Add("Administrator"), pb.Add("admin@localhost"), pb.Add(string(hashBytes)), pb.Add(now), pb.Add(now)),
		pb.Params()...)
	if err != nil {
		return err
	}

	pb = s.Dialect.NewParamBuilder()
	if _, err := Exec(ctx, tx, fmt.Sprintf("INSERT INTO user_roles (user_id, role_name) VALUES (%s, %s)",
		pb.Add(created["id"]), pb.Add("admin")), pb.Params()...); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	log.Println("WARNING: Default admin user created (admin@localhost / changeme). Change the password immediately.")
	return nil
}
