package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(seedAdminUp, seedAdminDown)
}

// Migration: 20240101000003_seed_admin
//
// The admin account is only seeded when ADMIN_SEED_EMAIL and
// ADMIN_SEED_PASSWORD_HASH are both set. The hash must be a bcrypt hash.
func seedAdminUp(ctx context.Context, db *bun.DB) error {
	email, hash := seedAdminCredentials()
	if email == "" || hash == "" {
		logger.Info("ADMIN_SEED_EMAIL or ADMIN_SEED_PASSWORD_HASH not set, skipping admin seed")
		return nil
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, is_admin, email_verified)
		VALUES (?, ?, true, true)
		ON CONFLICT (username) DO UPDATE SET is_admin = true`,
		email, hash,
	)
	if err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	return nil
}

func seedAdminDown(ctx context.Context, db *bun.DB) error {
	email, _ := seedAdminCredentials()
	if email == "" {
		return nil
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, email); err != nil {
		return fmt.Errorf("failed to remove seeded admin: %w", err)
	}

	return nil
}

func seedAdminCredentials() (string, string) {
	email := strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_SEED_EMAIL")))
	return email, os.Getenv("ADMIN_SEED_PASSWORD_HASH")
}
