package main

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(addTokenIndexesUp, addTokenIndexesDown)
}

// Migration: 20240101000002_add_token_indexes
func addTokenIndexesUp(ctx context.Context, db *bun.DB) error {
	queries := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_reset_token ON users(reset_token) WHERE reset_token IS NOT NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_verification_token ON users(verification_token) WHERE verification_token IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_users_is_admin ON users(is_admin) WHERE is_admin`,
		`CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at)`,
	}

	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

func addTokenIndexesDown(ctx context.Context, db *bun.DB) error {
	queries := []string{
		`DROP INDEX IF EXISTS idx_users_reset_token`,
		`DROP INDEX IF EXISTS idx_users_verification_token`,
		`DROP INDEX IF EXISTS idx_users_is_admin`,
		`DROP INDEX IF EXISTS idx_users_created_at`,
	}

	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to drop index: %w", err)
		}
	}

	return nil
}
