package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"faaxis/internal/config"
	"faaxis/internal/utils"
)

var (
	migrator *migrate.Migrator
	db       *bun.DB
	logger   *logrus.Logger
)

func main() {
	logger = logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	rootCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tool for the FA Axis auth service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations["db"] == "skip" {
				return nil
			}

			cfg, err := loadMigrationConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			db, err = setupDatabase(cfg, logger)
			if err != nil {
				return err
			}

			migrator = migrate.NewMigrator(db, Migrations)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if db != nil {
				db.Close()
			}
		},
	}

	rootCmd.AddCommand(
		createInitCmd(),
		createUpCmd(),
		createDownCmd(),
		createStatusCmd(),
		createResetCmd(),
		createCreateCmd(),
		createHashPasswordCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Command failed: %v", err)
	}
}

func setupDatabase(cfg *config.Config, logger *logrus.Logger) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN())))
	db := bun.NewDB(sqldb, pgdialect.New())

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Info("Database connected successfully")
	return db, nil
}

// loadMigrationConfig reads only the database section so migrations run
// without a JWT secret or email settings.
func loadMigrationConfig() (*config.Config, error) {
	cfg := &config.Config{}

	// Set database defaults
	cfg.Database.Host = getEnvOrDefault("DATABASE_HOST", "localhost")
	cfg.Database.Port = getEnvOrDefault("DATABASE_PORT", "5432")
	cfg.Database.User = getEnvOrDefault("DATABASE_USER", "faaxis")
	cfg.Database.Password = getEnvOrDefault("DATABASE_PASSWORD", "password")
	cfg.Database.Name = getEnvOrDefault("DATABASE_NAME", "faaxis")
	cfg.Database.SSLMode = getEnvOrDefault("DATABASE_SSL_MODE", "disable")

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func createInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the bun_migrations bookkeeping tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := migrator.Init(cmd.Context()); err != nil {
				return fmt.Errorf("init migrations: %w", err)
			}
			logger.Info("Migration tables ready")
			return nil
		},
	}
}

func createUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations to the users schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := migrator.Lock(ctx); err != nil {
				return fmt.Errorf("lock migrations: %w", err)
			}
			defer migrator.Unlock(ctx) //nolint:errcheck

			group, err := migrator.Migrate(ctx)
			if err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
			if group.IsZero() {
				logger.Info("Schema is up to date")
				return nil
			}

			logMigrationGroup(group, "Applied migrations")
			return nil
		},
	}
}

func createDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recently applied migration group",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := migrator.Lock(ctx); err != nil {
				return fmt.Errorf("lock migrations: %w", err)
			}
			defer migrator.Unlock(ctx) //nolint:errcheck

			group, err := migrator.Rollback(ctx)
			if err != nil {
				return fmt.Errorf("roll back migrations: %w", err)
			}
			if group.IsZero() {
				logger.Info("Nothing to roll back")
				return nil
			}

			logMigrationGroup(group, "Rolled back migrations")
			return nil
		},
	}
}

func createStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List migrations and when each was applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			ms, err := migrator.MigrationsWithStatus(cmd.Context())
			if err != nil {
				return fmt.Errorf("read migration status: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, m := range ms {
				applied := "pending"
				if m.IsApplied() {
					applied = m.MigratedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(out, "%-45s %s\n", m.Name, applied)
			}
			fmt.Fprintf(out, "last group: %s\n", ms.LastGroup())
			return nil
		},
	}
}

func createResetCmd() *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Roll back every migration, dropping the users table and all accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return errors.New("reset deletes every account; rerun with --yes to confirm")
			}

			ctx := cmd.Context()
			for {
				group, err := migrator.Rollback(ctx)
				if err != nil {
					return fmt.Errorf("roll back migrations: %w", err)
				}
				if group.IsZero() {
					break
				}
				logMigrationGroup(group, "Rolled back migrations")
			}

			logger.Info("Database reset")
			return nil
		},
	}
	cmd.Flags().BoolVar(&confirmed, "yes", false, "confirm that all accounts may be deleted")
	return cmd
}

func createCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create [name]",
		Short: "Scaffold a new Go migration in this directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := migrator.CreateGoMigration(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("create migration: %w", err)
			}
			logger.WithField("file", file.Path).Info("Created migration")
			return nil
		},
	}
}

func logMigrationGroup(group *migrate.MigrationGroup, msg string) {
	names := make([]string, 0, len(group.Migrations))
	for _, m := range group.Migrations {
		names = append(names, m.Name)
	}
	logger.WithFields(logrus.Fields{
		"group":      group.ID,
		"migrations": names,
	}).Info(msg)
}

// createHashPasswordCmd prints a bcrypt hash suitable for ADMIN_SEED_PASSWORD_HASH.
func createHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "hash-password [password]",
		Short:       "Print a bcrypt hash for seeding the admin account",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"db": "skip"},
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := utils.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
