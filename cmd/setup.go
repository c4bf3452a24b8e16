package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/recordkit/internal/shared"
)

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	dbConfig := r.config.Database
	r.logger.Info("initializing database", "driver", dbConfig.Driver, "dsn", dbConfig.DSN)

	db, err := shared.NewDatabase(dbConfig.Driver, dbConfig.DSN)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, dbConfig.DSN, dbConfig.MaxOpenConns, dbConfig.MaxIdleConns)

	r.logger.Info("running database migrations")
	applied, err := shared.RunMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	r.writePlain("✓ Database ready (%s, %d migrations applied)\n", dbConfig.DSN, applied)
	return nil
}

// SetupRollback reverts the most recently applied migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	dbConfig := r.config.Database

	db, err := shared.NewDatabase(dbConfig.Driver, dbConfig.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	migration, err := shared.RollbackMigration(db)
	if err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}
	if migration == nil {
		r.writePlain("No migrations to roll back\n")
		return nil
	}

	r.logger.Info("rolled back migration", "version", migration.Version, "name", migration.Name)
	r.writePlain("✓ Rolled back %04d_%s\n", migration.Version, migration.Name)
	return nil
}

// SetupConfig writes the default configuration template.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("output")
	if path == "" {
		return fmt.Errorf("%w: --output cannot be empty", shared.ErrMissingArgument)
	}

	if cmd.Bool("force") {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove existing config: %w", err)
		}
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("✓ Configuration written to %s\n", path)
	return nil
}
