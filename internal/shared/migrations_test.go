package shared

import (
	"testing"
)

func TestMigrationRunner(t *testing.T) {
	t.Run("loadMigrations", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}

		if len(migrations) == 0 {
			t.Fatal("expected at least one migration")
		}

		for i := 1; i < len(migrations); i++ {
			if migrations[i].Version <= migrations[i-1].Version {
				t.Errorf("migrations not sorted: version %d comes after %d", migrations[i].Version, migrations[i-1].Version)
			}
		}

		for _, m := range migrations {
			if m.Up == "" {
				t.Errorf("migration version %d missing up SQL", m.Version)
			}
			if m.Down == "" {
				t.Errorf("migration version %d missing down SQL", m.Version)
			}
		}

		if migrations[0].Name != "create_notes" {
			t.Errorf("expected first migration create_notes, got %q", migrations[0].Name)
		}
	})

	t.Run("RunMigrations And Rollback", func(t *testing.T) {
		db, err := NewDatabase("sqlite3", ":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		applied, err := RunMigrations(db)
		if err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
		if applied == 0 {
			t.Error("expected at least one migration to be applied")
		}

		var count int
		if err := db.Get(&count, "SELECT COUNT(*) FROM schema_migrations"); err != nil {
			t.Fatalf("failed to query schema_migrations: %v", err)
		}
		if count != applied {
			t.Errorf("expected %d recorded migrations, got %d", applied, count)
		}

		if _, err := db.Exec("SELECT 1 FROM notes LIMIT 1"); err != nil {
			t.Errorf("notes table should exist after migrations: %v", err)
		}

		m, err := RollbackMigration(db)
		if err != nil {
			t.Fatalf("failed to rollback migration: %v", err)
		}
		if m == nil {
			t.Fatal("expected rolled back migration")
		}

		var newCount int
		if err := db.Get(&newCount, "SELECT COUNT(*) FROM schema_migrations"); err != nil {
			t.Fatalf("failed to query schema_migrations after rollback: %v", err)
		}
		if newCount >= count {
			t.Errorf("expected migration count to decrease after rollback, got %d (was %d)", newCount, count)
		}
	})

	t.Run("Rollback without migrations", func(t *testing.T) {
		db, err := NewDatabase("sqlite3", ":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if _, err := RollbackMigration(db); err == nil {
			t.Error("expected error rolling back an empty database")
		}
	})

	t.Run("Idempotent Migrations", func(t *testing.T) {
		db, err := NewDatabase("sqlite", ":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if _, err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations first time: %v", err)
		}

		applied, err := RunMigrations(db)
		if err != nil {
			t.Fatalf("failed to run migrations second time: %v", err)
		}
		if applied != 0 {
			t.Errorf("expected no migrations on second run, got %d", applied)
		}

		var count int
		if err := db.Get(&count, "SELECT COUNT(*) FROM schema_migrations"); err != nil {
			t.Fatalf("failed to query schema_migrations: %v", err)
		}

		migrations, _ := loadMigrations()
		if count != len(migrations) {
			t.Errorf("expected %d migrations to be applied, got %d", len(migrations), count)
		}
	})
}
