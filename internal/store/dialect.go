package store

import (
	"fmt"
	"strings"
)

// Dialect wraps the SQL differences between supported databases.
type Dialect interface {
	// Name returns the dialect name ("sqlite", "mysql", "postgres").
	Name() string

	// UpsertSQL returns an INSERT that updates updateColumns when conflictColumn already exists.
	// Values use sqlx named parameters (:column).
	UpsertSQL(table string, columns []string, conflictColumn string, updateColumns []string) string

	// ConfigureDB returns statements to run once after connecting.
	ConfigureDB() []string
}

// DialectFor resolves the [Dialect] for a database/sql driver name.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "sqlite3", "sqlite":
		return NewSQLiteDialect(), nil
	case "mysql":
		return NewMySQLDialect(), nil
	case "postgres", "postgresql", "pgx":
		return NewPostgresDialect(), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

func namedValues(columns []string) string {
	named := make([]string, len(columns))
	for i, col := range columns {
		named[i] = ":" + col
	}
	return strings.Join(named, ", ")
}

// excludedUpsert builds the ON CONFLICT form shared by SQLite and PostgreSQL.
func excludedUpsert(table string, columns []string, conflictColumn string, updateColumns []string, excluded string) string {
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), namedValues(columns))
	if len(updateColumns) == 0 {
		return fmt.Sprintf("%s ON CONFLICT (%s) DO NOTHING", insert, conflictColumn)
	}

	parts := make([]string, len(updateColumns))
	for i, col := range updateColumns {
		parts[i] = fmt.Sprintf("%s = %s.%s", col, excluded, col)
	}
	return fmt.Sprintf("%s ON CONFLICT (%s) DO UPDATE SET %s", insert, conflictColumn, strings.Join(parts, ", "))
}
