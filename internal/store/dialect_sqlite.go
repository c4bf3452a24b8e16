package store

// SQLiteDialect targets mattn/go-sqlite3 and modernc.org/sqlite.
type SQLiteDialect struct{}

func NewSQLiteDialect() *SQLiteDialect { return &SQLiteDialect{} }

func (d *SQLiteDialect) Name() string { return "sqlite" }

func (d *SQLiteDialect) UpsertSQL(table string, columns []string, conflictColumn string, updateColumns []string) string {
	return excludedUpsert(table, columns, conflictColumn, updateColumns, "excluded")
}

func (d *SQLiteDialect) ConfigureDB() []string {
	return []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
}

var _ Dialect = (*SQLiteDialect)(nil)
