package store

// PostgresDialect targets lib/pq.
type PostgresDialect struct{}

func NewPostgresDialect() *PostgresDialect { return &PostgresDialect{} }

func (d *PostgresDialect) Name() string { return "postgres" }

func (d *PostgresDialect) UpsertSQL(table string, columns []string, conflictColumn string, updateColumns []string) string {
	return excludedUpsert(table, columns, conflictColumn, updateColumns, "EXCLUDED")
}

func (d *PostgresDialect) ConfigureDB() []string {
	return []string{"SET TIME ZONE 'UTC'"}
}

var _ Dialect = (*PostgresDialect)(nil)
