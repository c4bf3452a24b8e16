package store

import (
	"fmt"
	"strings"
)

// MySQLDialect targets go-sql-driver/mysql. DSNs need parseTime=true for time columns.
type MySQLDialect struct{}

func NewMySQLDialect() *MySQLDialect { return &MySQLDialect{} }

func (d *MySQLDialect) Name() string { return "mysql" }

// UpsertSQL uses ON DUPLICATE KEY UPDATE; conflictColumn is implied by the primary key.
func (d *MySQLDialect) UpsertSQL(table string, columns []string, conflictColumn string, updateColumns []string) string {
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), namedValues(columns))
	if len(updateColumns) == 0 {
		return fmt.Sprintf("%s ON DUPLICATE KEY UPDATE %s = %s", insert, conflictColumn, conflictColumn)
	}

	parts := make([]string, len(updateColumns))
	for i, col := range updateColumns {
		parts[i] = fmt.Sprintf("%s = VALUES(%s)", col, col)
	}
	return fmt.Sprintf("%s ON DUPLICATE KEY UPDATE %s", insert, strings.Join(parts, ", "))
}

func (d *MySQLDialect) ConfigureDB() []string {
	return []string{
		"SET SESSION sql_mode='STRICT_TRANS_TABLES,NO_ZERO_IN_DATE,NO_ZERO_DATE,ERROR_FOR_DIVISION_BY_ZERO,NO_ENGINE_SUBSTITUTION'",
		"SET time_zone = '+00:00'",
	}
}

var _ Dialect = (*MySQLDialect)(nil)
