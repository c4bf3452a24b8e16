package shared

import (
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Drivers lists the database/sql driver names recordkit registers.
//
//   - sqlite3: github.com/mattn/go-sqlite3 (cgo)
//   - sqlite: modernc.org/sqlite (pure Go)
//   - mysql: github.com/go-sql-driver/mysql, DSNs need parseTime=true
//   - postgres: github.com/lib/pq
var Drivers = []string{"sqlite3", "sqlite", "mysql", "postgres"}

// NewDatabase opens a connection with the named driver and pings it.
// The dsn can be ":memory:" for an in-memory SQLite database, which is pinned to one connection.
func NewDatabase(driver, dsn string) (*sqlx.DB, error) {
	if driver == "" {
		driver = "sqlite3"
	}

	known := false
	for _, d := range Drivers {
		if d == driver {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("%w: unsupported database driver %q", ErrInvalidConfig, driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if IsMemoryDSN(dsn) {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// IsMemoryDSN reports whether dsn names an in-memory SQLite database.
func IsMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// ConfigureDatabase sets connection pool settings for the database.
// In-memory databases keep their single connection so every query sees the same data.
func ConfigureDatabase(db *sqlx.DB, dsn string, maxOpenConns, maxIdleConns int) {
	if IsMemoryDSN(dsn) {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		return
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}
}
