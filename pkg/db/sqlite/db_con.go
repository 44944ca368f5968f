package sqlite

import (
	"fmt"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/config"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

func NewSqliteDB(c *config.Config) (*sqlx.DB, error) {
	return Open(c.Sqlite.Path)
}

// Open connects to the database file at path. SQLite serializes writers, so the
// pool is held to one connection.
func Open(path string) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sqlx.Connect(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}
