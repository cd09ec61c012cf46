package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens the engine's SQLite database at path with WAL mode, a busy
// timeout, and foreign keys on, mirroring the teacher's single-file
// embedded-database habit. A single connection is enforced: this package's
// repository methods never hold a transaction across a remote call, and a
// single connection makes that true by construction rather than by
// discipline.
func Open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}
