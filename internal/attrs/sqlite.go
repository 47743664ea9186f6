package attrs

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

var sqliteDialect = dialect{
	driver: "sqlite",
	schema: `CREATE TABLE IF NOT EXISTS tinkersheet_blocks (
	block_key    TEXT PRIMARY KEY,
	attrs        TEXT NOT NULL,
	file_version INTEGER NOT NULL DEFAULT 0,
	updated_at   INTEGER NOT NULL
)`,
	selectOne: `SELECT attrs, file_version FROM tinkersheet_blocks WHERE block_key = ?`,
	lockOne:   `SELECT attrs, file_version FROM tinkersheet_blocks WHERE block_key = ?`,
	upsert: `INSERT INTO tinkersheet_blocks (block_key, attrs, file_version, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(block_key) DO UPDATE SET
	attrs = excluded.attrs,
	file_version = MAX(tinkersheet_blocks.file_version, excluded.file_version),
	updated_at = excluded.updated_at`,
	list: `SELECT block_key FROM tinkersheet_blocks ORDER BY block_key`,
}

var sqlitePragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 10000",
	"PRAGMA synchronous = NORMAL",
}

// OpenSQLite opens (creating if needed) a SQLite-backed store at path.
// ":memory:" gives a private in-memory database.
func OpenSQLite(path string, retry RetryConfig, debug bool) (*SQL, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, &StoreError{Driver: "sqlite", Operation: "open", Err: fmt.Errorf("mkdir: %w", err)}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StoreError{Driver: "sqlite", Operation: "open", Err: err}
	}
	// One connection: SQLite has a single writer, and an in-memory
	// database only exists on the connection that created it.
	db.SetMaxOpenConns(1)

	for _, p := range sqlitePragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, &StoreError{Driver: "sqlite", Operation: "open", Err: fmt.Errorf("%s: %w", p, err)}
		}
	}

	s, err := newSQL(db, sqliteDialect, retry, debug)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}
