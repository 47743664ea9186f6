package attrs

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

var postgresDialect = dialect{
	driver: "postgres",
	schema: `CREATE TABLE IF NOT EXISTS tinkersheet_blocks (
	block_key    TEXT PRIMARY KEY,
	attrs        JSONB NOT NULL,
	file_version BIGINT NOT NULL DEFAULT 0,
	updated_at   BIGINT NOT NULL
)`,
	selectOne: `SELECT attrs::text, file_version FROM tinkersheet_blocks WHERE block_key = $1`,
	lockOne:   `SELECT attrs::text, file_version FROM tinkersheet_blocks WHERE block_key = $1 FOR UPDATE`,
	upsert: `INSERT INTO tinkersheet_blocks (block_key, attrs, file_version, updated_at)
VALUES ($1, $2::jsonb, $3, $4)
ON CONFLICT (block_key) DO UPDATE SET
	attrs = EXCLUDED.attrs,
	file_version = GREATEST(tinkersheet_blocks.file_version, EXCLUDED.file_version),
	updated_at = EXCLUDED.updated_at`,
	list: `SELECT block_key FROM tinkersheet_blocks ORDER BY block_key`,
}

// OpenPostgres connects to PostgreSQL for hosts shared by several servers.
// Row locks keep concurrent writers to one block from losing updates.
func OpenPostgres(dsn string, retry RetryConfig, debug bool) (*SQL, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, &StoreError{Driver: "postgres", Operation: "open", Err: err}
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &StoreError{Driver: "postgres", Operation: "open", Err: err, Retryable: true}
	}

	s, err := newSQL(db, postgresDialect, retry, debug)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}
