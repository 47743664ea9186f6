package attrs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/livetemplate/tinkersheet"
)

// dialect holds the statements that differ between SQL backends.
type dialect struct {
	driver    string
	schema    string
	selectOne string // key -> attrs, file_version
	lockOne   string // as selectOne, taking a row lock where supported
	upsert    string // key, attrs, file_version, updated_at
	list      string
}

// SQL stores one row per block: the attributes as a JSON document plus a
// file_version column that the upsert only ever raises.
type SQL struct {
	db    *sql.DB
	d     dialect
	retry RetryConfig
	debug bool
	hub   hub

	// writes serializes read-merge-write cycles within this process.
	writes sync.Mutex
}

func newSQL(db *sql.DB, d dialect, retry RetryConfig, debug bool) (*SQL, error) {
	if _, err := db.Exec(d.schema); err != nil {
		return nil, &StoreError{Driver: d.driver, Operation: "open", Err: fmt.Errorf("create schema: %w", err)}
	}
	return &SQL{db: db, d: d, retry: retry, debug: debug}, nil
}

// DB exposes the underlying handle.
func (s *SQL) DB() *sql.DB { return s.db }

func (s *SQL) Read(ctx context.Context, key string) (tinkersheet.Attributes, error) {
	var a tinkersheet.Attributes
	err := withRetry(ctx, s.d.driver, s.retry, func(ctx context.Context) error {
		var err error
		a, err = s.scan(s.db.QueryRowContext(ctx, s.d.selectOne, key), key)
		return err
	})
	return a, err
}

func (s *SQL) scan(row *sql.Row, key string) (tinkersheet.Attributes, error) {
	var (
		raw         string
		fileVersion int64
		a           tinkersheet.Attributes
	)
	if err := row.Scan(&raw, &fileVersion); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return a, notFound(s.d.driver, key)
		}
		return a, &StoreError{Driver: s.d.driver, Operation: "read", Key: key, Err: err}
	}
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return a, &StoreError{Driver: s.d.driver, Operation: "read", Key: key, Err: fmt.Errorf("decode attributes: %w", err)}
	}
	a.FileVersion = max(a.FileVersion, fileVersion)
	return a, nil
}

func (s *SQL) Write(ctx context.Context, key string, p tinkersheet.Patch) error {
	s.writes.Lock()
	var prev, next tinkersheet.Attributes
	err := withRetry(ctx, s.d.driver, s.retry, func(ctx context.Context) error {
		var err error
		prev, next, err = s.writeTx(ctx, key, p)
		return err
	})
	s.writes.Unlock()
	if err != nil {
		return err
	}

	if s.debug {
		log.Printf("[Store] %s %s: wrote %v", s.d.driver, key, p.Keys())
	}
	s.hub.notify(Change{Key: key, Prev: prev, Next: next})
	return nil
}

func (s *SQL) writeTx(ctx context.Context, key string, p tinkersheet.Patch) (prev, next tinkersheet.Attributes, err error) {
	fail := func(err error) (tinkersheet.Attributes, tinkersheet.Attributes, error) {
		return prev, next, &StoreError{Driver: s.d.driver, Operation: "write", Key: key, Err: err}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fail(err)
	}
	defer tx.Rollback()

	prev, err = s.scan(tx.QueryRowContext(ctx, s.d.lockOne, key), key)
	if err != nil && !IsNotFound(err) {
		return prev, next, err
	}

	next = merge(prev, p)
	data, err := json.Marshal(next)
	if err != nil {
		return fail(fmt.Errorf("encode attributes: %w", err))
	}
	if _, err := tx.ExecContext(ctx, s.d.upsert, key, string(data), next.FileVersion, time.Now().UnixMilli()); err != nil {
		return fail(err)
	}
	if err := tx.Commit(); err != nil {
		return fail(err)
	}
	return prev, next, nil
}

func (s *SQL) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.d.list)
	if err != nil {
		return nil, &StoreError{Driver: s.d.driver, Operation: "list", Err: err}
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, &StoreError{Driver: s.d.driver, Operation: "list", Err: err}
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQL) Subscribe(key string, fn Listener) func() {
	return s.hub.subscribe(key, fn)
}

// Close releases the database connection
func (s *SQL) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
