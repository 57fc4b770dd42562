// internal/store/sqlite.go
//
// SQLite-backed KV. The kv table is created by the boot migrations
// (sql/001_init.sql); this type only reads and upserts rows.

package store

import (
	"context"
	"database/sql"
	"errors"
)

type sqliteKV struct {
	db *sql.DB
}

// NewSQLite wraps an open database handle as a KV.
func NewSQLite(db *sql.DB) KV {
	return &sqliteKV{db: db}
}

func (s *sqliteKV) Get(ctx context.Context, profile, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE profile=? AND key=?`, profile, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *sqliteKV) Put(ctx context.Context, profile, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO kv (profile, key, value) VALUES (?,?,?)
        ON CONFLICT(profile, key) DO UPDATE SET value=excluded.value`,
		profile, key, value,
	)
	return err
}
