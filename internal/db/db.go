// Package db persists the session history in a single sqlite database: the
// history list is stored as one JSON blob under a fixed key, and every write
// is appended to an audit table for inspection through the debug routes.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/banshee-data/track.monitor/internal/session"
	_ "modernc.org/sqlite"
)

// HistoryKey is the kv key holding the history blob.
const HistoryKey = "atc_history_v2"

// maxWriteLog bounds the history_writes audit table.
const maxWriteLog = 1000

type DB struct {
	*sql.DB
	path string
}

// NewDB opens (creating if needed) the database at path and applies all
// pending migrations.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenDB opens the database without migrating it.
func OpenDB(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?%s", path, url.Values{"_pragma": {
		"journal_mode(WAL)",
		"busy_timeout(5000)",
		"synchronous(NORMAL)",
		"temp_store(MEMORY)",
	}}.Encode())
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return &DB{DB: sqlDB, path: path}, nil
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Get returns the value stored under key, or nil if there is none.
func (db *DB) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

// LoadHistory implements session.Persister.
func (db *DB) LoadHistory(ctx context.Context) ([]session.Record, error) {
	blob, err := db.Get(ctx, HistoryKey)
	if err != nil || blob == nil {
		return nil, err
	}
	var records []session.Record
	if err := json.Unmarshal(blob, &records); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	return records, nil
}

// SaveHistory implements session.Persister. The blob is replaced and the
// write is logged in one transaction.
func (db *DB) SaveHistory(ctx context.Context, records []session.Record) error {
	if records == nil {
		records = []session.Record{}
	}
	blob, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	var newest sql.NullString
	if len(records) > 0 {
		newest = sql.NullString{String: records[0].ID, Valid: true}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, strftime('%s', 'now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		HistoryKey, blob); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO history_writes (key, records, bytes, newest_id) VALUES (?, ?, ?, ?)`,
		HistoryKey, len(records), len(blob), newest); err != nil {
		return fmt.Errorf("failed to log history write: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM history_writes WHERE write_id <= (SELECT MAX(write_id) FROM history_writes) - ?`,
		maxWriteLog); err != nil {
		return fmt.Errorf("failed to trim history write log: %w", err)
	}
	return tx.Commit()
}

// HistoryWrite is one row of the write audit log.
type HistoryWrite struct {
	Records   int    `json:"records"`
	Bytes     int    `json:"bytes"`
	NewestID  string `json:"newest_id"`
	WrittenAt int64  `json:"written_at"`
}

// RecentWrites returns the latest history writes, newest first.
func (db *DB) RecentWrites(ctx context.Context, limit int) ([]HistoryWrite, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT records, bytes, COALESCE(newest_id, ''), written_at
		FROM history_writes ORDER BY write_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryWrite
	for rows.Next() {
		var w HistoryWrite
		if err := rows.Scan(&w.Records, &w.Bytes, &w.NewestID, &w.WrittenAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
