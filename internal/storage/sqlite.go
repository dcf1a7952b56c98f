// Package storage persists the launcher key-value store and the server history in SQLite.
package storage

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite" // Driver sqlite
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Repository manages the SQLite database connection.
type Repository struct {
	db *sql.DB
}

// New opens the database at dbPath, tunes the pool and runs migrations.
func New(ctx context.Context, dbPath string) (*Repository, error) {
	dsn := dbPath + "?_time_format=sqlite&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	if dbPath == MemoryPath {
		dsn = dbPath + "?_time_format=sqlite"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if dbPath == MemoryPath {
		// every connection to :memory: is a separate database, keep the only one alive
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(time.Hour)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}
