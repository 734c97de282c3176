package database

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
)

// openTestDB opens a throwaway file-backed database with the same
// settings the daemon uses.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "canopy.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_CreatesFileAndDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state", "nested", "canopy.db")

	db, err := Open(Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file missing: %v", err)
	}
	if db.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", db.Path(), dbPath)
	}
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)

	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	// A second close after shutdown must not error.
	db.DB = nil
	if err := db.Close(); err != nil {
		t.Errorf("Close() after shutdown error = %v", err)
	}
}

func TestExecContext(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx,
		`CREATE TABLE tasks (id INTEGER PRIMARY KEY, title TEXT NOT NULL)`,
	)
	if err != nil {
		t.Fatalf("creating table: %v", err)
	}

	result, err := db.ExecContext(ctx, `INSERT INTO tasks (title) VALUES (?)`, "water plant-1")
	if err != nil {
		t.Fatalf("inserting row: %v", err)
	}
	if id, _ := result.LastInsertId(); id != 1 {
		t.Errorf("LastInsertId() = %d, want 1", id)
	}
}

func TestBeginTx(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx,
		`CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT NOT NULL)`,
	); err != nil {
		t.Fatalf("creating table: %v", err)
	}

	tests := []struct {
		name     string
		finish   func(tx *sql.Tx) error
		wantRows int
	}{
		{"commit persists", (*sql.Tx).Commit, 1},
		{"rollback discards", (*sql.Tx).Rollback, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				t.Fatalf("BeginTx() error = %v", err)
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO notes (body) VALUES (?)`, tt.name); err != nil {
				t.Fatalf("inserting row: %v", err)
			}
			if err := tt.finish(tx); err != nil {
				t.Fatalf("finishing transaction: %v", err)
			}

			var rows int
			if err := db.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM notes WHERE body = ?`, tt.name,
			).Scan(&rows); err != nil {
				t.Fatalf("counting rows: %v", err)
			}
			if rows != tt.wantRows {
				t.Errorf("rows = %d, want %d", rows, tt.wantRows)
			}
		})
	}
}

func TestStats_SingleWriter(t *testing.T) {
	db := openTestDB(t)

	if got := db.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1", got)
	}
}
