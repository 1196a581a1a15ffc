package db

import (
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "test.db")

	database, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer database.Close()

	if database.Conn() == nil {
		t.Fatal("Expected database connection to be initialized")
	}
}

func TestRunMigrations(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "test.db")

	database, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer database.Close()

	if err := RunMigrations(database.Conn()); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	// Verify expected tables were created from our embedded migrations
	for _, table := range []string{"orders", "account_snapshots"} {
		var name string
		err := database.Conn().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Expected table %s to exist after migrations: %v", table, err)
		}
	}

	// Migrations must be idempotent
	if err := database.Migrate(); err != nil {
		t.Fatalf("Re-running migrations should be a no-op: %v", err)
	}
}
