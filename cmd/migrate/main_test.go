package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestMigrationFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_events.sql", "001_jobs.sql", "001_jobs.down.sql", "002_events.down.sql", "README.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	up, err := migrationFiles(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(dir, "001_jobs.sql"), filepath.Join(dir, "002_events.sql")}
	if !reflect.DeepEqual(up, want) {
		t.Errorf("up = %v, want %v", up, want)
	}

	down, err := migrationFiles(dir, true)
	if err != nil {
		t.Fatal(err)
	}
	want = []string{filepath.Join(dir, "002_events.down.sql"), filepath.Join(dir, "001_jobs.down.sql")}
	if !reflect.DeepEqual(down, want) {
		t.Errorf("down = %v, want %v", down, want)
	}
}

func TestMigrationFilesEmptyDir(t *testing.T) {
	if _, err := migrationFiles(t.TempDir(), false); err == nil {
		t.Fatal("expected error for empty dir")
	}
}

func TestRepoMigrationsPaired(t *testing.T) {
	up, err := migrationFiles("../../migrations", false)
	if err != nil {
		t.Fatal(err)
	}
	down, err := migrationFiles("../../migrations", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(up) != len(down) {
		t.Errorf("%d up migrations, %d down", len(up), len(down))
	}
}
