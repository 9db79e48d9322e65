package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePaths_DBOverridePullsEverythingIntoItsDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	dbFile := filepath.Join(dir, "radio.db")

	paths, err := ResolvePaths(dbFile)
	if err != nil {
		t.Fatalf("resolve paths: %v", err)
	}
	if paths.DBFile != dbFile {
		t.Fatalf("db file: got %q, want %q", paths.DBFile, dbFile)
	}
	if paths.DataDir != dir {
		t.Fatalf("data dir: got %q, want %q", paths.DataDir, dir)
	}
	if paths.LogFile != filepath.Join(dir, LogFilename) {
		t.Fatalf("log file: got %q", paths.LogFile)
	}
	if paths.PidFile != filepath.Join(dir, PidFilename) {
		t.Fatalf("pid file: got %q", paths.PidFile)
	}

	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("expected data dir to be created: %v", err)
	}
}
