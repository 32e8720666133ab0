package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

func TestNewSQLiteRunStore(t *testing.T) {
	tmpDir := t.TempDir()

	s, err := NewSQLiteRunStore(tmpDir)
	if err != nil {
		t.Fatalf("NewSQLiteRunStore() error = %v", err)
	}
	defer s.Close()

	dbPath := filepath.Join(tmpDir, ".egress", "egress.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("egress.db was not created")
	}
	if s.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", s.Path(), dbPath)
	}
}

func TestSQLiteRunStore_Persists(t *testing.T) {
	tmpDir := t.TempDir()
	ctx := context.Background()

	s, err := NewSQLiteRunStore(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	id, err := s.RecordRun(ctx, sampleRun("concurrent"))
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	reopened, err := NewSQLiteRunStore(tmpDir)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun() after reopen error = %v", err)
	}
	if got.Strategy != "concurrent" || !slices.Equal(got.ExitOrder, sampleRun("").ExitOrder) {
		t.Errorf("reopened run = %+v", got)
	}
}

func TestSQLiteRunStore_DeleteCascadesExits(t *testing.T) {
	tmpDir := t.TempDir()
	ctx := context.Background()

	s, err := NewSQLiteRunStore(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	id, err := s.RecordRun(ctx, sampleRun("sequential"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteRun(ctx, id); err != nil {
		t.Fatal(err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM run_exits WHERE run_id = ?`, id).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("run_exits rows after delete = %d, want 0", count)
	}
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db")+"?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInitSchema(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}
	version, err := getSchemaVersion(ctx, db)
	if err != nil {
		t.Fatal(err)
	}
	if version != SchemaVersion {
		t.Errorf("schema version = %d, want %d", version, SchemaVersion)
	}

	// Second call validates and leaves the schema alone.
	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("second InitSchema() error = %v", err)
	}
}

func TestInitSchema_NewerVersion(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := InitSchema(ctx, db); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`, SchemaVersion+1); err != nil {
		t.Fatal(err)
	}

	err := InitSchema(ctx, db)
	if err == nil || !strings.Contains(err.Error(), "newer") {
		t.Errorf("InitSchema() error = %v, want newer-version error", err)
	}
}

func TestValidateIntegrity_ForeignKeyViolation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := InitSchema(ctx, db); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = OFF`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO run_exits (run_id, position, agent_id) VALUES ('ghost', 0, 1)`); err != nil {
		t.Fatal(err)
	}

	if err := ValidateIntegrity(ctx, db); err == nil {
		t.Error("ValidateIntegrity() should report the orphaned exit")
	}
}

func TestLocalEgressPath(t *testing.T) {
	if got := LocalEgressPath("/home/user/project"); got != filepath.Join("/home/user/project", ".egress") {
		t.Errorf("LocalEgressPath() = %q", got)
	}
}

func TestGlobalEgressPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	got, err := GlobalEgressPath()
	if err != nil {
		t.Fatalf("GlobalEgressPath() error = %v", err)
	}
	if got != filepath.Join(home, ".egress") {
		t.Errorf("GlobalEgressPath() = %q", got)
	}
}
