package mcp

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvandessel/egress/internal/store"
)

// isolateHome sets HOME to a temp directory to avoid touching real ~/.egress/
func isolateHome(t *testing.T, tmpDir string) {
	t.Helper()
	tmpHome := filepath.Join(tmpDir, "home")
	if err := os.MkdirAll(tmpHome, 0755); err != nil {
		t.Fatalf("Failed to create temp home: %v", err)
	}
	t.Setenv("HOME", tmpHome)
}

func TestNewServer(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	cfg := &Config{
		Name:    "test-server",
		Version: "v1.0.0",
		Root:    tmpDir,
	}

	server, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer server.Close()

	if server.server == nil {
		t.Error("Server.server is nil")
	}
	if server.store == nil {
		t.Error("Server.store is nil")
	}
	if server.root != tmpDir {
		t.Errorf("Server.root = %q, want %q", server.root, tmpDir)
	}
	if server.toolLimiters == nil {
		t.Error("toolLimiters should be initialized")
	}
	if server.settings == nil || server.settings.Simulation.XSize != 10 {
		t.Error("settings should default to config.Default()")
	}
	if server.runTimeout != time.Minute {
		t.Errorf("runTimeout = %v, want 1m", server.runTimeout)
	}
}

func TestNewServer_CreatesEgressDir(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	server, err := NewServer(&Config{Name: "test-server", Version: "v1.0.0", Root: tmpDir})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer server.Close()

	for _, name := range []string{"egress.db", "audit.jsonl"} {
		if _, err := os.Stat(filepath.Join(tmpDir, ".egress", name)); err != nil {
			t.Errorf("%s was not created: %v", name, err)
		}
	}
}

func TestNewServer_UsesGivenStore(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	rs := store.NewInMemoryRunStore()
	server, err := NewServer(&Config{Name: "test-server", Version: "v1.0.0", Root: tmpDir, Store: rs, RunTimeout: time.Second})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer server.Close()

	if server.store != rs {
		t.Error("Server.store is not the supplied store")
	}
	if server.runTimeout != time.Second {
		t.Errorf("runTimeout = %v, want 1s", server.runTimeout)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, ".egress", "egress.db")); !os.IsNotExist(err) {
		t.Error("SQLite database created despite supplied store")
	}
}
