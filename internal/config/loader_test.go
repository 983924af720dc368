package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/strata-db/stratadb/pkg/engine"
)

func TestNewLoader(t *testing.T) {
	workDir := "/test/work/dir"
	loader := NewLoader(workDir)

	if loader == nil {
		t.Fatal("Expected non-nil loader")
	}

	expectedPath := filepath.Join(workDir, ".stratadb.yml")
	if loader.filePath != expectedPath {
		t.Errorf("Expected filePath %s, got %s", expectedPath, loader.filePath)
	}

	if loader.workDir != workDir {
		t.Errorf("Expected workDir %s, got %s", workDir, loader.workDir)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	tmpDir := t.TempDir()
	loader := NewLoader(tmpDir)

	_, err := loader.Load()
	if err == nil {
		t.Fatal("Expected error when config file doesn't exist")
	}

	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("Expected 'not found' error, got: %v", err)
	}
}

func writeConfig(t *testing.T, content string) *Loader {
	t.Helper()
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, FileName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return NewLoader(tmpDir)
}

func TestLoad_Success(t *testing.T) {
	loader := writeConfig(t, `database:
  dialect: postgres
  dsn: "postgres://localhost:5432/app"
  strategy: singlewriter
  max_open_conns: 8
  max_idle_conns: 2

engine:
  plan_cache: 64
  template_cache: 256

debug:
  level: sql
`)

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Dialect != "postgres" {
		t.Errorf("Expected dialect postgres, got %s", cfg.Database.Dialect)
	}
	if cfg.Database.Strategy != "singlewriter" {
		t.Errorf("Expected strategy singlewriter, got %s", cfg.Database.Strategy)
	}
	if cfg.Database.MaxOpenConns != 8 {
		t.Errorf("Expected max_open_conns 8, got %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Engine.PlanCache != 64 {
		t.Errorf("Expected plan_cache 64, got %d", cfg.Engine.PlanCache)
	}
	if cfg.Debug.Level != "sql" {
		t.Errorf("Expected debug level sql, got %s", cfg.Debug.Level)
	}
	if cfg.DebugLevel() != engine.DebugSQL {
		t.Errorf("Expected DebugSQL, got %v", cfg.DebugLevel())
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	loader := writeConfig(t, "database: [not a map")

	_, err := loader.Load()
	if err == nil {
		t.Fatal("Expected parse error")
	}
	if !strings.Contains(err.Error(), "failed to parse") {
		t.Errorf("Expected parse error, got: %v", err)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"missing dialect", "database:\n  dsn: x\n", "dialect is required"},
		{"unknown dialect", "database:\n  dialect: oracle\n", "unknown dialect"},
		{"unknown strategy", "database:\n  dialect: sqlite\n  strategy: turbo\n", "unknown connection strategy"},
		{"unknown debug level", "database:\n  dialect: sqlite\ndebug:\n  level: loud\n", "unknown debug level"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			loader := writeConfig(t, tc.content)
			_, err := loader.Load()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Expected %q in error, got: %v", tc.want, err)
			}
		})
	}
}

func TestNewEngine(t *testing.T) {
	loader := writeConfig(t, `database:
  dialect: sqlite
  dsn: "file:app.db"
  strategy: singleconnection
`)

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	eng, err := cfg.NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer eng.Close()

	if eng.Dialect().Name() != "sqlite" {
		t.Errorf("Expected sqlite dialect, got %s", eng.Dialect().Name())
	}
	if eng.Strategy() != engine.StrategySingleConnection {
		t.Errorf("Expected singleconnection strategy, got %s", eng.Strategy())
	}
	if eng.IsConnected() {
		t.Error("Engine should not be connected before Connect")
	}
}
