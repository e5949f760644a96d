package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	perrors "github.com/vango-dev/persist/internal/errors"
)

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Dir != DefaultDir {
		t.Errorf("Dir = %q, want %q", cfg.Dir, DefaultDir)
	}
	if cfg.Origin != DefaultOrigin {
		t.Errorf("Origin = %q, want %q", cfg.Origin, DefaultOrigin)
	}
	if cfg.Database.Name != "persist" || cfg.Database.Store != "persist" {
		t.Errorf("Database = %+v, want persist/persist", cfg.Database)
	}
	if cfg.Inspect.Addr != DefaultInspectAddr {
		t.Errorf("Inspect.Addr = %q, want %q", cfg.Inspect.Addr, DefaultInspectAddr)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()

	// Test loading non-existent config
	_, err := Load(tmpDir)
	if err == nil {
		t.Fatal("Expected error for missing config")
	}
	var pe *perrors.PersistError
	if !errors.As(err, &pe) || pe.Code != "P010" {
		t.Errorf("error = %v, want P010", err)
	}

	configJSON := `{
  "dir": "data",
  "origin": "https://example.com",
  "database": {
    "name": "app"
  },
  "log": {
    "level": "debug"
  }
}
`
	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte(configJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Origin != "https://example.com" {
		t.Errorf("Origin = %q, want https://example.com", cfg.Origin)
	}
	if cfg.Database.Name != "app" {
		t.Errorf("Database.Name = %q, want app", cfg.Database.Name)
	}
	if cfg.Database.Store != "persist" {
		t.Errorf("Database.Store = %q, want default persist", cfg.Database.Store)
	}
	if got, want := cfg.DirPath(), filepath.Join(tmpDir, "data"); got != want {
		t.Errorf("DirPath() = %q, want %q", got, want)
	}
	if level, _ := cfg.SlogLevel(); level != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v, want debug", level)
	}
	if cfg.ConfigDir() != tmpDir {
		t.Errorf("ConfigDir() = %q, want %q", cfg.ConfigDir(), tmpDir)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(tmpDir)
	if err == nil || !strings.Contains(err.Error(), "P010") {
		t.Errorf("Load() error = %v, want P010", err)
	}
}

func TestSaveAndReload(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, ConfigFileName)

	cfg := New()
	cfg.Origin = "https://saved.example"
	cfg.Quota = 1024
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}
	if cfg.Path() != path {
		t.Errorf("Path() = %q, want %q", cfg.Path(), path)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if loaded.Origin != cfg.Origin || loaded.Quota != 1024 {
		t.Errorf("reloaded = %+v, want origin and quota preserved", loaded)
	}

	loaded.Log.Level = "warn"
	if err := loaded.SaveTo(loaded.Path()); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}
	again, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if again.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn", again.Log.Level)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("PERSIST_DIR", "/tmp/persist-env")
	t.Setenv("PERSIST_ORIGIN", "https://env.example")
	t.Setenv("PERSIST_QUOTA", "2048")
	t.Setenv("PERSIST_DB_NAME", "envdb")
	t.Setenv("PERSIST_DB_STORE", "envstore")
	t.Setenv("PERSIST_INSPECT_ADDR", "127.0.0.1:9999")
	t.Setenv("PERSIST_LOG_LEVEL", "error")

	cfg := New()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}

	if cfg.Dir != "/tmp/persist-env" {
		t.Errorf("Dir = %q", cfg.Dir)
	}
	if cfg.Origin != "https://env.example" {
		t.Errorf("Origin = %q", cfg.Origin)
	}
	if cfg.Quota != 2048 {
		t.Errorf("Quota = %d", cfg.Quota)
	}
	if cfg.Database.Name != "envdb" || cfg.Database.Store != "envstore" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Inspect.Addr != "127.0.0.1:9999" {
		t.Errorf("Inspect.Addr = %q", cfg.Inspect.Addr)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestApplyEnv_KeepsUnsetFields(t *testing.T) {
	t.Setenv("PERSIST_ORIGIN", "https://only-origin.example")

	cfg := New()
	cfg.Database.Name = "fromfile"
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatal(err)
	}
	if cfg.Database.Name != "fromfile" {
		t.Errorf("Database.Name = %q, want fromfile", cfg.Database.Name)
	}
}

func TestApplyEnv_Invalid(t *testing.T) {
	t.Setenv("PERSIST_QUOTA", "lots")

	err := New().ApplyEnv()
	if err == nil || !strings.Contains(err.Error(), "parse env") {
		t.Errorf("ApplyEnv() error = %v, want parse env failure", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"origin without scheme", func(c *Config) { c.Origin = "example.com" }},
		{"origin with ftp", func(c *Config) { c.Origin = "ftp://example.com" }},
		{"negative quota", func(c *Config) { c.Quota = -1 }},
		{"database with slash", func(c *Config) { c.Database.Name = "a/b" }},
		{"inspect without port", func(c *Config) { c.Inspect.Addr = "localhost" }},
		{"unknown level", func(c *Config) { c.Log.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestResolve(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, ConfigFileName), []byte(`{"origin":"https://found.example"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(nested)

	cfg, err := Resolve("")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cfg.Origin != "https://found.example" {
		t.Errorf("Origin = %q, want the nearest persist.json", cfg.Origin)
	}
	if got, want := cfg.DirPath(), filepath.Join(root, DefaultDir); got != want {
		t.Errorf("DirPath() = %q, want %q", got, want)
	}

	if _, err := Resolve(filepath.Join(root, "missing.json")); err == nil {
		t.Error("Resolve() with a missing explicit path should fail")
	}
}

func TestResolve_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PERSIST_LOG_LEVEL", "debug")

	cfg, err := Resolve("")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cfg.Path() != "" {
		t.Errorf("Path() = %q, want empty", cfg.Path())
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestFindProjectRoot(t *testing.T) {
	tmpDir := t.TempDir()
	if _, err := FindProjectRoot(tmpDir); err == nil {
		t.Error("FindProjectRoot() without persist.json should fail")
	}
	if Exists(tmpDir) {
		t.Error("Exists() = true before the file is written")
	}
}
