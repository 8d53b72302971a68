package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("BOOKYARD_CONFIG", "")
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error without a database url")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BOOKYARD_CONFIG", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/bookyard")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Mill.Interval != 30*time.Second {
		t.Errorf("mill interval = %s, want 30s", cfg.Mill.Interval)
	}
	if cfg.Retention.MinAge != 30*24*time.Hour {
		t.Errorf("retention min age = %s, want 720h", cfg.Retention.MinAge)
	}
	if cfg.Retention.DeletionDelay != 7*24*time.Hour {
		t.Errorf("deletion delay = %s, want 168h", cfg.Retention.DeletionDelay)
	}
	if cfg.Staging.Warehouse != "staging" {
		t.Errorf("staging warehouse = %s, want staging", cfg.Staging.Warehouse)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level = %s, want info", cfg.LogLevel)
	}
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
database:
  url: postgres://file/bookyard
mill:
  interval: 5s
warehouses:
  - id: wh1
    dir: /mnt/wh1
  - id: wh2
    dir: /mnt/wh2
`
	if err := os.WriteFile(path, []byte(data), 0o640); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BOOKYARD_CONFIG", path)
	t.Setenv("DATABASE_URL", "postgres://env/bookyard")
	t.Setenv("MILL_INTERVAL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	// Environment wins over the file.
	if cfg.Database.URL != "postgres://env/bookyard" {
		t.Errorf("database url = %s, want the env override", cfg.Database.URL)
	}
	if cfg.Mill.Interval != 5*time.Second {
		t.Errorf("mill interval = %s, want the file's 5s", cfg.Mill.Interval)
	}

	dirs := cfg.WarehouseDirs()
	if len(dirs) != 2 || dirs["wh1"] != "/mnt/wh1" || dirs["wh2"] != "/mnt/wh2" {
		t.Errorf("warehouse dirs = %v", dirs)
	}
}
