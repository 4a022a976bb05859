package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Power-Switch/PowerSwitch-Android-sub002/internal/infrastructure/database"
)

// writeConfig writes a config file into a temp dir and points
// POWERSWITCH_CONFIG at it.
func writeConfig(t *testing.T, content string) {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "test-config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("POWERSWITCH_CONFIG", configPath)
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("POWERSWITCH_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingDatabasePath verifies run fails when database path is empty.
func TestRun_MissingDatabasePath(t *testing.T) {
	t.Setenv("POWERSWITCH_DATABASE_PATH", "")
	writeConfig(t, `
database:
  path: ""
  wal_mode: true
  busy_timeout: 5

logging:
  level: info
  format: text
  output: stdout
`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestRun_MQTTUnavailable verifies an enabled but unreachable broker is fatal.
func TestRun_MQTTUnavailable(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	writeConfig(t, `
database:
  path: "`+dbPath+`"
  wal_mode: true
  busy_timeout: 5

mqtt:
  enabled: true
  broker:
    host: "127.0.0.1"
    port: 19999
    client_id: "test-client"
  qos: 1
  reconnect:
    initial_delay: 1
    max_delay: 5

logging:
  level: error
  format: text
  output: stdout
`)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail when the MQTT broker is unreachable")
	}
}

// TestRun_StartupAndShutdown runs the daemon with only the database and
// backups enabled, then cancels it.
func TestRun_StartupAndShutdown(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	backupDir := filepath.Join(tmpDir, "backups")
	writeConfig(t, `
database:
  path: "`+dbPath+`"
  wal_mode: true
  busy_timeout: 5

mqtt:
  enabled: false

influxdb:
  enabled: false

backup:
  dir: "`+backupDir+`"
  interval: 1h
  keep: 3
  on_startup: true

logging:
  level: error
  format: text
  output: stdout
`)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
	snapshots, err := filepath.Glob(filepath.Join(backupDir, "powerswitch-*.db"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(snapshots) != 1 {
		t.Errorf("startup snapshots = %d, want 1", len(snapshots))
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("POWERSWITCH_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("POWERSWITCH_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// TestHealthCheck_DatabaseOnly verifies health check skips disabled clients.
func TestHealthCheck_DatabaseOnly(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "health.db"),
		BusyTimeout: 1,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if err := healthCheck(ctx, db, nil, nil); err != nil {
		t.Errorf("healthCheck() error = %v", err)
	}
}
