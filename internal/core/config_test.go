package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/valter-silva-au/taskgraph/pkg/models"
)

// --- Helper ---

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// --- LoadConfig tests ---

func TestLoadConfig_Defaults_WhenNoFile(t *testing.T) {
	dir := t.TempDir()
	cm := NewConfigurationManager(dir)

	cfg, err := cm.LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Storage.Backend != models.BackendYAML {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, models.BackendYAML)
	}
	if cfg.Storage.Path != "tasks.yaml" {
		t.Errorf("Storage.Path = %q, want tasks.yaml", cfg.Storage.Path)
	}
	if cfg.Backup.Keep != 20 {
		t.Errorf("Backup.Keep = %d, want 20", cfg.Backup.Keep)
	}
	if cfg.Log.Level != "INFO" {
		t.Errorf("Log.Level = %q, want INFO", cfg.Log.Level)
	}
	if cfg.Granularity != models.DefaultGranularityRules() {
		t.Errorf("Granularity = %+v, want defaults", cfg.Granularity)
	}
	if cfg.Resolution.CreatePolicy != models.ResolveStrict || cfg.Resolution.ImportPolicy != models.ResolveSkip {
		t.Errorf("Resolution = %+v, want strict/skip", cfg.Resolution)
	}
	if !cfg.Events.Enabled {
		t.Error("Events.Enabled = false, want true")
	}
	if err := cm.ValidateConfig(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadConfig_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".taskgraph.yaml", `
storage:
  backend: sqlite
backup:
  keep: 5
log:
  level: debug
granularity:
  max_subtasks_per_split: 4
  strict: true
resolution:
  create_policy: skip
events:
  enabled: false
alerts:
  stale_days: 7
`)

	cm := NewConfigurationManager(dir)
	cfg, err := cm.LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Storage.Backend != models.BackendSQLite {
		t.Errorf("Storage.Backend = %q, want sqlite", cfg.Storage.Backend)
	}
	if cfg.Storage.Path != "tasks.db" {
		t.Errorf("Storage.Path = %q, want tasks.db for sqlite", cfg.Storage.Path)
	}
	if cfg.Backup.Keep != 5 {
		t.Errorf("Backup.Keep = %d, want 5", cfg.Backup.Keep)
	}
	if cfg.Log.Level != "DEBUG" {
		t.Errorf("Log.Level = %q, want DEBUG", cfg.Log.Level)
	}
	if cfg.Granularity.MaxSubtasksPerSplit != 4 || !cfg.Granularity.Strict {
		t.Errorf("Granularity = %+v", cfg.Granularity)
	}
	if cfg.Granularity.MaxDepthLevels != 3 {
		t.Errorf("unset granularity key should keep default, got %d", cfg.Granularity.MaxDepthLevels)
	}
	if cfg.Resolution.CreatePolicy != models.ResolveSkip {
		t.Errorf("CreatePolicy = %q, want skip", cfg.Resolution.CreatePolicy)
	}
	if cfg.Events.Enabled {
		t.Error("Events.Enabled = true, want false")
	}
	if cfg.Alerts.StaleDays != 7 || cfg.Alerts.BlockedHours != 24 {
		t.Errorf("Alerts = %+v", cfg.Alerts)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".taskgraph.yaml", "log:\n  level: WARN\n")
	t.Setenv("TASKGRAPH_LOG_LEVEL", "ERROR")
	t.Setenv("TASKGRAPH_BACKUP_KEEP", "3")

	cfg, err := NewConfigurationManager(dir).LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Log.Level != "ERROR" {
		t.Errorf("Log.Level = %q, want env override ERROR", cfg.Log.Level)
	}
	if cfg.Backup.Keep != 3 {
		t.Errorf("Backup.Keep = %d, want env override 3", cfg.Backup.Keep)
	}
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".taskgraph.yaml", "storage: [unclosed\n")

	if _, err := NewConfigurationManager(dir).LoadConfig(); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

// --- ValidateConfig tests ---

func TestValidateConfig_Nil(t *testing.T) {
	if err := NewConfigurationManager(t.TempDir()).ValidateConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestValidateConfig_ListsEveryProblem(t *testing.T) {
	cfg := models.DefaultConfig()
	cfg.Storage.Backend = "postgres"
	cfg.Backup.Keep = -1
	cfg.Log.Level = "TRACE"
	cfg.Granularity.MinTaskDurationHours = 20
	cfg.Resolution.ImportPolicy = "lenient"

	err := NewConfigurationManager(t.TempDir()).ValidateConfig(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{
		"config validation failed",
		"storage.backend",
		"backup.keep",
		"log.level",
		"granularity.min_task_duration_hours 20 exceeds",
		"resolution.import_policy",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error should mention %q, got:\n%s", want, msg)
		}
	}
	if n := strings.Count(msg, "\n  - "); n != 5 {
		t.Errorf("expected 5 listed problems, got %d:\n%s", n, msg)
	}
}
