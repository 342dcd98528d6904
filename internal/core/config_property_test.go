package core

import (
	"fmt"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/valter-silva-au/taskgraph/pkg/models"
)

type configValues struct {
	Backend      models.StorageBackend
	Keep         int
	Level        string
	MaxSubtasks  int
	MaxDepth     int
	CreatePolicy models.ResolutionPolicy
	Strict       bool
}

func genConfigValues(t *rapid.T) configValues {
	return configValues{
		Backend:      rapid.SampledFrom([]models.StorageBackend{models.BackendYAML, models.BackendSQLite}).Draw(t, "backend"),
		Keep:         rapid.IntRange(0, 100).Draw(t, "keep"),
		Level:        rapid.SampledFrom([]string{"DEBUG", "INFO", "WARN", "ERROR"}).Draw(t, "level"),
		MaxSubtasks:  rapid.IntRange(0, 50).Draw(t, "maxSubtasks"),
		MaxDepth:     rapid.IntRange(0, 10).Draw(t, "maxDepth"),
		CreatePolicy: rapid.SampledFrom([]models.ResolutionPolicy{models.ResolveStrict, models.ResolveSkip}).Draw(t, "createPolicy"),
		Strict:       rapid.Bool().Draw(t, "strict"),
	}
}

// Feature: taskgraph, Property 1: Configuration Round Trip
// *For any* valid set of values written to .taskgraph.yaml, LoadConfig SHALL
// return exactly those values and ValidateConfig SHALL accept them.
func TestProperty1_ConfigurationRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		v := genConfigValues(rt)
		dir := t.TempDir()
		writeFile(t, dir, ".taskgraph.yaml", fmt.Sprintf(`
storage:
  backend: %s
backup:
  keep: %d
log:
  level: %s
granularity:
  max_subtasks_per_split: %d
  max_depth_levels: %d
  strict: %v
resolution:
  create_policy: %s
`, v.Backend, v.Keep, v.Level, v.MaxSubtasks, v.MaxDepth, v.Strict, v.CreatePolicy))

		cm := NewConfigurationManager(dir)
		cfg, err := cm.LoadConfig()
		if err != nil {
			rt.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Storage.Backend != v.Backend {
			rt.Errorf("Backend: got %q, want %q", cfg.Storage.Backend, v.Backend)
		}
		if cfg.Backup.Keep != v.Keep {
			rt.Errorf("Keep: got %d, want %d", cfg.Backup.Keep, v.Keep)
		}
		if cfg.Log.Level != v.Level {
			rt.Errorf("Level: got %q, want %q", cfg.Log.Level, v.Level)
		}
		if cfg.Granularity.MaxSubtasksPerSplit != v.MaxSubtasks || cfg.Granularity.MaxDepthLevels != v.MaxDepth {
			rt.Errorf("Granularity: got %+v, want subtasks=%d depth=%d", cfg.Granularity, v.MaxSubtasks, v.MaxDepth)
		}
		if cfg.Granularity.Strict != v.Strict {
			rt.Errorf("Strict: got %v, want %v", cfg.Granularity.Strict, v.Strict)
		}
		if cfg.Resolution.CreatePolicy != v.CreatePolicy {
			rt.Errorf("CreatePolicy: got %q, want %q", cfg.Resolution.CreatePolicy, v.CreatePolicy)
		}
		if err := cm.ValidateConfig(cfg); err != nil {
			rt.Errorf("valid values rejected: %v", err)
		}
	})
}

// Feature: taskgraph, Property 2: Configuration Validation
// *For any* negative retention or rule value, ValidateConfig SHALL return an
// error naming the offending key.
func TestProperty2_ConfigurationValidation(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cfg := models.DefaultConfig()
		bad := rapid.IntRange(-1000, -1).Draw(rt, "bad")
		key := rapid.SampledFrom([]string{
			"backup.keep",
			"granularity.max_subtasks_per_split",
			"granularity.max_depth_levels",
			"granularity.max_file_areas_per_task",
			"alerts.stale_days",
		}).Draw(rt, "key")
		switch key {
		case "backup.keep":
			cfg.Backup.Keep = bad
		case "granularity.max_subtasks_per_split":
			cfg.Granularity.MaxSubtasksPerSplit = bad
		case "granularity.max_depth_levels":
			cfg.Granularity.MaxDepthLevels = bad
		case "granularity.max_file_areas_per_task":
			cfg.Granularity.MaxFileAreasPerTask = bad
		case "alerts.stale_days":
			cfg.Alerts.StaleDays = bad
		}

		err := NewConfigurationManager(t.TempDir()).ValidateConfig(cfg)
		if err == nil {
			rt.Fatalf("expected error for %s=%d", key, bad)
		}
		if !strings.Contains(err.Error(), key) {
			rt.Errorf("error should name %s, got: %v", key, err)
		}
	})
}
