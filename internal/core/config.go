// Package core contains the business logic for taskgraph: dependency
// resolution, the splitting engine, the task status state machine, execution
// readiness, decomposition strategies and configuration.
package core

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/valter-silva-au/taskgraph/pkg/models"
)

// ConfigFileName is the configuration file looked up in the data directory,
// without extension.
const ConfigFileName = ".taskgraph"

// EnvPrefix prefixes every environment override, e.g. TASKGRAPH_LOG_LEVEL.
const EnvPrefix = "TASKGRAPH"

// ConfigurationManager defines the interface for loading and validating the
// .taskgraph.yaml configuration.
type ConfigurationManager interface {
	LoadConfig() (*models.Config, error)
	ValidateConfig(cfg *models.Config) error
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading YAML configuration files and environment overrides.
type viperConfigManager struct {
	// basePath is the data directory where .taskgraph.yaml resides.
	basePath string
}

// NewConfigurationManager creates a new ConfigurationManager that reads
// configuration files relative to basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

func (cm *viperConfigManager) newViper(cfg *models.Config) *viper.Viper {
	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set Viper defaults so missing keys fall back gracefully. Defaults also
	// make every key visible to AutomaticEnv.
	v.SetDefault("storage.backend", string(cfg.Storage.Backend))
	v.SetDefault("storage.path", "")
	v.SetDefault("backup.dir", cfg.Backup.Dir)
	v.SetDefault("backup.keep", cfg.Backup.Keep)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.file", cfg.Log.File)
	v.SetDefault("granularity.max_subtasks_per_split", cfg.Granularity.MaxSubtasksPerSplit)
	v.SetDefault("granularity.max_depth_levels", cfg.Granularity.MaxDepthLevels)
	v.SetDefault("granularity.min_task_duration_hours", cfg.Granularity.MinTaskDurationHours)
	v.SetDefault("granularity.max_task_duration_hours", cfg.Granularity.MaxTaskDurationHours)
	v.SetDefault("granularity.max_file_areas_per_task", cfg.Granularity.MaxFileAreasPerTask)
	v.SetDefault("granularity.strict", cfg.Granularity.Strict)
	v.SetDefault("resolution.create_policy", string(cfg.Resolution.CreatePolicy))
	v.SetDefault("resolution.import_policy", string(cfg.Resolution.ImportPolicy))
	v.SetDefault("events.enabled", cfg.Events.Enabled)
	v.SetDefault("alerts.blocked_hours", cfg.Alerts.BlockedHours)
	v.SetDefault("alerts.stale_days", cfg.Alerts.StaleDays)
	return v
}

// LoadConfig reads .taskgraph.yaml from the base path using Viper, applying
// TASKGRAPH_* environment overrides. If the file does not exist, defaults
// plus environment overrides are returned.
func (cm *viperConfigManager) LoadConfig() (*models.Config, error) {
	cfg := models.DefaultConfig()
	v := cm.newViper(cfg)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading %s.yaml: %w", ConfigFileName, err)
		}
	}

	cfg.Storage.Backend = models.StorageBackend(strings.ToLower(v.GetString("storage.backend")))
	cfg.Storage.Path = v.GetString("storage.path")
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = defaultStoragePath(cfg.Storage.Backend)
	}
	cfg.Backup.Dir = v.GetString("backup.dir")
	cfg.Backup.Keep = v.GetInt("backup.keep")
	cfg.Log.Level = strings.ToUpper(v.GetString("log.level"))
	cfg.Log.File = v.GetString("log.file")

	cfg.Granularity = models.GranularityRules{
		MaxSubtasksPerSplit:  v.GetInt("granularity.max_subtasks_per_split"),
		MaxDepthLevels:       v.GetInt("granularity.max_depth_levels"),
		MinTaskDurationHours: v.GetInt("granularity.min_task_duration_hours"),
		MaxTaskDurationHours: v.GetInt("granularity.max_task_duration_hours"),
		MaxFileAreasPerTask:  v.GetInt("granularity.max_file_areas_per_task"),
		Strict:               v.GetBool("granularity.strict"),
	}
	cfg.Resolution = models.ResolutionConfig{
		CreatePolicy: models.ResolutionPolicy(strings.ToLower(v.GetString("resolution.create_policy"))),
		ImportPolicy: models.ResolutionPolicy(strings.ToLower(v.GetString("resolution.import_policy"))),
	}
	cfg.Events.Enabled = v.GetBool("events.enabled")
	cfg.Alerts = models.AlertConfig{
		BlockedHours: v.GetInt("alerts.blocked_hours"),
		StaleDays:    v.GetInt("alerts.stale_days"),
	}

	return cfg, nil
}

func defaultStoragePath(b models.StorageBackend) string {
	if b == models.BackendSQLite {
		return "tasks.db"
	}
	return "tasks.yaml"
}

var validLogLevels = map[string]bool{"DEBUG": true, "INFO": true, "WARN": true, "ERROR": true}

// ValidateConfig checks the configuration for invalid values and returns an
// error listing every problem.
func (cm *viperConfigManager) ValidateConfig(cfg *models.Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	switch cfg.Storage.Backend {
	case models.BackendYAML, models.BackendSQLite:
	default:
		errs = append(errs, fmt.Sprintf("storage.backend %q is invalid, must be one of: yaml, sqlite", cfg.Storage.Backend))
	}
	if strings.TrimSpace(cfg.Storage.Path) == "" {
		errs = append(errs, "storage.path must not be empty")
	}
	if strings.TrimSpace(cfg.Backup.Dir) == "" {
		errs = append(errs, "backup.dir must not be empty")
	}
	if cfg.Backup.Keep < 0 {
		errs = append(errs, fmt.Sprintf("backup.keep must be non-negative, got %d", cfg.Backup.Keep))
	}
	if !validLogLevels[strings.ToUpper(cfg.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log.level %q is invalid, must be one of: DEBUG, INFO, WARN, ERROR", cfg.Log.Level))
	}

	g := cfg.Granularity
	for _, rule := range []struct {
		key string
		val int
	}{
		{"granularity.max_subtasks_per_split", g.MaxSubtasksPerSplit},
		{"granularity.max_depth_levels", g.MaxDepthLevels},
		{"granularity.min_task_duration_hours", g.MinTaskDurationHours},
		{"granularity.max_task_duration_hours", g.MaxTaskDurationHours},
		{"granularity.max_file_areas_per_task", g.MaxFileAreasPerTask},
	} {
		if rule.val < 0 {
			errs = append(errs, fmt.Sprintf("%s must be non-negative, got %d", rule.key, rule.val))
		}
	}
	if g.MinTaskDurationHours > 0 && g.MaxTaskDurationHours > 0 && g.MinTaskDurationHours > g.MaxTaskDurationHours {
		errs = append(errs, fmt.Sprintf(
			"granularity.min_task_duration_hours %d exceeds granularity.max_task_duration_hours %d",
			g.MinTaskDurationHours, g.MaxTaskDurationHours,
		))
	}

	if !cfg.Resolution.CreatePolicy.IsValid() {
		errs = append(errs, fmt.Sprintf("resolution.create_policy %q is invalid, must be strict or skip", cfg.Resolution.CreatePolicy))
	}
	if !cfg.Resolution.ImportPolicy.IsValid() {
		errs = append(errs, fmt.Sprintf("resolution.import_policy %q is invalid, must be strict or skip", cfg.Resolution.ImportPolicy))
	}
	if cfg.Alerts.BlockedHours < 0 {
		errs = append(errs, fmt.Sprintf("alerts.blocked_hours must be non-negative, got %d", cfg.Alerts.BlockedHours))
	}
	if cfg.Alerts.StaleDays < 0 {
		errs = append(errs, fmt.Sprintf("alerts.stale_days must be non-negative, got %d", cfg.Alerts.StaleDays))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
