package models

// StorageBackend names a persistence backend for the task store.
type StorageBackend string

const (
	BackendYAML   StorageBackend = "yaml"
	BackendSQLite StorageBackend = "sqlite"
)

// StorageConfig selects and locates the task store backend.
type StorageConfig struct {
	Backend StorageBackend `yaml:"backend" mapstructure:"backend"`
	// Path is relative to the data directory unless absolute.
	Path string `yaml:"path" mapstructure:"path"`
}

// BackupConfig controls where snapshots live and how many are retained.
type BackupConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
	// Keep is the number of most recent backups retained; 0 keeps all.
	Keep int `yaml:"keep" mapstructure:"keep"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	// File is empty for stderr.
	File string `yaml:"file" mapstructure:"file"`
}

// ResolutionConfig sets the default policy for unresolved dependency
// references, separately for explicit creation and for bulk imports.
type ResolutionConfig struct {
	CreatePolicy ResolutionPolicy `yaml:"create_policy" mapstructure:"create_policy"`
	ImportPolicy ResolutionPolicy `yaml:"import_policy" mapstructure:"import_policy"`
}

// AlertConfig holds thresholds for audit-log derived alerts.
type AlertConfig struct {
	BlockedHours int `yaml:"blocked_hours" mapstructure:"blocked_hours"`
	StaleDays    int `yaml:"stale_days" mapstructure:"stale_days"`
}

// EventsConfig controls the JSONL audit log.
type EventsConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// Config holds every setting read from .taskgraph.yaml via Viper.
type Config struct {
	Storage     StorageConfig    `yaml:"storage" mapstructure:"storage"`
	Backup      BackupConfig     `yaml:"backup" mapstructure:"backup"`
	Log         LogConfig        `yaml:"log" mapstructure:"log"`
	Granularity GranularityRules `yaml:"granularity" mapstructure:"granularity"`
	Resolution  ResolutionConfig `yaml:"resolution" mapstructure:"resolution"`
	Events      EventsConfig     `yaml:"events" mapstructure:"events"`
	Alerts      AlertConfig      `yaml:"alerts" mapstructure:"alerts"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Storage:     StorageConfig{Backend: BackendYAML, Path: "tasks.yaml"},
		Backup:      BackupConfig{Dir: "backups", Keep: 20},
		Log:         LogConfig{Level: "INFO"},
		Granularity: DefaultGranularityRules(),
		Resolution: ResolutionConfig{
			CreatePolicy: ResolveStrict,
			ImportPolicy: ResolveSkip,
		},
		Events: EventsConfig{Enabled: true},
		Alerts: AlertConfig{BlockedHours: 24, StaleDays: 3},
	}
}
