// Package internal provides the App struct that wires all components of the
// taskgraph system together and initializes the CLI layer.
package internal

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/valter-silva-au/taskgraph/internal/cli"
	"github.com/valter-silva-au/taskgraph/internal/core"
	"github.com/valter-silva-au/taskgraph/internal/events"
	"github.com/valter-silva-au/taskgraph/internal/observability"
	"github.com/valter-silva-au/taskgraph/internal/storage"
	"github.com/valter-silva-au/taskgraph/pkg/models"
)

// Files kept in the data directory next to the task store.
const (
	EventLogFileName = "events.jsonl"
	LockFileName     = ".taskgraph.lock"
)

// App holds all service dependencies for the taskgraph system.
type App struct {
	BasePath string
	Config   *models.Config

	// Configuration
	ConfigMgr core.ConfigurationManager

	Logger *slog.Logger

	// Storage layer
	Store storage.TaskStore

	// Core services
	Bus    *events.Bus
	Engine core.Engine

	// Observability
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator

	logCloser io.Closer
}

// NewApp creates and wires all components of the taskgraph system.
// basePath is the data directory holding .taskgraph.yaml, the task store,
// backups and the audit log.
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}
	fsys := afero.NewOsFs()

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg

	if err := fsys.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// --- Diagnostic logging ---
	logFile := ""
	if cfg.Log.File != "" {
		logFile = app.resolve(cfg.Log.File)
	}
	app.Logger, app.logCloser, err = observability.NewLogger(fsys, logFile, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	// --- Observability ---
	var evtAdapter core.EventLogger
	if cfg.Events.Enabled {
		app.EventLog, err = observability.NewJSONLEventLog(fsys, filepath.Join(basePath, EventLogFileName))
		if err != nil {
			// Non-fatal: disable observability if log can't be created.
			app.Logger.Warn("audit log disabled", "error", err)
			app.EventLog = nil
		}
	}
	if app.EventLog != nil {
		thresholds := observability.AlertThresholds{
			BlockedHours: cfg.Alerts.BlockedHours,
			StaleDays:    cfg.Alerts.StaleDays,
		}
		app.AlertEngine = observability.NewAlertEngine(app.EventLog, thresholds)
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
		evtAdapter = &eventLogAdapter{log: app.EventLog}
	}

	// --- Storage layer ---
	backend, err := app.openBackend(fsys, cfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Store = storage.NewTaskStore(backend, storage.WithBackupRetention(cfg.Backup.Keep))
	if err := app.Store.Load(); err != nil {
		_ = backend.Close()
		_ = app.Close()
		return nil, fmt.Errorf("loading task store: %w", err)
	}

	// --- Core services ---
	app.Bus = events.NewBus(app.Logger)
	app.Bus.SubscribeAll(func(e events.Event) {
		if tc, ok := e.(events.TaskChanged); ok {
			app.Logger.Debug("task changed", "type", tc.EventType(), "task_id", tc.TaskID, "status", tc.Status)
		}
	})
	app.Engine = core.NewEngine(app.Store, core.EngineConfig{
		Granularity: cfg.Granularity,
		Resolution:  cfg.Resolution,
		EventLog:    evtAdapter,
		Bus:         app.Bus,
		Logger:      app.Logger,
		WriterLock:  core.NewFileLock(filepath.Join(basePath, LockFileName)),
	})

	// --- Wire CLI package-level variables ---
	cli.BasePath = basePath
	cli.Config = cfg
	cli.Engine = app.Engine
	cli.EventLog = app.EventLog
	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc

	return app, nil
}

func (a *App) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(a.BasePath, p)
}

func (a *App) openBackend(fsys afero.Fs, cfg *models.Config) (storage.Backend, error) {
	path := a.resolve(cfg.Storage.Path)
	switch cfg.Storage.Backend {
	case models.BackendSQLite:
		backend, err := storage.OpenSQLite(path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return backend, nil
	default:
		return storage.NewYAMLBackend(fsys, path, a.resolve(cfg.Backup.Dir)), nil
	}
}

// Close releases resources held by the App: the task store, the event log
// file handle and the diagnostic log file. It is safe to call on a
// partially initialized App.
func (a *App) Close() error {
	var errs []error
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.EventLog != nil {
		errs = append(errs, a.EventLog.Close())
	}
	if a.logCloser != nil {
		errs = append(errs, a.logCloser.Close())
	}
	return errors.Join(errs...)
}

// ResolveBasePath determines the data directory. It checks the
// TASKGRAPH_HOME env var, then walks up from the working directory looking
// for .taskgraph.yaml, then falls back to the working directory.
func ResolveBasePath() string {
	if home := os.Getenv("TASKGRAPH_HOME"); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	return findConfigDir(dir)
}

func findConfigDir(start string) string {
	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, core.ConfigFileName+".yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return start
}

// --- Adapters ---

// eventLogAdapter adapts observability.EventLog to core.EventLogger.
type eventLogAdapter struct {
	log observability.EventLog
}

func (a *eventLogAdapter) LogEvent(eventType string, data map[string]any) error {
	level := observability.LevelInfo
	if eventType == core.EventStoreCleared {
		level = observability.LevelWarn
	}
	return a.log.Write(observability.Event{
		Time:    time.Now().UTC(),
		Level:   level,
		Type:    eventType,
		Message: eventType,
		Data:    data,
	})
}
