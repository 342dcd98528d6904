package cli

import (
	"github.com/spf13/afero"

	"github.com/valter-silva-au/taskgraph/internal/core"
	"github.com/valter-silva-au/taskgraph/internal/observability"
	"github.com/valter-silva-au/taskgraph/pkg/models"
)

// Service instances, set during app initialization in app.go.
var (
	Engine   core.Engine
	Config   *models.Config
	BasePath string
	// FS is used for reading batch files and writing decomposition output.
	FS afero.Fs = afero.NewOsFs()
)

// Observability service instances. Nil when events.enabled is false.
var (
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
)

func requireEngine() error {
	if Engine == nil {
		return errEngineNotInitialized
	}
	return nil
}
