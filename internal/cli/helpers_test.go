package cli

import (
	"io"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/valter-silva-au/taskgraph/internal/core"
	"github.com/valter-silva-au/taskgraph/internal/storage"
	"github.com/valter-silva-au/taskgraph/pkg/models"
)

// withEngine installs a fresh in-memory engine and filesystem for the test
// and restores the package state afterwards.
func withEngine(t *testing.T) core.Engine {
	t.Helper()
	origEngine, origFS := Engine, FS
	t.Cleanup(func() { Engine, FS = origEngine, origFS })

	FS = afero.NewMemMapFs()
	store := storage.NewTaskStore(storage.NewYAMLBackend(FS, "/data/tasks.yaml", "/data/backups"))
	if err := store.Load(); err != nil {
		t.Fatalf("loading store: %v", err)
	}
	Engine = core.NewEngine(store, core.EngineConfig{})
	return Engine
}

func withoutEngine(t *testing.T) {
	t.Helper()
	orig := Engine
	t.Cleanup(func() { Engine = orig })
	Engine = nil
}

func template(name string, deps ...string) models.TaskTemplate {
	return models.TaskTemplate{
		Name:                name,
		Description:         "Description of " + name,
		ImplementationGuide: "Guide for " + name,
		Dependencies:        deps,
	}
}

func seed(t *testing.T, eng core.Engine, tasks ...models.TaskTemplate) *models.SplitResult {
	t.Helper()
	res, err := eng.Split(models.SplitRequest{Mode: models.ModeAppend, Tasks: tasks})
	if err != nil {
		t.Fatalf("seeding tasks: %v", err)
	}
	return res
}

// captureStdout captures stdout output during fn execution.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("creating pipe: %v", err)
	}
	os.Stdout = w

	done := make(chan []byte)
	go func() {
		out, _ := io.ReadAll(r)
		done <- out
	}()

	fn()

	_ = w.Close()
	os.Stdout = origStdout
	return string(<-done)
}

// run executes cmd's RunE with flags parsed from flagArgs, capturing stdout.
// Flags are restored to their defaults when the test ends.
func run(t *testing.T, cmd *cobra.Command, args []string, flagArgs ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { resetFlags(cmd) })
	if err := cmd.Flags().Parse(flagArgs); err != nil {
		t.Fatalf("parsing flags %v: %v", flagArgs, err)
	}
	var runErr error
	out := captureStdout(t, func() {
		runErr = cmd.RunE(cmd, args)
	})
	return out, runErr
}

func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	})
}
