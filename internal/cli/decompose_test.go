package cli

import (
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/valter-silva-au/taskgraph/internal/core"
	"github.com/valter-silva-au/taskgraph/pkg/models"
)

func TestDecomposeCmd_WritesSplitFile(t *testing.T) {
	eng := withEngine(t)
	big := template("Build API")
	big.Complexity = models.ComplexityComplex
	seed(t, eng, big)

	out, err := run(t, decomposeCmd, []string{"Build API"},
		"--strategy", string(core.StrategySequentialSteps), "--max", "3", "--out", "/work/sub.yaml", "--mode", "selective")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Wrote 3 templates to /work/sub.yaml") {
		t.Errorf("unexpected output %q", out)
	}

	req, err := readSplitRequest("/work/sub.yaml")
	if err != nil {
		t.Fatalf("reading generated file: %v", err)
	}
	if req.Mode != models.ModeSelective || len(req.Tasks) != 3 {
		t.Errorf("unexpected request %+v", req)
	}
	if !strings.Contains(req.GlobalContext, `"Build API"`) {
		t.Errorf("global context = %q", req.GlobalContext)
	}

	resetFlags(splitCmd)
	if _, err := run(t, splitCmd, []string{"/work/sub.yaml"}); err != nil {
		t.Fatalf("generated file should split cleanly: %v", err)
	}
	if n := len(eng.ListTasks(models.TaskFilter{})); n != 4 {
		t.Errorf("got %d tasks after split, want 4", n)
	}
}

func TestDecomposeCmd_Stdout(t *testing.T) {
	eng := withEngine(t)
	seed(t, eng, template("Build API"))

	out, err := run(t, decomposeCmd, []string{"Build API"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "update_mode: append") || !strings.Contains(out, "Build API: ") {
		t.Errorf("unexpected output %q", out)
	}
	if ok, _ := afero.Exists(FS, "/work/sub.yaml"); ok {
		t.Error("nothing should be written without --out")
	}
}

func TestDecomposeCmd_UnknownStrategy(t *testing.T) {
	eng := withEngine(t)
	seed(t, eng, template("Build API"))

	_, err := run(t, decomposeCmd, []string{"Build API"}, "--strategy", "random")
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}
