package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/valter-silva-au/taskgraph/internal/core"
	"github.com/valter-silva-au/taskgraph/pkg/models"
)

func TestReadyAndBlockedCmds(t *testing.T) {
	eng := withEngine(t)
	urgent := template("Hotfix")
	urgent.Priority = models.P0
	seed(t, eng, template("Design schema"), template("Build API", "Design schema"), urgent)

	out, err := run(t, readyCmd, nil, "--json")
	if err != nil {
		t.Fatalf("ready: %v", err)
	}
	var ready []models.Task
	if err := json.Unmarshal([]byte(out), &ready); err != nil {
		t.Fatalf("expected JSON output: %v", err)
	}
	if len(ready) != 2 || ready[0].Name != "Hotfix" || ready[1].Name != "Design schema" {
		t.Errorf("ready tasks should be ordered by priority, got %v", ready)
	}

	out, err = run(t, blockedCmd, nil)
	if err != nil {
		t.Fatalf("blocked: %v", err)
	}
	if !strings.Contains(out, "Build API") || !strings.Contains(out, "waiting on Design schema [PENDING]") {
		t.Errorf("unexpected blocked output %q", out)
	}
}

func TestBlockedCmd_Empty(t *testing.T) {
	withEngine(t)
	out, err := run(t, blockedCmd, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No blocked tasks.") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestOrderCmd_Committed(t *testing.T) {
	eng := withEngine(t)
	seed(t, eng, template("C", "B"), template("B", "A"), template("A"))

	out, err := run(t, orderCmd, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, b, c := strings.Index(out, "A\n"), strings.Index(out, "B\n"), strings.Index(out, "C\n")
	if a < 0 || b < 0 || c < 0 || !(a < b && b < c) {
		t.Errorf("expected A before B before C, got %q", out)
	}

	resetFlags(orderCmd)
	out, err = run(t, orderCmd, nil, "--json")
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	if err := json.Unmarshal([]byte(out), &ids); err != nil {
		t.Fatalf("expected JSON output: %v", err)
	}
	if len(ids) != 3 {
		t.Errorf("got %d ids, want 3", len(ids))
	}
}

func TestOrderCmd_ProposedBatch(t *testing.T) {
	withEngine(t)
	batch := `
- {name: Deploy, description: Description of Deploy, implementation_guide: Guide for Deploy, dependencies: [Build]}
- {name: Build, description: Description of Build, implementation_guide: Guide for Build}
`
	if err := afero.WriteFile(FS, "/work/plan.yaml", []byte(batch), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, orderCmd, nil, "--file", "/work/plan.yaml", "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var names []string
	if err := json.Unmarshal([]byte(out), &names); err != nil {
		t.Fatalf("expected JSON output: %v", err)
	}
	if len(names) != 2 || names[0] != "Build" || names[1] != "Deploy" {
		t.Errorf("unexpected order %v", names)
	}
}

func TestCyclesCmd_None(t *testing.T) {
	eng := withEngine(t)
	seed(t, eng, template("A"), template("B", "A"))

	out, err := run(t, cyclesCmd, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "No cycles found.") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestStatsCmd(t *testing.T) {
	eng := withEngine(t)
	seed(t, eng, template("A"), template("B", "A"), template("C", "A"))
	if _, err := eng.Start("A"); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Complete("A"); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, statsCmd, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"Tasks: 3 (33% complete, 2 ready)", "Edges:", "Most connected:"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output %q", want, out)
		}
	}

	resetFlags(statsCmd)
	out, err = run(t, statsCmd, nil, "--json")
	if err != nil {
		t.Fatal(err)
	}
	var st core.Statistics
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("expected JSON output: %v", err)
	}
	if st.Total != 3 || st.Graph.EdgeCount != 2 {
		t.Errorf("unexpected statistics %+v", st)
	}
}
