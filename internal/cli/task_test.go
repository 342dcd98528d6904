package cli

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/valter-silva-au/taskgraph/pkg/models"
)

func TestListCmd(t *testing.T) {
	eng := withEngine(t)

	out, err := run(t, listCmd, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "No tasks found.") {
		t.Errorf("expected empty message, got %q", out)
	}

	backend := template("Build API")
	backend.Category = "backend"
	backend.Priority = models.P0
	seed(t, eng, template("Design schema"), backend, template("Write docs", "Build API"))

	out, err = run(t, listCmd, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, name := range []string{"Design schema", "Build API", "Write docs", "Total: 3"} {
		if !strings.Contains(out, name) {
			t.Errorf("expected %q in output %q", name, out)
		}
	}
	if strings.Index(out, "Design schema") > strings.Index(out, "Write docs") {
		t.Error("tasks should be listed in insertion order")
	}
}

func TestListCmd_Filters(t *testing.T) {
	eng := withEngine(t)
	backend := template("Build API")
	backend.Category = "Backend"
	seed(t, eng, template("Design schema"), backend, template("Write docs", "Build API"))

	out, err := run(t, listCmd, nil, "--status", "blocked", "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var tasks []models.Task
	if err := json.Unmarshal([]byte(out), &tasks); err != nil {
		t.Fatalf("expected JSON output: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Name != "Write docs" {
		t.Errorf("unexpected blocked tasks %+v", tasks)
	}

	resetFlags(listCmd)
	out, err = run(t, listCmd, nil, "--category", "backend", "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tasks = nil
	if err := json.Unmarshal([]byte(out), &tasks); err != nil {
		t.Fatalf("expected JSON output: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Name != "Build API" {
		t.Errorf("category filter should be case-insensitive, got %+v", tasks)
	}
}

func TestListCmd_EmptyJSON(t *testing.T) {
	withEngine(t)
	out, err := run(t, listCmd, nil, "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("expected empty JSON array, got %q", out)
	}
}

func TestListCmd_InvalidFilter(t *testing.T) {
	withEngine(t)
	if _, err := run(t, listCmd, nil, "--status", "DONE"); err == nil || !strings.Contains(err.Error(), `invalid status "DONE"`) {
		t.Errorf("unexpected error: %v", err)
	}
	resetFlags(listCmd)
	if _, err := run(t, listCmd, nil, "--priority", "P9"); err == nil || !strings.Contains(err.Error(), `invalid priority "P9"`) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestShowCmd(t *testing.T) {
	eng := withEngine(t)
	seed(t, eng, template("Design schema"), template("Build API", "Design schema"))

	out, err := run(t, showCmd, []string{"Design schema"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"Design schema", "PENDING", "Guide for Design schema", "Dependents:", "Build API"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output %q", want, out)
		}
	}

	out, err = run(t, showCmd, []string{"Build API"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Dependencies:") || !strings.Contains(out, "BLOCKED (dependencies)") {
		t.Errorf("expected dependency section and blocked reason, got %q", out)
	}
}

func TestShowCmd_ByIDAsJSON(t *testing.T) {
	eng := withEngine(t)
	res := seed(t, eng, template("Design schema"))

	out, err := run(t, showCmd, []string{res.CreatedIDs[0]}, "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var task models.Task
	if err := json.Unmarshal([]byte(out), &task); err != nil {
		t.Fatalf("expected JSON output: %v", err)
	}
	if task.ID != res.CreatedIDs[0] || task.Name != "Design schema" {
		t.Errorf("unexpected task %+v", task)
	}
}

func TestShowCmd_NotFound(t *testing.T) {
	withEngine(t)
	_, err := run(t, showCmd, []string{"missing"})
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
