package core

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"github.com/valter-silva-au/taskgraph/pkg/models"
)

// genBatch draws a batch over a small name pool so that batches collide with
// existing tasks, reference each other and frequently propose cycles.
func genBatch(t *rapid.T) []models.TaskTemplate {
	n := rapid.IntRange(1, 5).Draw(t, "batchSize")
	names := rapid.SliceOfNDistinct(rapid.IntRange(0, 7), n, n, rapid.ID[int]).Draw(t, "names")
	out := make([]models.TaskTemplate, n)
	for i, idx := range names {
		refs := rapid.SliceOfDistinct(rapid.IntRange(0, 7), rapid.ID[int]).Draw(t, fmt.Sprintf("deps%d", i))
		deps := make([]string, 0, len(refs))
		for _, r := range refs {
			if r != idx {
				deps = append(deps, fmt.Sprintf("T%d", r))
			}
		}
		out[i] = tmpl(fmt.Sprintf("T%d", idx), deps...)
	}
	return out
}

func checkInvariants(t *rapid.T, eng Engine) {
	if cycles := eng.DetectCycles(); len(cycles) != 0 {
		t.Fatalf("committed state has cycles: %v", cycles)
	}
	if _, err := eng.ExecutionOrder(); err != nil {
		t.Fatalf("ExecutionOrder on committed state: %v", err)
	}

	all := eng.ListTasks(models.TaskFilter{})
	status := make(map[string]models.TaskStatus, len(all))
	seen := make(map[string]bool, len(all))
	for _, task := range all {
		status[task.ID] = task.Status
		if seen[task.Name] {
			t.Fatalf("duplicate name %q committed", task.Name)
		}
		seen[task.Name] = true
	}
	for _, task := range all {
		for _, d := range task.Dependencies {
			st, ok := status[d]
			if !ok {
				t.Fatalf("task %q has dangling dependency %s", task.Name, d)
			}
			if st == models.StatusCompleted {
				continue
			}
			switch task.Status {
			case models.StatusCompleted:
				t.Fatalf("COMPLETED task %q depends on unfinished %s", task.Name, d)
			case models.StatusPending, models.StatusInProgress:
				t.Fatalf("%s task %q depends on unfinished %s", task.Status, task.Name, d)
			}
		}
	}
}

// Feature: taskgraph, Property 3: Committed State Integrity
// *For any* sequence of splits under random update modes interleaved with
// random status transitions, the committed dependency relation SHALL stay
// acyclic and free of dangling references, names SHALL stay unique, and no
// COMPLETED, PENDING or IN_PROGRESS task SHALL have an unfinished dependency.
func TestProperty3_CommittedStateIntegrity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(t)
		modes := []models.UpdateMode{models.ModeAppend, models.ModeOverwrite, models.ModeSelective, models.ModeClearAll}

		steps := rapid.IntRange(1, 12).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			if rapid.Bool().Draw(rt, fmt.Sprintf("split%d", i)) {
				mode := rapid.SampledFrom(modes).Draw(rt, fmt.Sprintf("mode%d", i))
				_, _ = f.eng.Split(models.SplitRequest{Mode: mode, Tasks: genBatch(rt)})
			} else {
				all := f.eng.ListTasks(models.TaskFilter{})
				if len(all) == 0 {
					continue
				}
				target := rapid.SampledFrom(all).Draw(rt, fmt.Sprintf("target%d", i))
				switch rapid.IntRange(0, 4).Draw(rt, fmt.Sprintf("op%d", i)) {
				case 0:
					_, _ = f.eng.Start(target.ID)
				case 1:
					_, _ = f.eng.Complete(target.ID)
				case 2:
					_, _ = f.eng.Block(target.ID)
				case 3:
					_, _ = f.eng.Unblock(target.ID)
				case 4:
					_ = f.eng.DeleteTask(target.ID)
				}
			}
			checkInvariants(rt, f.eng)
		}
	})
}

// Feature: taskgraph, Property 4: Rejected Splits Commit Nothing
// *For any* split that returns an error, the committed task set SHALL be
// exactly the set before the call.
func TestProperty4_RejectedSplitsCommitNothing(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(t)
		_, _ = f.eng.Split(models.SplitRequest{Mode: models.ModeAppend, Tasks: genBatch(rt)})

		before := f.eng.ListTasks(models.TaskFilter{})
		mode := rapid.SampledFrom([]models.UpdateMode{models.ModeAppend, models.ModeSelective}).Draw(rt, "mode")
		if _, err := f.eng.Split(models.SplitRequest{Mode: mode, Tasks: genBatch(rt)}); err == nil {
			return
		}
		after := f.eng.ListTasks(models.TaskFilter{})
		if len(after) != len(before) {
			rt.Fatalf("rejected split changed task count %d -> %d", len(before), len(after))
		}
		for i := range before {
			if !sameContent(before[i], after[i]) || !before[i].UpdatedAt.Equal(after[i].UpdatedAt) {
				rt.Fatalf("rejected split changed task %q", before[i].Name)
			}
		}
	})
}
