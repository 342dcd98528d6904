package core

import (
	"fmt"

	"github.com/valter-silva-au/taskgraph/internal/storage"
	"github.com/valter-silva-au/taskgraph/pkg/models"
)

// NameIndex is the id and name lookup used for one resolution pass. It holds
// the committed tasks that will survive the operation plus any in-flight
// batch members, so a batch can refer to its own siblings by name.
type NameIndex struct {
	ids    map[string]struct{}
	byName map[string]string
}

// NewNameIndex indexes tasks by id and name.
func NewNameIndex(tasks []models.Task) *NameIndex {
	ix := &NameIndex{
		ids:    make(map[string]struct{}, len(tasks)),
		byName: make(map[string]string, len(tasks)),
	}
	for _, t := range tasks {
		ix.Add(t.ID, t.Name)
	}
	return ix
}

// Add registers id under name, replacing any earlier holder of the name.
func (ix *NameIndex) Add(id, name string) {
	ix.ids[id] = struct{}{}
	ix.byName[name] = id
}

// Has reports whether id is known.
func (ix *NameIndex) Has(id string) bool {
	_, ok := ix.ids[id]
	return ok
}

// Lookup returns the id registered for name.
func (ix *NameIndex) Lookup(name string) (string, bool) {
	id, ok := ix.byName[name]
	return id, ok
}

// Resolve translates a dependency reference into a task id. A reference in
// id format that names a known task wins; otherwise it is looked up as a
// name. ok is false when neither matches.
func Resolve(ref string, ix *NameIndex) (id string, ok bool) {
	if storage.IsTaskID(ref) && ix.Has(ref) {
		return ref, true
	}
	if id, found := ix.Lookup(ref); found && ix.Has(id) {
		return id, true
	}
	return "", false
}

// resolution is the outcome of resolving one task's dependency list.
type resolution struct {
	ids      []string
	warnings []models.Warning
}

// resolveAll resolves refs for the task selfID/name. Duplicates collapse to
// their first occurrence. A reference to the task itself is a validation
// error. Unresolved references fail under ResolveStrict and become warnings
// under ResolveSkip.
func resolveAll(selfID, name string, refs []string, ix *NameIndex, policy models.ResolutionPolicy) (resolution, error) {
	var res resolution
	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		id, ok := Resolve(ref, ix)
		if !ok {
			if policy == models.ResolveSkip {
				res.warnings = append(res.warnings, models.Warning{
					Code:    models.WarnUnresolvedSkipped,
					Task:    name,
					Message: fmt.Sprintf("dependency %q did not resolve and was dropped", ref),
				})
				continue
			}
			return resolution{}, &models.TaskError{
				Kind: models.ErrUnresolvedDependency,
				Task: name,
				Ref:  ref,
			}
		}
		if id == selfID {
			return resolution{}, &models.ValidationError{
				Task:   name,
				Issues: []models.FieldIssue{{Field: "dependencies", Message: "a task cannot depend on itself"}},
			}
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		res.ids = append(res.ids, id)
	}
	return res, nil
}
