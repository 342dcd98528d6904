package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/taskgraph/internal/core"
	"github.com/valter-silva-au/taskgraph/pkg/models"
)

var (
	updateName        string
	updateDescription string
	updateGuide       string
	updateCriteria    string
	updatePriority    string
	updateComplexity  string
	updateHours       int
	updateDeps        []string
	updateCategory    string
	updateNotes       string
)

var updateCmd = &cobra.Command{
	Use:   "update <task>",
	Short: "Update task content",
	Long: `Update the content of a task. Only flags that are given change.

--deps replaces the whole dependency list; pass --deps "" to clear it.
Dependencies may be ids or names and are cycle checked before commit.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireEngine(); err != nil {
			return err
		}

		upd := buildTaskUpdate(cmd)
		if len(upd.Fields()) == 0 {
			return fmt.Errorf("nothing to update: pass at least one field flag")
		}

		task, err := Engine.UpdateTask(args[0], upd)
		if err != nil {
			return fmt.Errorf("updating task: %w", err)
		}
		fmt.Printf("Updated %s (%s): %s\n", task.Name, shortID(task.ID), strings.Join(upd.Fields(), ", "))
		return nil
	},
}

func buildTaskUpdate(cmd *cobra.Command) core.TaskUpdate {
	var upd core.TaskUpdate
	flags := cmd.Flags()
	if flags.Changed("name") {
		upd.Name = &updateName
	}
	if flags.Changed("description") {
		upd.Description = &updateDescription
	}
	if flags.Changed("guide") {
		upd.ImplementationGuide = &updateGuide
	}
	if flags.Changed("criteria") {
		upd.VerificationCriteria = &updateCriteria
	}
	if flags.Changed("priority") {
		p := models.Priority(strings.ToUpper(updatePriority))
		upd.Priority = &p
	}
	if flags.Changed("complexity") {
		c := models.Complexity(strings.ToUpper(updateComplexity))
		upd.Complexity = &c
	}
	if flags.Changed("hours") {
		upd.EstimatedHours = &updateHours
	}
	if flags.Changed("deps") {
		deps := make([]string, 0, len(updateDeps))
		for _, d := range updateDeps {
			if d = strings.TrimSpace(d); d != "" {
				deps = append(deps, d)
			}
		}
		upd.Dependencies = &deps
	}
	if flags.Changed("category") {
		upd.Category = &updateCategory
	}
	if flags.Changed("notes") {
		upd.Notes = &updateNotes
	}
	return upd
}

var deleteCmd = &cobra.Command{
	Use:     "delete <task>",
	Aliases: []string{"rm"},
	Short:   "Delete a task that nothing depends on",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireEngine(); err != nil {
			return err
		}
		if err := Engine.DeleteTask(args[0]); err != nil {
			return fmt.Errorf("deleting task: %w", err)
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

func init() {
	f := updateCmd.Flags()
	f.StringVar(&updateName, "name", "", "New task name (must stay unique)")
	f.StringVar(&updateDescription, "description", "", "New description")
	f.StringVar(&updateGuide, "guide", "", "New implementation guide")
	f.StringVar(&updateCriteria, "criteria", "", "New verification criteria")
	f.StringVar(&updatePriority, "priority", "", "New priority (P0-P3)")
	f.StringVar(&updateComplexity, "complexity", "", "New complexity (SIMPLE, MODERATE, COMPLEX, EPIC)")
	f.IntVar(&updateHours, "hours", 0, "New estimated hours")
	f.StringSliceVar(&updateDeps, "deps", nil, "Replace dependencies (ids or names)")
	f.StringVar(&updateCategory, "category", "", "New category")
	f.StringVar(&updateNotes, "notes", "", "New notes")
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(deleteCmd)
}
