package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/taskgraph/internal/core"
	"github.com/valter-silva-au/taskgraph/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Move tasks through their lifecycle",
	Long: `Move a task through the status state machine:

  start     PENDING     -> IN_PROGRESS  (all dependencies COMPLETED)
  complete  IN_PROGRESS -> COMPLETED    (releases ready dependents)
  block     IN_PROGRESS -> BLOCKED      (external blocker)
  reset     IN_PROGRESS -> PENDING
  unblock   BLOCKED     -> PENDING      (all dependencies COMPLETED)
  set       any legal transition to the given status`,
}

// transitionCommand builds a status subcommand around one engine call.
func transitionCommand(use, short string, fn func(core.Engine, string) (*core.StatusChange, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <task>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireEngine(); err != nil {
				return err
			}
			change, err := fn(Engine, args[0])
			if err != nil {
				return fmt.Errorf("updating status: %w", err)
			}
			printStatusChange(change)
			return nil
		},
	}
}

var statusSetCmd = &cobra.Command{
	Use:   "set <task> <status>",
	Short: "Set a task's status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireEngine(); err != nil {
			return err
		}
		status := models.TaskStatus(strings.ToUpper(args[1]))
		if !status.IsValid() {
			return fmt.Errorf("invalid status %q: must be one of PENDING, IN_PROGRESS, COMPLETED, BLOCKED", args[1])
		}
		change, err := Engine.SetStatus(args[0], status)
		if err != nil {
			return fmt.Errorf("updating status: %w", err)
		}
		printStatusChange(change)
		return nil
	},
}

func printStatusChange(change *core.StatusChange) {
	from := styleForStatus(change.From).Render(string(change.From))
	to := styleForStatus(change.To).Render(string(change.To))
	fmt.Printf("%s: %s -> %s\n", change.Task.Name, from, to)
	for _, id := range change.Released {
		name := shortID(id)
		if t, err := Engine.GetTask(id); err == nil {
			name = t.Name
		}
		fmt.Printf("  released: %s\n", name)
	}
}

func init() {
	statusCmd.AddCommand(
		transitionCommand("start", "Start a pending task", core.Engine.Start),
		transitionCommand("complete", "Complete an in-progress task", core.Engine.Complete),
		transitionCommand("block", "Mark an in-progress task as externally blocked", core.Engine.Block),
		transitionCommand("reset", "Return an in-progress task to pending", core.Engine.Reset),
		transitionCommand("unblock", "Release an externally blocked task", core.Engine.Unblock),
		statusSetCmd,
	)
	rootCmd.AddCommand(statusCmd)
}
