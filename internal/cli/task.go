package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/taskgraph/pkg/models"
)

var (
	listStatus   []string
	listPriority []string
	listCategory string
	listName     string
	listLimit    int
	listJSON     bool
	showJSON     bool
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks in insertion order",
	Long: `List tasks in the order they were added.

Filters combine with AND logic. --status and --priority accept repeated flags
or comma-separated values, e.g. --status PENDING,BLOCKED.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireEngine(); err != nil {
			return err
		}

		statuses, err := parseStatuses(listStatus)
		if err != nil {
			return err
		}
		priorities, err := parsePriorities(listPriority)
		if err != nil {
			return err
		}

		tasks := Engine.ListTasks(models.TaskFilter{
			Status:       statuses,
			Priority:     priorities,
			Category:     listCategory,
			NameContains: listName,
			Limit:        listLimit,
		})

		if listJSON {
			if tasks == nil {
				tasks = []models.Task{}
			}
			return printJSON(tasks)
		}

		if len(tasks) == 0 {
			fmt.Println("No tasks found.")
			return nil
		}
		printTaskTable(tasks)
		fmt.Printf("\n  Total: %d\n", len(tasks))
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <task>",
	Short: "Show a task by id or name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireEngine(); err != nil {
			return err
		}

		task, err := Engine.GetTask(args[0])
		if err != nil {
			return fmt.Errorf("getting task: %w", err)
		}

		if showJSON {
			return printJSON(task)
		}

		deps, err := Engine.DependenciesOf(task.ID)
		if err != nil {
			return fmt.Errorf("getting dependencies: %w", err)
		}
		printTask(task, nameIndex(deps))

		dependents, err := Engine.DependentsOf(task.ID)
		if err != nil {
			return fmt.Errorf("getting dependents: %w", err)
		}
		if len(dependents) > 0 {
			fmt.Println("\n  Dependents:")
			for _, d := range dependents {
				fmt.Printf("    - %s (%s)\n", d.Name, shortID(d.ID))
			}
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringSliceVar(&listStatus, "status", nil, "Filter by status")
	listCmd.Flags().StringSliceVar(&listPriority, "priority", nil, "Filter by priority")
	listCmd.Flags().StringVar(&listCategory, "category", "", "Filter by category (case-insensitive)")
	listCmd.Flags().StringVar(&listName, "name", "", "Filter by name substring")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "Maximum number of tasks to show")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output tasks as JSON")
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Output the task as JSON")
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
}
