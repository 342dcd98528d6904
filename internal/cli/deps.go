package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var depsCmd = &cobra.Command{
	Use:   "deps <task>",
	Short: "Show or edit a task's dependencies",
	Long: `Show the dependencies and dependents of a task, or edit its edges with
the add and rm subcommands. Adding an edge that would form a cycle is
rejected.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireEngine(); err != nil {
			return err
		}
		deps, err := Engine.DependenciesOf(args[0])
		if err != nil {
			return fmt.Errorf("getting dependencies: %w", err)
		}
		dependents, err := Engine.DependentsOf(args[0])
		if err != nil {
			return fmt.Errorf("getting dependents: %w", err)
		}

		fmt.Printf("Depends on (%d):\n", len(deps))
		for _, d := range deps {
			fmt.Printf("  %-8s %s %s\n", shortID(d.ID), styleForStatus(d.Status).Render(fmt.Sprintf("%-12s", d.Status)), d.Name)
		}
		fmt.Printf("\nDepended on by (%d):\n", len(dependents))
		for _, d := range dependents {
			fmt.Printf("  %-8s %s %s\n", shortID(d.ID), styleForStatus(d.Status).Render(fmt.Sprintf("%-12s", d.Status)), d.Name)
		}
		return nil
	},
}

var depsAddCmd = &cobra.Command{
	Use:   "add <task> <dependency>",
	Short: "Make a task depend on another",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireEngine(); err != nil {
			return err
		}
		task, err := Engine.AddDependency(args[0], args[1])
		if err != nil {
			return fmt.Errorf("adding dependency: %w", err)
		}
		fmt.Printf("%s now depends on %s (status %s)\n", task.Name, args[1], task.Status)
		return nil
	},
}

var depsRmCmd = &cobra.Command{
	Use:     "rm <task> <dependency>",
	Aliases: []string{"remove"},
	Short:   "Remove a dependency edge",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireEngine(); err != nil {
			return err
		}
		task, err := Engine.RemoveDependency(args[0], args[1])
		if err != nil {
			return fmt.Errorf("removing dependency: %w", err)
		}
		fmt.Printf("%s no longer depends on %s (status %s)\n", task.Name, args[1], task.Status)
		return nil
	},
}

func init() {
	depsCmd.AddCommand(depsAddCmd, depsRmCmd)
	rootCmd.AddCommand(depsCmd)
}
