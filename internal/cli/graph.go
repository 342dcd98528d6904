package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/taskgraph/internal/core"
	"github.com/valter-silva-au/taskgraph/pkg/models"
)

var (
	readyJSON bool
	orderFile string
	orderJSON bool
	statsJSON bool
)

var readyCmd = &cobra.Command{
	Use:   "ready",
	Short: "List tasks ready to start",
	Long: `List PENDING tasks whose dependencies are all COMPLETED, highest
priority first and then in insertion order.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireEngine(); err != nil {
			return err
		}
		tasks := Engine.ReadyTasks()
		if readyJSON {
			if tasks == nil {
				tasks = []models.Task{}
			}
			return printJSON(tasks)
		}
		if len(tasks) == 0 {
			fmt.Println("No tasks are ready.")
			return nil
		}
		printTaskTable(tasks)
		return nil
	},
}

var blockedCmd = &cobra.Command{
	Use:   "blocked",
	Short: "List blocked tasks and what they wait on",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireEngine(); err != nil {
			return err
		}
		tasks := Engine.BlockedTasks()
		if len(tasks) == 0 {
			fmt.Println("No blocked tasks.")
			return nil
		}
		for _, t := range tasks {
			fmt.Printf("%s (%s, %s)\n", t.Name, shortID(t.ID), t.BlockedReason)
			deps, err := Engine.DependenciesOf(t.ID)
			if err != nil {
				return fmt.Errorf("getting dependencies: %w", err)
			}
			for _, d := range deps {
				if d.Status != models.StatusCompleted {
					fmt.Printf("  waiting on %s [%s]\n", d.Name, d.Status)
				}
			}
		}
		return nil
	},
}

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Show the execution order",
	Long: `Print tasks in dependency order: every task appears after all of its
dependencies, ties broken by insertion order.

With --file, order a proposed batch by name without committing it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireEngine(); err != nil {
			return err
		}

		if orderFile != "" {
			req, err := readSplitRequest(orderFile)
			if err != nil {
				return err
			}
			names, err := Engine.ExecutionPlan(req.Tasks)
			if err != nil {
				return fmt.Errorf("ordering proposed tasks: %w", err)
			}
			if orderJSON {
				return printJSON(names)
			}
			for i, n := range names {
				fmt.Printf("%3d. %s\n", i+1, n)
			}
			return nil
		}

		tasks, err := Engine.ExecutionOrder()
		if err != nil {
			return fmt.Errorf("computing execution order: %w", err)
		}
		if orderJSON {
			ids := make([]string, len(tasks))
			for i, t := range tasks {
				ids[i] = t.ID
			}
			return printJSON(ids)
		}
		if len(tasks) == 0 {
			fmt.Println("No tasks found.")
			return nil
		}
		for i, t := range tasks {
			status := styleForStatus(t.Status).Render(fmt.Sprintf("%-12s", t.Status))
			fmt.Printf("%3d. %s %s\n", i+1, status, t.Name)
		}
		return nil
	},
}

var cyclesCmd = &cobra.Command{
	Use:   "cycles",
	Short: "Check the committed graph for dependency cycles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireEngine(); err != nil {
			return err
		}
		cycles := Engine.DetectCycles()
		if len(cycles) == 0 {
			fmt.Println("No cycles found.")
			return nil
		}
		fmt.Printf("%d cycle(s) found:\n", len(cycles))
		for _, c := range cycles {
			fmt.Printf("  %s\n", strings.Join(c, " -> "))
		}
		return fmt.Errorf("%w: %d cycle(s) in committed graph", models.ErrCycleDetected, len(cycles))
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show task and graph statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireEngine(); err != nil {
			return err
		}
		st := Engine.Statistics()
		if statsJSON {
			return printJSON(st)
		}
		printStatistics(st)
		return nil
	},
}

func printStatistics(st core.Statistics) {
	fmt.Printf("Tasks: %d (%.0f%% complete, %d ready)\n\n", st.Total, st.CompletionRate()*100, st.Ready)

	fmt.Println("  By status:")
	for _, s := range models.AllStatuses {
		label := styleForStatus(s).Render(fmt.Sprintf("%-14s", s))
		fmt.Printf("    %s %d\n", label, st.ByStatus[s])
	}

	if len(st.ByComplexity) > 0 {
		fmt.Println("\n  By complexity:")
		for _, c := range []models.Complexity{models.ComplexitySimple, models.ComplexityModerate, models.ComplexityComplex, models.ComplexityEpic} {
			if n := st.ByComplexity[c]; n > 0 {
				fmt.Printf("    %-14s %d\n", c, n)
			}
		}
	}

	fmt.Println("\n  By priority:")
	for _, p := range []models.Priority{models.P0, models.P1, models.P2, models.P3} {
		if n := st.ByPriority[p]; n > 0 {
			fmt.Printf("    %-14s %d\n", p, n)
		}
	}

	g := st.Graph
	fmt.Println("\n  Graph:")
	fmt.Printf("    %-22s %d\n", "Edges:", g.EdgeCount)
	fmt.Printf("    %-22s %.3f\n", "Density:", g.Density)
	fmt.Printf("    %-22s %d\n", "Max depth:", g.MaxDepth)
	fmt.Printf("    %-22s %d\n", "Components:", g.Components)
	fmt.Printf("    %-22s %d / %d\n", "Roots / leaves:", g.Roots, g.Leaves)
	fmt.Printf("    %-22s %.2f\n", "Avg dependencies:", st.AvgDependencies)

	if len(st.MostConnected) > 0 {
		fmt.Println("\n  Most connected:")
		for _, c := range st.MostConnected {
			fmt.Printf("    %-40s %d in / %d out\n", truncate(c.Name, 40), c.Dependencies, c.Dependents)
		}
	}
}

func init() {
	readyCmd.Flags().BoolVar(&readyJSON, "json", false, "Output tasks as JSON")
	orderCmd.Flags().StringVarP(&orderFile, "file", "f", "", "Order a proposed batch file instead of the committed set")
	orderCmd.Flags().BoolVar(&orderJSON, "json", false, "Output ids (or names with --file) as JSON")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output statistics as JSON")
	rootCmd.AddCommand(readyCmd, blockedCmd, orderCmd, cyclesCmd, statsCmd)
}
