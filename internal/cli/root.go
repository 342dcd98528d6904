package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var rootCmd = &cobra.Command{
	Use:   "taskgraph",
	Short: "taskgraph - task dependency graph and splitting engine",
	Long: `taskgraph keeps a persistent set of tasks linked by dependencies.

Planners split work into batches of proposed tasks; every batch is validated,
resolved and cycle checked as a whole before it commits. Executors move tasks
through PENDING, IN_PROGRESS, BLOCKED and COMPLETED, and completing a task
releases every dependent whose prerequisites are now done.

The same operations are exposed to AI coding assistants over MCP with
"taskgraph mcp serve".`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("taskgraph %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
