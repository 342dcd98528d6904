package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	tgmcp "github.com/valter-silva-au/taskgraph/internal/mcp"
)

var mcpRole string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the taskgraph MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the taskgraph MCP server on stdio",
	Long: `Start the taskgraph MCP server on stdio transport.

The server exposes the engine as MCP tools that AI coding assistants can call.
--role limits the tools to one collaborator:

  planner   split_tasks, decompose_task, dependency edits, delete, backups
  executor  update_task_status, update_task
  all       every tool (default)

Query tools (get_task, list_tasks, get_ready_tasks, get_execution_order,
detect_cycles, get_statistics, get_metrics, get_alerts) are always available.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireEngine(); err != nil {
			return err
		}
		role := tgmcp.Role(mcpRole)
		if !role.IsValid() {
			return fmt.Errorf("invalid role %q: must be one of all, planner, executor", mcpRole)
		}

		srv := tgmcp.NewServer(Engine, tgmcp.Options{
			Role:        role,
			MetricsCalc: MetricsCalc,
			AlertEngine: AlertEngine,
			Version:     appVersion,
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		return nil
	},
}

func init() {
	mcpServeCmd.Flags().StringVar(&mcpRole, "role", string(tgmcp.RoleAll), "Tool set to expose: all, planner, executor")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
