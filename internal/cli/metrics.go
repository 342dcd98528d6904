package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	tgmcp "github.com/valter-silva-au/taskgraph/internal/mcp"
	"github.com/valter-silva-au/taskgraph/internal/observability"
)

var (
	metricsJSON  bool
	metricsSince string
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Display metrics derived from the audit log",
	Long: `Display aggregated metrics derived from the audit event log.

Metrics include tasks created and completed, splits by update mode, status
transition counts, deletions, clears and backup activity.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MetricsCalc == nil {
			return fmt.Errorf("metrics calculator not initialized (events may be disabled)")
		}

		sinceTime, err := parseSinceDuration(metricsSince)
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}

		metrics, err := MetricsCalc.Calculate(sinceTime)
		if err != nil {
			return fmt.Errorf("calculating metrics: %w", err)
		}

		if metricsJSON {
			return printJSON(metrics)
		}

		// Table format.
		fmt.Printf("Metrics (since %s)\n\n", sinceTime.Format("2006-01-02"))
		fmt.Printf("  %-24s %d\n", "Events recorded:", metrics.EventCount)
		fmt.Printf("  %-24s %d\n", "Tasks created:", metrics.TasksCreated)
		fmt.Printf("  %-24s %d\n", "Tasks completed:", metrics.TasksCompleted)
		fmt.Printf("  %-24s %d\n", "Tasks deleted:", metrics.TasksDeleted)
		fmt.Printf("  %-24s %d\n", "Store clears:", metrics.StoreClears)
		fmt.Printf("  %-24s %d / %d\n", "Backups made / restored:", metrics.BackupsCreated, metrics.BackupsRestored)

		printCounts("Splits by mode", metrics.SplitsByMode)
		printCounts("Status transitions", metrics.Transitions)

		if metrics.OldestEvent != nil {
			fmt.Printf("\n  %-24s %s\n", "Oldest event:", metrics.OldestEvent.Format(time.RFC3339))
		}
		if metrics.NewestEvent != nil {
			fmt.Printf("  %-24s %s\n", "Newest event:", metrics.NewestEvent.Format(time.RFC3339))
		}

		return nil
	},
}

func printCounts(title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Printf("\n  %s:\n", title)
	for _, k := range keys {
		fmt.Printf("    %-28s %d\n", k+":", counts[k])
	}
}

// parseSinceDuration parses a human-friendly duration string like "7d", "30d",
// or "24h" and returns the corresponding time in the past. Empty means 7d.
func parseSinceDuration(s string) (time.Time, error) {
	if s == "" {
		s = "7d"
	}
	return tgmcp.ParseSince(s, time.Now().UTC())
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show active alerts",
	Long: `Evaluate alert conditions against the audit log and display any triggered alerts.

Alerts fire for tasks blocked longer than alerts.blocked_hours and for tasks in
progress without activity for longer than alerts.stale_days.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if AlertEngine == nil {
			return fmt.Errorf("alert engine not initialized (events may be disabled)")
		}

		alerts, err := AlertEngine.Evaluate()
		if err != nil {
			return fmt.Errorf("evaluating alerts: %w", err)
		}

		if len(alerts) == 0 {
			fmt.Println("No active alerts.")
			return nil
		}

		fmt.Printf("%d active alert(s):\n\n", len(alerts))
		for _, alert := range alerts {
			printAlert(alert)
		}

		return nil
	},
}

func printAlert(alert observability.Alert) {
	sev := styleForSeverity(string(alert.Severity)).Render(fmt.Sprintf("[%s]", alert.Severity))
	msg := alert.Message
	if Engine != nil && alert.TaskID != "" {
		if t, err := Engine.GetTask(alert.TaskID); err == nil {
			msg = fmt.Sprintf("%s (%s)", msg, t.Name)
		}
	}
	fmt.Printf("  %s %s\n", sev, msg)
	fmt.Printf("         triggered at %s\n\n", alert.TriggeredAt.Format("2006-01-02 15:04 UTC"))
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "Output metrics as JSON")
	metricsCmd.Flags().StringVar(&metricsSince, "since", "7d", "Time window for metrics (e.g. 7d, 30d, 24h)")
	rootCmd.AddCommand(metricsCmd, alertsCmd)
}
