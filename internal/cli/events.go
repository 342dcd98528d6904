package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/taskgraph/internal/observability"
)

var (
	eventsType  string
	eventsTask  string
	eventsSince string
	eventsLimit int
	eventsJSON  bool
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the audit log",
	Long: `Show committed mutations from the audit log, oldest first.

Event types: split.committed, task.status_changed, task.updated, task.deleted,
store.cleared, backup.created, backup.restored.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if EventLog == nil {
			return fmt.Errorf("event log not initialized (events may be disabled)")
		}

		filter := observability.EventFilter{
			Type:  eventsType,
			Limit: eventsLimit,
		}
		if eventsTask != "" {
			filter.TaskID = eventsTask
			if Engine != nil {
				if t, err := Engine.GetTask(eventsTask); err == nil {
					filter.TaskID = t.ID
				}
			}
		}
		if eventsSince != "" {
			since, err := parseSinceDuration(eventsSince)
			if err != nil {
				return fmt.Errorf("parsing --since: %w", err)
			}
			filter.Since = &since
		}

		events, err := EventLog.Read(filter)
		if err != nil {
			return fmt.Errorf("reading events: %w", err)
		}

		if eventsJSON {
			if events == nil {
				events = []observability.Event{}
			}
			return printJSON(events)
		}
		if len(events) == 0 {
			fmt.Println("No events found.")
			return nil
		}
		for _, e := range events {
			fmt.Printf("%s %-5s %-20s %s\n", e.Time.Format("2006-01-02 15:04:05"), e.Level, e.Type, formatEventData(e.Data))
		}
		return nil
	},
}

// formatEventData renders event data as sorted key=value pairs.
func formatEventData(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		if k == "task_ids" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, data[k])
	}
	return strings.Join(parts, " ")
}

func init() {
	eventsCmd.Flags().StringVar(&eventsType, "type", "", "Only show events of this type; a trailing \".\" selects a family such as task.")
	eventsCmd.Flags().StringVar(&eventsTask, "task", "", "Only show events for this task id or name")
	eventsCmd.Flags().StringVar(&eventsSince, "since", "", "Only show events in this window (e.g. 7d, 24h)")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 50, "Show at most this many recent events; 0 for all")
	eventsCmd.Flags().BoolVar(&eventsJSON, "json", false, "Output events as JSON")
	rootCmd.AddCommand(eventsCmd)
}
