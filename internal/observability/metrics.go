package observability

import (
	"fmt"
	"time"
)

// Metrics holds calculated metrics derived from the event log.
type Metrics struct {
	TasksCreated    int            `json:"tasks_created"`
	TasksCompleted  int            `json:"tasks_completed"`
	TasksDeleted    int            `json:"tasks_deleted"`
	SplitsByMode    map[string]int `json:"splits_by_mode"`
	Transitions     map[string]int `json:"transitions"`
	StoreClears     int            `json:"store_clears"`
	BackupsCreated  int            `json:"backups_created"`
	BackupsRestored int            `json:"backups_restored"`
	EventCount      int            `json:"event_count"`
	OldestEvent     *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent     *time.Time     `json:"newest_event,omitempty"`
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

// metricsCalculator implements MetricsCalculator by reading from an EventLog.
type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a new MetricsCalculator that reads from the given EventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate reads all events since the given time and aggregates them into metrics.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		SplitsByMode: make(map[string]int),
		Transitions:  make(map[string]int),
	}

	m.EventCount = len(events)

	for i, event := range events {
		if i == 0 {
			t := event.Time
			m.OldestEvent = &t
		}
		t := event.Time
		m.NewestEvent = &t

		switch event.Type {
		case "split.committed":
			m.TasksCreated += intValue(event.Data["created"])
			if mode, ok := event.Data["mode"].(string); ok {
				m.SplitsByMode[mode]++
			}
		case "task.status_changed":
			from, _ := event.Data["from"].(string)
			to, _ := event.Data["to"].(string)
			if to == "" {
				continue
			}
			m.Transitions[from+"->"+to]++
			if to == "COMPLETED" {
				m.TasksCompleted++
			}
		case "task.deleted":
			m.TasksDeleted++
		case "store.cleared":
			m.StoreClears++
		case "backup.created":
			m.BackupsCreated++
		case "backup.restored":
			m.BackupsRestored++
		}
	}

	return m, nil
}

// intValue reads a count from event data. Values written in-process are
// ints; values decoded from the JSONL file are float64.
func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
