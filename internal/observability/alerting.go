package observability

import (
	"fmt"
	"sort"
	"time"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert represents a triggered alert condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	TaskID      string        `json:"task_id,omitempty"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertThresholds configures when alerts should fire. A zero threshold
// disables its condition.
type AlertThresholds struct {
	BlockedHours int `yaml:"blocked_hours" json:"blocked_hours"`
	StaleDays    int `yaml:"stale_days" json:"stale_days"`
}

// DefaultAlertThresholds returns sensible defaults for alert thresholds.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		BlockedHours: 24,
		StaleDays:    3,
	}
}

// AlertEngine evaluates alert conditions against the event log.
type AlertEngine interface {
	Evaluate() ([]Alert, error)
}

// alertEngine implements AlertEngine by replaying status events.
type alertEngine struct {
	eventLog   EventLog
	thresholds AlertThresholds
	now        func() time.Time
}

// NewAlertEngine creates a new AlertEngine with the given EventLog and thresholds.
func NewAlertEngine(eventLog EventLog, thresholds AlertThresholds) AlertEngine {
	return &alertEngine{
		eventLog:   eventLog,
		thresholds: thresholds,
		now:        time.Now,
	}
}

type taskState struct {
	status       string
	changedAt    time.Time
	lastActivity time.Time
}

// replay folds the log into the latest known state of every live task.
// Deletions drop a task; clears and restores drop everything, since the log
// no longer describes the replaced set.
func (ae *alertEngine) replay() (map[string]*taskState, error) {
	events, err := ae.eventLog.Read(EventFilter{})
	if err != nil {
		return nil, err
	}

	tasks := make(map[string]*taskState)
	for _, event := range events {
		switch event.Type {
		case "store.cleared", "backup.restored":
			tasks = make(map[string]*taskState)
			continue
		case "task.deleted":
			delete(tasks, event.TaskID())
			continue
		}

		taskID := event.TaskID()
		if taskID == "" {
			continue
		}
		st, ok := tasks[taskID]
		if !ok {
			st = &taskState{}
			tasks[taskID] = st
		}
		if event.Time.After(st.lastActivity) {
			st.lastActivity = event.Time
		}
		if event.Type == "task.status_changed" {
			if to, ok := event.Data["to"].(string); ok && to != "" {
				st.status = to
				st.changedAt = event.Time
			}
		}
	}
	return tasks, nil
}

// Evaluate reads events and checks all alert conditions, returning any
// triggered alerts ordered by id.
func (ae *alertEngine) Evaluate() ([]Alert, error) {
	now := ae.now().UTC()
	tasks, err := ae.replay()
	if err != nil {
		return nil, fmt.Errorf("replaying events for alerts: %w", err)
	}

	var alerts []Alert
	blocked := time.Duration(ae.thresholds.BlockedHours) * time.Hour
	stale := time.Duration(ae.thresholds.StaleDays) * 24 * time.Hour
	for taskID, st := range tasks {
		switch {
		case st.status == "BLOCKED" && blocked > 0 && now.Sub(st.changedAt) > blocked:
			alerts = append(alerts, Alert{
				ID:          fmt.Sprintf("blocked-%s", taskID),
				Condition:   "task_blocked_too_long",
				Severity:    SeverityHigh,
				TaskID:      taskID,
				Message:     fmt.Sprintf("task %s has been blocked for more than %d hours", taskID, ae.thresholds.BlockedHours),
				TriggeredAt: now,
			})
		case st.status == "IN_PROGRESS" && stale > 0 && now.Sub(st.lastActivity) > stale:
			alerts = append(alerts, Alert{
				ID:          fmt.Sprintf("stale-%s", taskID),
				Condition:   "task_stale",
				Severity:    SeverityMedium,
				TaskID:      taskID,
				Message:     fmt.Sprintf("task %s has had no activity for more than %d days", taskID, ae.thresholds.StaleDays),
				TriggeredAt: now,
			})
		}
	}

	sort.Slice(alerts, func(i, j int) bool { return alerts[i].ID < alerts[j].ID })
	return alerts, nil
}
