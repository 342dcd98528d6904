package observability

import (
	"testing"
	"time"
)

// newTestAlertEngine returns an engine whose clock is pinned to now.
func newTestAlertEngine(log EventLog, th AlertThresholds, now time.Time) *alertEngine {
	ae := NewAlertEngine(log, th).(*alertEngine)
	ae.now = func() time.Time { return now }
	return ae
}

func TestAlertEngine_BlockedTaskAlert(t *testing.T) {
	log, _ := newMemLog(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	writeAll(t, log,
		statusEvent(now.Add(-50*time.Hour), "A", "PENDING", "IN_PROGRESS"),
		statusEvent(now.Add(-48*time.Hour), "A", "IN_PROGRESS", "BLOCKED"),
		statusEvent(now.Add(-time.Hour), "B", "IN_PROGRESS", "BLOCKED"),
	)

	alerts, err := newTestAlertEngine(log, DefaultAlertThresholds(), now).Evaluate()
	if err != nil {
		t.Fatalf("evaluating alerts: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %+v", alerts)
	}
	a := alerts[0]
	if a.ID != "blocked-A" || a.Condition != "task_blocked_too_long" || a.Severity != SeverityHigh {
		t.Errorf("unexpected alert %+v", a)
	}
	if a.TaskID != "A" || !a.TriggeredAt.Equal(now) {
		t.Errorf("unexpected alert target %+v", a)
	}
}

func TestAlertEngine_UnblockedTaskClearsAlert(t *testing.T) {
	log, _ := newMemLog(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	writeAll(t, log,
		statusEvent(now.Add(-72*time.Hour), "A", "IN_PROGRESS", "BLOCKED"),
		statusEvent(now.Add(-2*time.Hour), "A", "BLOCKED", "PENDING"),
	)

	alerts, err := newTestAlertEngine(log, DefaultAlertThresholds(), now).Evaluate()
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 0 {
		t.Errorf("expected no alerts, got %+v", alerts)
	}
}

func TestAlertEngine_StaleTaskAlert(t *testing.T) {
	log, _ := newMemLog(t)
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	writeAll(t, log,
		statusEvent(now.Add(-5*24*time.Hour), "A", "PENDING", "IN_PROGRESS"),
		statusEvent(now.Add(-5*24*time.Hour), "B", "PENDING", "IN_PROGRESS"),
		Event{Time: now.Add(-time.Hour), Level: "INFO", Type: "task.updated", Message: "task updated",
			Data: map[string]any{"task_id": "B", "fields": []string{"notes"}}},
	)

	alerts, err := newTestAlertEngine(log, DefaultAlertThresholds(), now).Evaluate()
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 1 || alerts[0].ID != "stale-A" || alerts[0].Severity != SeverityMedium {
		t.Fatalf("expected a single stale alert for A, got %+v", alerts)
	}
}

func TestAlertEngine_DeletionAndClearResetTracking(t *testing.T) {
	log, _ := newMemLog(t)
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	old := now.Add(-10 * 24 * time.Hour)

	writeAll(t, log,
		statusEvent(old, "A", "IN_PROGRESS", "BLOCKED"),
		statusEvent(old, "B", "IN_PROGRESS", "BLOCKED"),
		Event{Time: old.Add(time.Hour), Level: "INFO", Type: "task.deleted", Message: "task deleted",
			Data: map[string]any{"task_id": "A"}},
	)
	alerts, err := newTestAlertEngine(log, DefaultAlertThresholds(), now).Evaluate()
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 1 || alerts[0].TaskID != "B" {
		t.Fatalf("deleted task should not alert, got %+v", alerts)
	}

	writeAll(t, log, Event{Time: old.Add(2 * time.Hour), Level: "WARN", Type: "store.cleared", Message: "store cleared"})
	alerts, err = newTestAlertEngine(log, DefaultAlertThresholds(), now).Evaluate()
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 0 {
		t.Errorf("cleared store should not alert, got %+v", alerts)
	}
}

func TestAlertEngine_ZeroThresholdDisables(t *testing.T) {
	log, _ := newMemLog(t)
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	writeAll(t, log,
		statusEvent(now.Add(-100*24*time.Hour), "A", "IN_PROGRESS", "BLOCKED"),
		statusEvent(now.Add(-100*24*time.Hour), "B", "PENDING", "IN_PROGRESS"),
	)

	alerts, err := newTestAlertEngine(log, AlertThresholds{}, now).Evaluate()
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 0 {
		t.Errorf("disabled thresholds should not alert, got %+v", alerts)
	}
}

func TestAlertEngine_SortedByID(t *testing.T) {
	log, _ := newMemLog(t)
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	old := now.Add(-30 * 24 * time.Hour)

	writeAll(t, log,
		statusEvent(old, "C", "PENDING", "IN_PROGRESS"),
		statusEvent(old, "B", "IN_PROGRESS", "BLOCKED"),
		statusEvent(old, "A", "PENDING", "IN_PROGRESS"),
	)

	alerts, err := newTestAlertEngine(log, DefaultAlertThresholds(), now).Evaluate()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"blocked-B", "stale-A", "stale-C"}
	if len(alerts) != len(want) {
		t.Fatalf("expected %d alerts, got %+v", len(want), alerts)
	}
	for i, id := range want {
		if alerts[i].ID != id {
			t.Errorf("alert %d: expected %s, got %s", i, id, alerts[i].ID)
		}
	}
}

func TestDefaultAlertThresholds(t *testing.T) {
	th := DefaultAlertThresholds()
	if th.BlockedHours != 24 || th.StaleDays != 3 {
		t.Errorf("unexpected defaults %+v", th)
	}
}
